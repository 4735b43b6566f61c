package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`

	// GlobalRoom is the room every connection is subscribed to on join.
	GlobalRoom        string `mapstructure:"global_room" yaml:"global_room"`
	ClientBuffer      int    `mapstructure:"client_buffer" yaml:"client_buffer"`
	MaxMessageBytes   int64  `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MaxTextLength     int    `mapstructure:"max_text_length" yaml:"max_text_length"`
	MessagesPerMinute int    `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
	JWTRequired bool          `mapstructure:"jwt_required" yaml:"jwt_required"`
	BcryptCost  int           `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`

	// RedisAddr enables the cross-instance group notification bus when set.
	RedisAddr    string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisChannel string `mapstructure:"redis_channel" yaml:"redis_channel"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "huddle.db",
		GlobalRoom:        "general",
		ClientBuffer:      64,
		MaxMessageBytes:   64 << 10,
		MaxTextLength:     2000,
		MessagesPerMinute: 120,
		JWTIssuer:         "huddle",
		JWTAudience:       "huddle",
		JWTTTL:            24 * time.Hour,
		BcryptCost:        10,
		RedisChannel:      "huddle:groups",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.GlobalRoom != "" {
		c.GlobalRoom = other.GlobalRoom
	}
	if other.RedisAddr != "" {
		c.RedisAddr = other.RedisAddr
	}
	if other.JWTRequired {
		c.JWTRequired = true
	}
}
