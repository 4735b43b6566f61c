package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	req := require.New(t)
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(&logger, path)
	req.NoError(err)
	req.Equal(path, resolved)
	req.Equal(Default(), cfg)

	_, statErr := os.Stat(path)
	req.NoError(statErr, "default config file should be written")
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	req := require.New(t)
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "config.yaml")

	content := "addr: \":9090\"\nglobal_room: lobby\nshutdown_timeout: 2s\n"
	req.NoError(os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("HUDDLE_GLOBAL_ROOM", "plaza")

	cfg, _, err := Load(&logger, path)
	req.NoError(err)
	req.Equal(":9090", cfg.Addr)
	req.Equal("plaza", cfg.GlobalRoom)
	req.Equal(2*time.Second, cfg.ShutdownTimeout)
	req.Equal(Default().ClientBuffer, cfg.ClientBuffer)
}

func TestUpdateFromKeepsZeroValues(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":7000", LogLevel: "debug"})

	require.Equal(t, ":7000", cfg.Addr)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "general", cfg.GlobalRoom)
}
