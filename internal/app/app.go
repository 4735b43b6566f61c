package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/huddle/internal/auth"
	"github.com/vovakirdan/huddle/internal/config"
	"github.com/vovakirdan/huddle/internal/core"
	"github.com/vovakirdan/huddle/internal/notify"
	"github.com/vovakirdan/huddle/internal/service/groups"
	"github.com/vovakirdan/huddle/internal/store"
	"github.com/vovakirdan/huddle/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/huddle/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	router          *core.Router
	bus             *notify.Bus
	redis           *redis.Client
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	if cfg.JWTSecret == "" && cfg.JWTRequired {
		_ = st.Close()
		return nil, errors.New("jwt_required is set but jwt_secret is empty")
	}
	auth.SetHashCost(cfg.BcryptCost)
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := core.NewRouter(st, logger, core.Options{
		GlobalRoom:    cfg.GlobalRoom,
		MaxTextLength: cfg.MaxTextLength,
		Directory:     authService,
		Metrics:       core.NewMetrics(reg),
	})

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		router:          router,
		store:           st,
		log:             logger,
	}

	var notifier groups.Notifier = router
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.bus = notify.NewBus(a.redis, cfg.RedisChannel, router, logger)
		notifier = a.bus
		logger.Info().Str("redis_addr", cfg.RedisAddr).Str("channel", cfg.RedisChannel).Msg("group change bus enabled")
	}
	groupService := groups.New(st, authService, notifier, logger)

	a.server = transporthttp.NewServer(transporthttp.Services{
		Router:   router,
		Auth:     authService,
		Groups:   groupService,
		Messages: st,
		Gatherer: reg,
	}, cfg, logger)

	return a, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.router.Run(gctx)
		return nil
	})

	if a.bus != nil {
		g.Go(func() error {
			return a.bus.Run(gctx)
		})
	}

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
