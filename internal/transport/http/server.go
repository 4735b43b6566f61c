package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle/internal/auth"
	"github.com/vovakirdan/huddle/internal/config"
	"github.com/vovakirdan/huddle/internal/core"
	"github.com/vovakirdan/huddle/internal/service/groups"
	"github.com/vovakirdan/huddle/internal/store"
)

// Services bundles what the HTTP layer serves.
type Services struct {
	Router   *core.Router
	Auth     *auth.Service
	Groups   *groups.Service
	Messages store.MessageStore
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewServer builds an HTTP server with REST, WebSocket and metrics routes.
// The WebSocket endpoint sits on the outer mux so the upgrade reaches the
// raw ResponseWriter; everything else goes through gin.
func NewServer(svc Services, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), LoggerMiddleware(logger))

	engine.GET("/health", healthHandler)
	if svc.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(svc.Gatherer, promhttp.HandlerOpts{})))
	}

	api := engine.Group("/api")
	if svc.Auth != nil {
		authHandlers := NewAPIHandlers(svc.Auth, logger)
		api.POST("/register", authHandlers.Register)
		api.POST("/login", authHandlers.Login)
	}

	protected := api.Group("")
	if cfg.JWTRequired && svc.Auth != nil {
		protected.Use(AuthMiddleware(svc.Auth, logger))
	}

	if svc.Groups != nil {
		groupHandlers := NewGroupHandlers(svc.Groups, svc.Router, logger)
		protected.POST("/groups", groupHandlers.CreateGroup)
		protected.GET("/groups/user/:username", groupHandlers.ListUserGroups)
		protected.GET("/groups/:id", groupHandlers.GetGroup)
		protected.POST("/groups/:id/members", groupHandlers.AddMember)
		protected.DELETE("/groups/:id/members/:username", groupHandlers.RemoveMember)

		if svc.Messages != nil {
			messageHandlers := NewMessageHandlers(svc.Messages, svc.Groups, svc.Router, logger)
			protected.GET("/messages", messageHandlers.ListMessages)
			protected.POST("/messages", messageHandlers.PostMessage)
		}
	}

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(svc.Router, svc.Auth, cfg, logger))
	mux.Handle("/", engine)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
