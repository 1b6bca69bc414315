package server

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/nulzo/llm-relay/internal/config"
	"github.com/nulzo/llm-relay/internal/dispatch"
	"github.com/nulzo/llm-relay/internal/health"
	"github.com/nulzo/llm-relay/internal/ledger"
	"github.com/nulzo/llm-relay/internal/registry"
	"github.com/nulzo/llm-relay/internal/server/validator"
)

// Server wires the HTTP surface over the dispatch engine and its supporting
// services.
type Server struct {
	router   *gin.Engine
	config   *config.Config
	logger   *zap.Logger
	engine   *dispatch.Engine
	registry *registry.Registry
	monitor  *health.Monitor
	usage    ledger.Service
}

func New(
	cfg *config.Config,
	logger *zap.Logger,
	engine *dispatch.Engine,
	reg *registry.Registry,
	mon *health.Monitor,
	usage ledger.Service,
) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	validator.Init()

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(otelgin.Middleware("llm-relay"))

	s := &Server{
		router:   router,
		config:   cfg,
		logger:   logger,
		engine:   engine,
		registry: reg,
		monitor:  mon,
		usage:    usage,
	}

	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
