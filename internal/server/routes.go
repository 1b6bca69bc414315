package server

import (
	"github.com/nulzo/llm-relay/internal/server/middleware"
	v1 "github.com/nulzo/llm-relay/internal/server/v1"
)

func (s *Server) setupRoutes() {
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.ErrorHandler(s.logger))

	healthHandler := v1.NewHealthHandler()
	s.router.GET("/health", healthHandler.Health)

	limiter := middleware.NewRateLimiter(
		s.config.RateLimit.RequestsPerSecond,
		s.config.RateLimit.Burst,
		s.logger,
	)

	api := s.router.Group("/v1")
	api.Use(middleware.Auth(s.config.Server.APIKeys))
	api.Use(limiter.Middleware())
	{
		gen := v1.NewGenerationHandler(s.engine)
		api.POST("/generate", gen.Generate)
		api.POST("/generate/batch", gen.GenerateBatch)

		providers := v1.NewProviderHandler(s.registry, s.monitor, s.engine)
		api.GET("/providers/status", providers.Status)
		api.POST("/providers/:name/configure", providers.Configure)
		api.POST("/providers/:name/test", providers.Test)

		models := v1.NewModelHandler(s.registry)
		api.GET("/models", models.List)

		usage := v1.NewUsageHandler(s.usage)
		api.GET("/usage", usage.Overview)
		api.GET("/usage/recent", usage.Recent)
	}
}
