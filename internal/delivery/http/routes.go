package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/recipebox/backend/config"
	"github.com/recipebox/backend/internal/infrastructure/metrics"
	"github.com/recipebox/backend/internal/logging"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger zerolog.Logger, m *metrics.Metrics) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log := logging.Component(logger, "http")
	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(log))
	router.Use(MetricsMiddleware(m))
	router.Use(RecoveryMiddleware(log))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check and metrics are not rate limited
	router.GET("/health", handler.HealthCheck)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		recipes := v1.Group("/recipes")
		{
			recipes.GET("/search", handler.SearchRecipes)
			recipes.GET("/random", handler.RandomRecipes)
			recipes.GET("/diets", handler.ListDiets)
			recipes.GET("/types", handler.ListTypes)
			recipes.GET("/:id", handler.GetRecipe)
		}

		favorites := v1.Group("/favorites")
		{
			favorites.GET("", handler.ListFavorites)
			favorites.DELETE("", handler.ClearFavorites)
			favorites.POST("/toggle", handler.ToggleFavorite)
			favorites.GET("/:id", handler.GetFavorite)
		}
	}

	return router
}
