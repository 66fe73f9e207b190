package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"kilnworks-backend/config"
	"kilnworks-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, server config.ServerConfig, auth config.AuthConfig, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(logger))

	if len(server.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     server.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", mw.RequestIDHeader},
			ExposeHeaders:    []string{mw.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Only static reference data is cached; kiln and firing state never is.
	ttl := server.CacheTTL()
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	api := r.Group("/api")
	if server.RateLimitPerSec > 0 {
		api.Use(mw.RateLimiter(rate.Limit(server.RateLimitPerSec), server.RateLimitBurst))
	}
	{
		api.GET("/vapid_public_key", caching, handler.GetVAPIDPublicKey)

		// Stateless planner
		api.GET("/capacity/presets", caching, handler.GetPresets)
		api.POST("/capacity/total", handler.CalculateTotal)
		api.POST("/capacity/shelves", handler.PlanShelves)

		studio := api.Group("/studios/:studio_id")
		studio.Use(mw.StudioAuth(auth.StudioTokens))
		{
			studio.GET("/kilns", handler.ListKilns)
			studio.POST("/kilns", handler.CreateKiln)
			studio.GET("/kilns/:kiln_id", handler.GetKiln)
			studio.PUT("/kilns/:kiln_id/shelves", handler.ConfigureShelves)
			studio.POST("/kilns/:kiln_id/start", handler.StartFiring)

			studio.GET("/firings", handler.ListFirings)
			studio.POST("/firings", handler.ScheduleFiring)
			studio.POST("/firings/:firing_id/progress", handler.ProgressFiring)
			studio.POST("/firings/:firing_id/cancel", handler.CancelFiring)

			studio.GET("/subscriptions", handler.GetSubscription)
			studio.PUT("/subscriptions", handler.PutSubscription)
			studio.DELETE("/subscriptions", handler.DeleteSubscription)
		}
	}

	return r
}
