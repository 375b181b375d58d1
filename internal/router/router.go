package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/classpoll/classpoll-backend/internal/config"
	"github.com/classpoll/classpoll-backend/internal/handler"
	"github.com/classpoll/classpoll-backend/internal/middleware"
	"github.com/classpoll/classpoll-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	WS    *handler.WSHandler
	State *handler.StateHandler
}

// SetupRouter configures the Gin routes: liveness endpoints, the WebSocket
// upgrade, and the read-only snapshot API.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// ─── Liveness (static bodies, outside the session core) ───────────
	startedAt := time.Now()
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"message":   "Live Polling Backend is running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(startedAt).Round(time.Second).String(),
		})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "message": "Server is running"})
	})

	// ─── Event Channel ─────────────────────────────────────────────────
	router.GET("/ws", handlers.WS.Stream)

	// ─── Read-Only Snapshot API (Rate Limited) ─────────────────────────
	apiLimiter := middleware.NewRateLimiter(30, time.Minute)
	api := router.Group("/api/v1")
	api.Use(apiLimiter.Middleware())
	{
		api.GET("/poll", handlers.State.GetCurrentPoll)
		api.GET("/history", handlers.State.GetHistory)
		api.GET("/participants", handlers.State.GetParticipants)
		api.GET("/eligibility", handlers.State.GetEligibility)
	}

	return router
}
