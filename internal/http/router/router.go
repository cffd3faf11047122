// Package router assembles the gin engine from the registered modules.
package router

import (
	"net/http"
	"strings"
	"time"

	apphttp "leaddesk_backend/internal/http"
	"leaddesk_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// New builds the engine: global middleware, health endpoints, then each
// module's routes under /api/v1.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(app))

	limiter := httpkit.NewIPRateLimiter(rate.Limit(50), 100, app.Logger)
	engine.Use(limiter.RateLimit())

	engine.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/api/ready", func(c *gin.Context) {
		if app.Health != nil {
			if err := app.Health.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	authMiddleware := httpkit.AuthRequired(app.Config)

	v1 := engine.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(authMiddleware)

	ctx := &apphttp.RouterContext{
		Engine:         engine,
		V1:             v1,
		Protected:      protected,
		Config:         app.Config,
		AuthMiddleware: authMiddleware,
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(ctx)
		app.Logger.Info("module routes registered", "module", module.Name())
	}

	return engine
}

func corsMiddleware(app *apphttp.App) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: app.Config.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}

	if app.Config.GetCORSAllowAll() {
		cfg.AllowOriginFunc = func(origin string) bool { return true }
	} else {
		cfg.AllowOriginFunc = func(origin string) bool {
			for _, allowed := range app.Config.GetCORSOrigins() {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		}
	}

	return cors.New(cfg)
}
