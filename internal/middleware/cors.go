package middleware

import (
	"log"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/playmatatu/arena/internal/config"
)

// CORSMiddleware returns a CORS middleware configured for the environment
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	log.Printf("[CORS] Environment: %s, FrontendURL: %s", cfg.Environment, cfg.FrontendURL)

	corsConfig := cors.Config{
		AllowMethods: []string{
			"GET", "POST", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization",
			"Accept", "Cache-Control", "X-Requested-With",
		},
		ExposeHeaders: []string{
			"Content-Length",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if cfg.Environment == "development" {
		corsConfig.AllowOrigins = []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		}
	}
	// FRONTEND_URL may list several origins separated by commas
	for _, origin := range strings.Split(cfg.FrontendURL, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" && !slices.Contains(corsConfig.AllowOrigins, origin) {
			corsConfig.AllowOrigins = append(corsConfig.AllowOrigins, origin)
		}
	}
	if len(corsConfig.AllowOrigins) == 0 {
		log.Printf("[CORS] No allowed origins configured; cross-origin requests will be rejected")
		corsConfig.AllowOrigins = []string{"http://localhost"}
	}
	if cfg.Environment != "development" {
		log.Printf("[CORS] Production allowed origins: %v", corsConfig.AllowOrigins)
	}

	return cors.New(corsConfig)
}
