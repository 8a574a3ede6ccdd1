package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/arena/internal/api/handlers"
	"github.com/playmatatu/arena/internal/config"
	"github.com/playmatatu/arena/internal/middleware"
	"github.com/redis/go-redis/v9"
)

// Services are the game services the routes dispatch to.
type Services struct {
	Matchmaker handlers.Matchmaking
	Sessions   handlers.Sessions
	Results    handlers.Results
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, svc Services, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] no-cache headers enabled for all routes")
	}

	router.GET("/health", handlers.HealthCheck(db, rdb))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(db, rdb))

		authed := v1.Group("")
		authed.Use(middleware.RequireAuth(cfg.JWTSecret))

		queue := authed.Group("/queue")
		{
			queue.POST("", handlers.EnterQueue(svc.Matchmaker))
			queue.DELETE("", handlers.CancelQueue(svc.Matchmaker))
			queue.GET("/status", handlers.GetQueueStatus(svc.Matchmaker))
			queue.POST("/lobby", handlers.CreateLobby(svc.Matchmaker))
			queue.POST("/lobby/join", handlers.JoinLobby(svc.Matchmaker))
		}
		authed.GET("/queues", handlers.ListQueues(svc.Matchmaker))

		game := authed.Group("/game")
		{
			game.POST("/single", handlers.StartSinglePlayer(svc.Matchmaker))
			game.GET("/current", handlers.GetCurrentGame(svc.Matchmaker))
			game.GET("/:id", handlers.GetGame(svc.Matchmaker))
			game.POST("/:id/result", handlers.SubmitResult(svc.Results))
		}

		authed.POST("/session/status", handlers.SessionStatus(svc.Sessions))
	}
}
