package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/playmatatu/arena/internal/api"
	"github.com/playmatatu/arena/internal/config"
	"github.com/playmatatu/arena/internal/database"
	"github.com/playmatatu/arena/internal/events"
	"github.com/playmatatu/arena/internal/game"
	"github.com/playmatatu/arena/internal/migrations"
	"github.com/playmatatu/arena/internal/redis"
	"github.com/playmatatu/arena/internal/store"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		log.Println("Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Events are best effort: without Redis the service still pairs players.
	var (
		rdb *goredis.Client
		pub events.Publisher = events.Nop{}
	)
	if cfg.RedisURL != "" {
		rdb, err = redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("[EVENTS] Redis unavailable, events disabled: %v", err)
		} else {
			defer rdb.Close()
			pub = events.NewRedisPublisher(rdb, cfg.EventsChannel)
		}
	}

	queues := store.NewQueueStore()
	games := store.NewGameStore()
	matchmaker := game.NewMatchmaker(db, queues, games, pub)
	reconciler := game.NewReconciler(db, queues, games)
	recorder := game.NewRecorder(db, queues, games, pub)

	janitor := game.NewJanitor(db, queues, games, pub,
		time.Duration(cfg.QueueExpiryMinutes)*time.Minute,
		time.Duration(cfg.GameExpiryMinutes)*time.Minute,
		time.Duration(cfg.JanitorIntervalSeconds)*time.Second)
	if err := janitor.Start(ctx); err != nil {
		log.Fatalf("Failed to start queue janitor: %v", err)
	}
	defer janitor.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, api.Services{
		Matchmaker: matchmaker,
		Sessions:   reconciler,
		Results:    recorder,
	}, db, rdb, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting arena server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
