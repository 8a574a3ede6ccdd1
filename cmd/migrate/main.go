package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"
	"github.com/playmatatu/arena/internal/config"
	"github.com/playmatatu/arena/internal/migrations"
)

func main() {
	down := flag.Bool("down", false, "roll back every migration instead of applying them")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	if *down {
		if err := migrations.Down(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to roll back migrations: %v", err)
		}
		log.Println("Migrations rolled back")
		return
	}

	if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations applied")
}
