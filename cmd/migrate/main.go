package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/botforgehq/botforge/internal/config"
	"github.com/botforgehq/botforge/internal/repository/postgres"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Database.Engine == "sqlite" {
		fmt.Println("sqlite engine creates its schema on open, nothing to migrate")
		return
	}

	sourceURL := "file://migrations"
	if len(os.Args) > 1 {
		sourceURL = os.Args[1]
	}

	fmt.Printf("Migrating database at %s:%d...\n", cfg.Database.Host, cfg.Database.Port)

	if err := postgres.RunMigrations(cfg.Database.DSN(), sourceURL); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
}
