package main

import (
	"fmt"
	"log"
	"os"

	"github.com/zfogg/blog/backend/internal/config"
	"github.com/zfogg/blog/backend/internal/database"
	"github.com/zfogg/blog/backend/internal/logger"
	"go.uber.org/zap"
)

func main() {
	// Parse command
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		runMigrationsUp()
	case "models":
		listModels()
	default:
		fmt.Println("Usage: migrate [up|models]")
		fmt.Println("  up     - Create or update every table and index")
		fmt.Println("  models - List the migrated models in dependency order")
		os.Exit(1)
	}
}

func runMigrationsUp() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Initialize(logger.Options{Level: cfg.LogLevel, Development: true}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("🔄 Connecting to database...", zap.String("driver", cfg.DBDriver))

	// Initialize database connection
	if err := database.Initialize(cfg); err != nil {
		logger.FatalWithFields("❌ Failed to connect to database", err)
	}
	defer database.Close()

	logger.Log.Info("📈 Running migrations...")

	// Run migrations
	if err := database.Migrate(database.DB); err != nil {
		logger.FatalWithFields("❌ Migration failed", err)
	}

	logger.Log.Info("✅ All migrations completed successfully!")
}

func listModels() {
	for _, model := range database.Models() {
		fmt.Printf("%T\n", model)
	}
}
