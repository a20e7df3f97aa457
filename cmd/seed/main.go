package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/zfogg/blog/backend/internal/config"
	"github.com/zfogg/blog/backend/internal/database"
	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/seed"
	"go.uber.org/zap"
)

func usage() {
	fmt.Println("Usage: seed [dev|posts|analytics|clean] [-count N]")
	fmt.Println("  dev       - Seed development database with realistic data")
	fmt.Println("  posts     - Generate N fake posts by the testeditor account")
	fmt.Println("  analytics - Fill every post with random analytics counters")
	fmt.Println("  clean     - Remove all content and accounts (use with caution)")
}

func main() {
	// Parse command
	command := "dev"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	flags := flag.NewFlagSet("seed", flag.ExitOnError)
	count := flags.Int("count", seed.DefaultPostCount, "Number of posts for the posts command")
	_ = flags.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Initialize(logger.Options{Level: cfg.LogLevel, Development: true}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	// Initialize database connection
	if err := database.Initialize(cfg); err != nil {
		logger.FatalWithFields("❌ Failed to connect to database", err)
	}
	defer database.Close()

	if err := database.Migrate(database.DB); err != nil {
		logger.FatalWithFields("❌ Migration failed", err)
	}

	ctx := context.Background()
	seeder := seed.NewSeeder(database.DB)

	switch command {
	case "dev":
		logger.Log.Info("🌱 Seeding development database...")
		if err := seeder.SeedDev(ctx); err != nil {
			logger.FatalWithFields("❌ Seeding failed", err)
		}
		logger.Log.Info("✅ Development database seeded successfully!")
	case "posts":
		if _, err := seeder.EnsureEditor(ctx); err != nil {
			logger.FatalWithFields("❌ Failed to create the editor account", err)
		}
		created, err := seeder.GeneratePosts(ctx, *count)
		if err != nil {
			logger.FatalWithFields("❌ Post generation failed", err)
		}
		logger.Log.Info("✅ Posts generated", zap.Int("count", created))
	case "analytics":
		updated, err := seeder.GenerateAnalytics(ctx)
		if err != nil {
			logger.FatalWithFields("❌ Analytics generation failed", err)
		}
		logger.Log.Info("✅ Analytics generated", zap.Int("posts", updated))
	case "clean":
		logger.Log.Info("🧹 Cleaning seed data...")
		if err := seeder.Clean(ctx); err != nil {
			logger.FatalWithFields("❌ Clean failed", err)
		}
		logger.Log.Info("✅ Seed data cleaned successfully!")
	default:
		usage()
		os.Exit(1)
	}
}
