package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/zfogg/blog/backend/internal/config"
	"github.com/zfogg/blog/backend/internal/database"
	"github.com/zfogg/blog/backend/internal/logger"
	"gorm.io/gorm"
)

var (
	apiURL string = "http://localhost:8000"
	apiKey string
	output string = "text" // "text" or "json"
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "blogctl",
	Short: "blogctl - Operate the blog backend",
	Long: `blogctl manages accounts, analytics counters and the search index of the
blog backend. Most commands talk to the database configured by the same
environment variables as the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		if apiKey == "" && len(cfg.APIKeys) > 0 {
			apiKey = cfg.APIKeys[0]
		}
		return logger.Initialize(logger.Options{Level: cfg.LogLevel, Development: true})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", apiURL, "API server URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key (defaults to the first VALID_API_KEYS entry)")
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	// Add command groups
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(seedCmd)
}

// openDB connects to the configured database for commands that need it.
func openDB() (*gorm.DB, error) {
	if err := database.Initialize(cfg); err != nil {
		return nil, err
	}
	return database.DB, nil
}

func main() {
	defer logger.Close()
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
