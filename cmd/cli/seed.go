package main

import (
	"github.com/spf13/cobra"
	"github.com/zfogg/blog/backend/internal/database"
	"github.com/zfogg/blog/backend/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate fake content for development",
}

var seedPostsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Generate published posts by the testeditor account",
	Long: `Generate published posts with fake text in random existing categories.
The testeditor account is created when missing.

Examples:
  blogctl seed posts
  blogctl seed posts --count 500`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		return withSeeder(func(s *seed.Seeder) error {
			if _, err := s.EnsureEditor(cmd.Context()); err != nil {
				return err
			}
			created, err := s.GeneratePosts(cmd.Context(), count)
			if err != nil {
				return err
			}
			printSuccess("%d posts generated", created)
			return nil
		})
	},
}

var seedAnalyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Fill every post with random analytics counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSeeder(func(s *seed.Seeder) error {
			updated, err := s.GenerateAnalytics(cmd.Context())
			if err != nil {
				return err
			}
			printSuccess("%d analytics generated", updated)
			return nil
		})
	},
}

func init() {
	seedCmd.AddCommand(seedPostsCmd)
	seedCmd.AddCommand(seedAnalyticsCmd)

	seedPostsCmd.Flags().IntP("count", "n", seed.DefaultPostCount, "Number of posts")
}

func withSeeder(fn func(*seed.Seeder) error) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	return fn(seed.NewSeeder(db))
}
