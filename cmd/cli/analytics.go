package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zfogg/blog/backend/internal/analytics"
	"github.com/zfogg/blog/backend/internal/cache"
	"github.com/zfogg/blog/backend/internal/database"
	"github.com/zfogg/blog/backend/internal/models"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Inspect and repair analytics counters",
}

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Write buffered impression counters from Redis to the database",
	Long: `Write buffered impression counters from Redis to the database now instead
of waiting for the server's flush schedule. Requires REDIS_HOST.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return flushImpressions(cmd)
	},
}

var recountCmd = &cobra.Command{
	Use:   "recount",
	Short: "Recompute comment counters from active comments",
	Long: `Recompute the comments counter of every post (or one post with --slug)
from its active comments.

Examples:
  blogctl analytics recount
  blogctl analytics recount --slug hello-world`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		slug, _ := cmd.Flags().GetString("slug")
		return recountComments(cmd, slug)
	},
}

var ctrCmd = &cobra.Command{
	Use:   "ctr",
	Short: "List the posts with the best click-through rate",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		minImpressions, _ := cmd.Flags().GetInt64("min-impressions")
		limit, _ := cmd.Flags().GetInt("limit")
		return topCTR(cmd, minImpressions, limit)
	},
}

func init() {
	analyticsCmd.AddCommand(flushCmd)
	analyticsCmd.AddCommand(recountCmd)
	analyticsCmd.AddCommand(ctrCmd)

	recountCmd.Flags().String("slug", "", "Only recount this post")

	ctrCmd.Flags().Int64("min-impressions", 100, "Ignore posts with fewer impressions")
	ctrCmd.Flags().IntP("limit", "l", 10, "Maximum number of posts")
}

func flushImpressions(cmd *cobra.Command) error {
	if cfg.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is not set; impressions are only buffered in Redis")
	}

	store, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
	if err != nil {
		return err
	}
	defer store.Close()

	db, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	flusher := analytics.NewFlusher(store, analytics.NewService(db), cfg.ImpressionFlushSchedule)
	result, err := flusher.Flush(cmd.Context())
	if err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}

	printSuccess("Flushed %d impressions (%d posts, %d categories)", result.Total, result.Posts, result.Categories)
	return nil
}

func recountComments(cmd *cobra.Command, slug string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	q := db.WithContext(cmd.Context()).Model(&models.Post{})
	if slug != "" {
		q = q.Where("slug = ?", slug)
	}
	var posts []models.Post
	if err := q.Select("id", "slug").Find(&posts).Error; err != nil {
		return err
	}
	if slug != "" && len(posts) == 0 {
		return fmt.Errorf("post %s does not exist", slug)
	}

	service := analytics.NewService(db)
	for _, post := range posts {
		count, err := service.RecountComments(cmd.Context(), post.ID)
		if err != nil {
			return fmt.Errorf("failed to recount %s: %w", post.Slug, err)
		}
		if output != "json" {
			fmt.Printf("  %-40s %d\n", post.Slug, count)
		}
	}

	printSuccess("Recounted comments for %d posts", len(posts))
	return nil
}

func topCTR(cmd *cobra.Command, minImpressions int64, limit int) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	rows, err := analytics.TopPostsByCTR(cmd.Context(), db, minImpressions, limit)
	if err != nil {
		return err
	}

	if output == "json" {
		body, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		return nil
	}

	if len(rows) == 0 {
		printInfo("No posts with at least %d impressions", minImpressions)
		return nil
	}
	printHeader("%-40s %12s %8s %8s", "SLUG", "IMPRESSIONS", "CLICKS", "CTR")
	for _, row := range rows {
		fmt.Printf("%-40s %12d %8d %7.2f%%\n", row.Slug, row.Impressions, row.Clicks, row.CTR)
	}
	return nil
}
