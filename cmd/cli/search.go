package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"github.com/zfogg/blog/backend/internal/database"
	"github.com/zfogg/blog/backend/internal/dto"
	"github.com/zfogg/blog/backend/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Query and maintain the post search index",
}

var searchPostsCmd = &cobra.Command{
	Use:   "posts <query>",
	Short: "Search published posts through the API",
	Long: `Search published posts by title, description and content. The server
answers from Elasticsearch when configured, otherwise from the database.

Examples:
  blogctl search posts "gin middleware"
  blogctl search posts "redis" --page 2 --page-size 20`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		pageSize, _ := cmd.Flags().GetInt("page-size")
		return searchPosts(args[0], page, pageSize)
	},
}

var searchReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the posts index from the database",
	Long: `Write every published post to Elasticsearch. With --recreate the index is
dropped and recreated with the current mapping first. Requires
ELASTICSEARCH_URL.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		recreate, _ := cmd.Flags().GetBool("recreate")
		return reindex(cmd, recreate)
	},
}

func init() {
	searchCmd.AddCommand(searchPostsCmd)
	searchCmd.AddCommand(searchReindexCmd)

	searchPostsCmd.Flags().IntP("page", "p", 1, "Result page")
	searchPostsCmd.Flags().Int("page-size", 10, "Results per page")

	searchReindexCmd.Flags().Bool("recreate", false, "Drop and recreate the index first")
}

func searchPosts(query string, page, pageSize int) error {
	if query == "" {
		return fmt.Errorf("search query cannot be empty")
	}

	var envelope struct {
		Results struct {
			Count   int64              `json:"count"`
			Page    int                `json:"page"`
			Results []dto.PostListItem `json:"results"`
		} `json:"results"`
	}
	var apiErr struct {
		Error string `json:"error"`
	}

	req := newAPIClient().R().
		SetQueryParams(map[string]string{
			"q":         query,
			"p":         strconv.Itoa(page),
			"page_size": strconv.Itoa(pageSize),
		}).
		SetResult(&envelope).
		SetError(&apiErr)
	if apiKey != "" {
		req.SetHeader("X-API-Key", apiKey)
	}

	resp, err := req.Get("/api/v1/search/posts")
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error != "" {
			return fmt.Errorf("API error: %s", apiErr.Error)
		}
		return fmt.Errorf("API error: status %d", resp.StatusCode())
	}

	if output == "json" {
		fmt.Println(string(resp.Body()))
		return nil
	}
	printPostSearchResults(envelope.Results.Count, envelope.Results.Page, envelope.Results.Results)
	return nil
}

func newAPIClient() *resty.Client {
	return resty.New().
		SetBaseURL(apiURL).
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", "blogctl/0.1.0")
}

func printPostSearchResults(total int64, page int, posts []dto.PostListItem) {
	if len(posts) == 0 {
		printInfo("No posts found")
		return
	}

	printInfo("Found %d posts (page %d)\n", total, page)
	for _, post := range posts {
		category := ""
		if post.Category != nil {
			category = post.Category.Name
		}
		bold.Printf("  %s\n", post.Title)
		fmt.Printf("    slug: %s  category: %s  views: %d\n", post.Slug, category, post.ViewCount)
	}
}

func reindex(cmd *cobra.Command, recreate bool) error {
	if cfg.ElasticsearchURL == "" {
		return fmt.Errorf("ELASTICSEARCH_URL is not set")
	}

	client, err := search.NewClient(cfg.ElasticsearchURL)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if recreate {
		if err := client.DeleteIndex(ctx); err != nil {
			return fmt.Errorf("failed to delete index: %w", err)
		}
	}
	if err := client.InitializeIndices(ctx); err != nil {
		return fmt.Errorf("failed to initialize index: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	written, err := search.Reindex(ctx, db, client)
	if err != nil {
		return fmt.Errorf("reindex failed after %d posts: %w", written, err)
	}

	printSuccess("Indexed %d posts", written)
	return nil
}
