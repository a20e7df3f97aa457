package dto

import (
	"time"

	"github.com/zfogg/blog/backend/internal/models"
)

// CategoryResponse is the full representation of a category.
type CategoryResponse struct {
	ID          string    `json:"id"`
	ParentID    *string   `json:"parent,omitempty"`
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Thumbnail   string    `json:"thumbnail"`
	Slug        string    `json:"slug"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryListItem is one row of the category listing.
type CategoryListItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CategoryDetail is a category with its analytics snapshot.
type CategoryDetail struct {
	CategoryResponse
	Analytics *CategoryAnalyticsResponse `json:"analytics,omitempty"`
}

type CategoryAnalyticsResponse struct {
	CategoryName     string  `json:"category_name"`
	Views            int64   `json:"views"`
	Impressions      int64   `json:"impressions"`
	Clicks           int64   `json:"clicks"`
	ClickThroughRate float64 `json:"click_through_rate"`
	AvgTimeOnPage    float64 `json:"avg_time_on_page"`
}

type HeadingResponse struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
	Level int    `json:"level"`
	Order int    `json:"order"`
}

// PostListItem is one row of a post listing.
type PostListItem struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Thumbnail   string            `json:"thumbnail"`
	Slug        string            `json:"slug"`
	Category    *CategoryResponse `json:"category"`
	ViewCount   int64             `json:"view_count"`
}

// PostDetail is the full representation of a post.
type PostDetail struct {
	ID            string            `json:"id"`
	Author        string            `json:"user"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Content       string            `json:"content"`
	Thumbnail     string            `json:"thumbnail"`
	Keywords      string            `json:"keywords"`
	Slug          string            `json:"slug"`
	Status        models.PostStatus `json:"status"`
	Category      *CategoryResponse `json:"category"`
	Headings      []HeadingResponse `json:"headings"`
	CommentsCount int64             `json:"comments_count"`
	LikesCount    int64             `json:"likes_count"`
	ViewCount     int64             `json:"view_count"`
	HasLiked      bool              `json:"has_liked"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

type PostAnalyticsResponse struct {
	PostTitle        string  `json:"post_title"`
	Views            int64   `json:"views"`
	Impressions      int64   `json:"impressions"`
	Clicks           int64   `json:"clicks"`
	ClickThroughRate float64 `json:"click_through_rate"`
	AvgTimeOnPage    float64 `json:"avg_time_on_page"`
	Likes            int64   `json:"likes"`
	Comments         int64   `json:"comments"`
	Shares           int64   `json:"shares"`
}

// HeadingInput is one heading of an author create/update request.
type HeadingInput struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
	Level int    `json:"level"`
	Order int    `json:"order"`
}

// PostInput is the body of author create and update requests. On update only
// the non-empty fields change; Headings, when present, replace the old ones.
type PostInput struct {
	PostSlug    string          `json:"post_slug"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Content     string          `json:"content"`
	Thumbnail   string          `json:"thumbnail"`
	Keywords    string          `json:"keywords"`
	Slug        string          `json:"slug"`
	Category    string          `json:"category"`
	Status      string          `json:"status"`
	Headings    *[]HeadingInput `json:"headings"`
}

// SlugRequest is the body of the click counters and likes.
type SlugRequest struct {
	Slug string `json:"slug"`
}

func ToCategoryResponse(c *models.Category) *CategoryResponse {
	if c == nil {
		return nil
	}
	return &CategoryResponse{
		ID:          c.ID,
		ParentID:    c.ParentID,
		Name:        c.Name,
		Title:       c.Title,
		Description: c.Description,
		Thumbnail:   c.Thumbnail,
		Slug:        c.Slug,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func ToCategoryListItems(categories []models.Category) []CategoryListItem {
	items := make([]CategoryListItem, 0, len(categories))
	for _, c := range categories {
		items = append(items, CategoryListItem{ID: c.ID, Name: c.Name, Slug: c.Slug})
	}
	return items
}

func ToCategoryAnalyticsResponse(c *models.Category, a *models.CategoryAnalytics) *CategoryAnalyticsResponse {
	if a == nil {
		return nil
	}
	return &CategoryAnalyticsResponse{
		CategoryName:     c.Name,
		Views:            a.Views,
		Impressions:      a.Impressions,
		Clicks:           a.Clicks,
		ClickThroughRate: a.ClickThroughRate,
		AvgTimeOnPage:    a.AvgTimeOnPage,
	}
}

func ToHeadingResponses(headings []models.Heading) []HeadingResponse {
	out := make([]HeadingResponse, 0, len(headings))
	for _, h := range headings {
		out = append(out, HeadingResponse{Title: h.Title, Slug: h.Slug, Level: h.Level, Order: h.Order})
	}
	return out
}

// ToPostListItems expects Category and Analytics to be preloaded.
func ToPostListItems(posts []models.Post) []PostListItem {
	items := make([]PostListItem, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		item := PostListItem{
			ID:          p.ID,
			Title:       p.Title,
			Description: p.Description,
			Thumbnail:   p.Thumbnail,
			Slug:        p.Slug,
			Category:    ToCategoryResponse(p.Category),
		}
		if p.Analytics != nil {
			item.ViewCount = p.Analytics.Views
		}
		items = append(items, item)
	}
	return items
}

// ToPostDetail expects User, Category, Headings and Analytics to be
// preloaded. Counts come from the analytics row.
func ToPostDetail(p *models.Post, hasLiked bool) *PostDetail {
	d := &PostDetail{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Content:     p.Content,
		Thumbnail:   p.Thumbnail,
		Keywords:    p.Keywords,
		Slug:        p.Slug,
		Status:      p.Status,
		Category:    ToCategoryResponse(p.Category),
		Headings:    ToHeadingResponses(p.Headings),
		HasLiked:    hasLiked,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.User != nil {
		d.Author = p.User.Username
	}
	if p.Analytics != nil {
		d.CommentsCount = p.Analytics.Comments
		d.LikesCount = p.Analytics.Likes
		d.ViewCount = p.Analytics.Views
	}
	return d
}

func ToPostAnalyticsResponse(p *models.Post, a *models.PostAnalytics) *PostAnalyticsResponse {
	if a == nil {
		return nil
	}
	return &PostAnalyticsResponse{
		PostTitle:        p.Title,
		Views:            a.Views,
		Impressions:      a.Impressions,
		Clicks:           a.Clicks,
		ClickThroughRate: a.ClickThroughRate,
		AvgTimeOnPage:    a.AvgTimeOnPage,
		Likes:            a.Likes,
		Comments:         a.Comments,
		Shares:           a.Shares,
	}
}
