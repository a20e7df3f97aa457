package search

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/zfogg/blog/backend/internal/models"
)

// PostDocument is the indexed form of a post.
type PostDocument struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Keywords    string    `json:"keywords"`
	Slug        string    `json:"slug"`
	Category    string    `json:"category"`
	Author      string    `json:"author"`
	Status      string    `json:"status"`
	Views       int64     `json:"views"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PostToDocument flattens a post with its Category, User and Analytics
// preloaded. Missing associations leave their fields empty.
func PostToDocument(post *models.Post) PostDocument {
	doc := PostDocument{
		ID:          post.ID,
		Title:       post.Title,
		Description: post.Description,
		Content:     plainText(post.Content),
		Keywords:    post.Keywords,
		Slug:        post.Slug,
		Status:      string(post.Status),
		CreatedAt:   post.CreatedAt,
		UpdatedAt:   post.UpdatedAt,
	}
	if post.Category != nil {
		doc.Category = post.Category.Slug
	}
	if post.User != nil {
		doc.Author = post.User.Username
	}
	if post.Analytics != nil {
		doc.Views = post.Analytics.Views
	}
	return doc
}

// plainText drops markup so only the readable body is analyzed.
func plainText(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
