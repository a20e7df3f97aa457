package dto

import (
	"time"

	"github.com/zfogg/blog/backend/internal/models"
)

// CommentResponse is one comment of a listing. Replies is always empty;
// clients page through replies with the replies endpoint.
type CommentResponse struct {
	ID           string            `json:"id"`
	User         string            `json:"user"`
	Post         string            `json:"post"`
	PostTitle    string            `json:"post_title"`
	Parent       *string           `json:"parent"`
	Content      string            `json:"content"`
	IsActive     bool              `json:"is_active"`
	RepliesCount int64             `json:"replies_count"`
	Replies      []CommentResponse `json:"replies"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// CreateCommentRequest names the post by post_slug; slug is accepted too.
type CreateCommentRequest struct {
	PostSlug string `json:"post_slug"`
	Slug     string `json:"slug"`
	Content  string `json:"content"`
}

// TargetSlug returns whichever slug field was sent.
func (r CreateCommentRequest) TargetSlug() string {
	if r.PostSlug != "" {
		return r.PostSlug
	}
	return r.Slug
}

// CommentRequest targets an existing comment (edit or reply).
type CommentRequest struct {
	CommentID string `json:"comment_id"`
	Content   string `json:"content"`
}

// ToCommentResponse expects User and Post to be preloaded. replyCounts maps
// comment id to its active reply count.
func ToCommentResponse(c *models.Comment, replyCounts map[string]int64) CommentResponse {
	r := CommentResponse{
		ID:           c.ID,
		Post:         c.PostID,
		Parent:       c.ParentID,
		Content:      c.Content,
		IsActive:     c.IsActive,
		RepliesCount: replyCounts[c.ID],
		Replies:      []CommentResponse{},
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if c.User != nil {
		r.User = c.User.Username
	}
	if c.Post != nil {
		r.PostTitle = c.Post.Title
	}
	return r
}

func ToCommentResponses(comments []models.Comment, replyCounts map[string]int64) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, ToCommentResponse(&comments[i], replyCounts))
	}
	return out
}
