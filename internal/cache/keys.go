package cache

import (
	"fmt"
	"strings"
)

// Tags group cache entries by the entity whose mutation makes them stale.
const (
	TagPosts      = "posts"
	TagCategories = "categories"
)

func PostTag(postID string) string {
	return "post:" + postID
}

func PostCommentsTag(postID string) string {
	return "post:" + postID + ":comments"
}

func CommentRepliesTag(commentID string) string {
	return "comment:" + commentID + ":replies"
}

func CategoryTag(categoryID string) string {
	return "category:" + categoryID
}

// Key joins parts into a cache key: Key("post_list", "go", "newest") ->
// "post_list:go:newest".
func Key(prefix string, parts ...string) string {
	return prefix + ":" + strings.Join(parts, ":")
}

// Counter keys read by the impression flusher.
const (
	PostImpressionsPrefix     = "post:impressions:"
	CategoryImpressionsPrefix = "category:impressions:"
)

func PostImpressionsKey(postID string) string {
	return PostImpressionsPrefix + postID
}

func CategoryImpressionsKey(categoryID string) string {
	return CategoryImpressionsPrefix + categoryID
}

// RateLimitKey buckets requests per client per window.
func RateLimitKey(clientIP string, window int64) string {
	return fmt.Sprintf("ratelimit:%s:%d", clientIP, window)
}
