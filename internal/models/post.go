package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Post is an article owned by an author and filed under one category.
type Post struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string     `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID  string     `gorm:"type:uuid;not null;index" json:"category_id"`
	Title       string     `gorm:"size:128;not null" json:"title"`
	Description string     `gorm:"size:256" json:"description"`
	Content     string     `gorm:"type:text" json:"content"`
	Thumbnail   string     `json:"thumbnail"`
	Keywords    string     `gorm:"size:128" json:"keywords"`
	Slug        string     `gorm:"size:128;uniqueIndex;not null" json:"slug"`
	Status      PostStatus `gorm:"size:10;not null;default:draft;index" json:"status"`

	User      *User          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Category  *Category      `gorm:"foreignKey:CategoryID;constraint:OnDelete:RESTRICT" json:"-"`
	Headings  []Heading      `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Analytics *PostAnalytics `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Post) TableName() string {
	return "posts"
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = PostStatusDraft
	}
	return nil
}

// Published scopes a query to published posts.
func Published(db *gorm.DB) *gorm.DB {
	return db.Where("posts.status = ?", PostStatusPublished)
}

// Heading is a table-of-contents entry of a post.
type Heading struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	PostID string `gorm:"type:uuid;not null;index" json:"post_id"`
	Title  string `gorm:"size:255;not null" json:"title"`
	Slug   string `gorm:"size:255" json:"slug"`
	Level  int    `gorm:"not null" json:"level"`
	Order  int    `gorm:"column:sort_order;not null;default:0" json:"order"`
}

func (Heading) TableName() string {
	return "headings"
}

func (h *Heading) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	return nil
}

// PostLike records that a user liked a post. One per (post, user).
type PostLike struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	PostID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_post_like_user" json:"post_id"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_post_like_user" json:"user_id"`
	Timestamp time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

func (PostLike) TableName() string {
	return "post_likes"
}

func (l *PostLike) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// SharePlatform is a destination a post can be shared to.
type SharePlatform string

const (
	PlatformFacebook SharePlatform = "facebook"
	PlatformTwitter  SharePlatform = "twitter"
	PlatformLinkedIn SharePlatform = "linkedin"
	PlatformWhatsApp SharePlatform = "whatsapp"
	PlatformOther    SharePlatform = "other"
)

// SharePlatforms lists the accepted platforms in display order.
var SharePlatforms = []SharePlatform{PlatformFacebook, PlatformTwitter, PlatformLinkedIn, PlatformWhatsApp, PlatformOther}

// ParseSharePlatform lowercases s and checks it against SharePlatforms.
// An empty string means "other".
func ParseSharePlatform(s string) (SharePlatform, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PlatformOther, true
	}
	for _, p := range SharePlatforms {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// PostShare records one share. Anonymous shares have a nil UserID.
type PostShare struct {
	ID        string        `gorm:"primaryKey;type:uuid" json:"id"`
	PostID    string        `gorm:"type:uuid;not null;index" json:"post_id"`
	UserID    *string       `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Platform  SharePlatform `gorm:"size:50;not null;default:other" json:"platform"`
	Timestamp time.Time     `gorm:"autoCreateTime" json:"timestamp"`
}

func (PostShare) TableName() string {
	return "post_shares"
}

func (s *PostShare) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// PostView is one deduplicated view. Anonymous viewers have an empty UserID so
// the (post, user, ip) unique index also covers them.
type PostView struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	PostID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_post_view_identity" json:"post_id"`
	UserID    string    `gorm:"size:36;not null;default:'';uniqueIndex:idx_post_view_identity" json:"user_id"`
	IPAddress string    `gorm:"size:64;not null;uniqueIndex:idx_post_view_identity" json:"ip_address"`
	Timestamp time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

func (PostView) TableName() string {
	return "post_views"
}

func (v *PostView) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}

// PostAnalytics is the denormalized counter row of a post.
type PostAnalytics struct {
	ID               string  `gorm:"primaryKey;type:uuid" json:"id"`
	PostID           string  `gorm:"type:uuid;uniqueIndex;not null" json:"post_id"`
	Views            int64   `gorm:"not null;default:0;index" json:"views"`
	Impressions      int64   `gorm:"not null;default:0" json:"impressions"`
	Clicks           int64   `gorm:"not null;default:0" json:"clicks"`
	ClickThroughRate float64 `gorm:"not null;default:0" json:"click_through_rate"`
	AvgTimeOnPage    float64 `gorm:"not null;default:0" json:"avg_time_on_page"`
	Likes            int64   `gorm:"not null;default:0" json:"likes"`
	Comments         int64   `gorm:"not null;default:0" json:"comments"`
	Shares           int64   `gorm:"not null;default:0" json:"shares"`
}

func (PostAnalytics) TableName() string {
	return "post_analytics"
}

func (a *PostAnalytics) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
