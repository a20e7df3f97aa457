package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category is a node of the category tree. Roots have a nil ParentID.
type Category struct {
	ID          string  `gorm:"primaryKey;type:uuid" json:"id"`
	ParentID    *string `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Name        string  `gorm:"size:255;not null" json:"name"`
	Title       string  `gorm:"size:255" json:"title"`
	Description string  `gorm:"type:text" json:"description"`
	Thumbnail   string  `json:"thumbnail"`
	Slug        string  `gorm:"size:128;uniqueIndex;not null" json:"slug"`

	Parent    *Category          `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
	Analytics *CategoryAnalytics `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Category) TableName() string {
	return "categories"
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// CategoryView is one deduplicated view of a category, keyed by IP.
type CategoryView struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	CategoryID string    `gorm:"type:uuid;not null;uniqueIndex:idx_category_view_identity" json:"category_id"`
	IPAddress  string    `gorm:"size:64;not null;uniqueIndex:idx_category_view_identity" json:"ip_address"`
	Timestamp  time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

func (CategoryView) TableName() string {
	return "category_views"
}

func (v *CategoryView) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}

// CategoryAnalytics is the denormalized counter row of a category.
type CategoryAnalytics struct {
	ID               string  `gorm:"primaryKey;type:uuid" json:"id"`
	CategoryID       string  `gorm:"type:uuid;uniqueIndex;not null" json:"category_id"`
	Views            int64   `gorm:"not null;default:0" json:"views"`
	Impressions      int64   `gorm:"not null;default:0" json:"impressions"`
	Clicks           int64   `gorm:"not null;default:0" json:"clicks"`
	ClickThroughRate float64 `gorm:"not null;default:0" json:"click_through_rate"`
	AvgTimeOnPage    float64 `gorm:"not null;default:0" json:"avg_time_on_page"`
}

func (CategoryAnalytics) TableName() string {
	return "category_analytics"
}

func (a *CategoryAnalytics) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
