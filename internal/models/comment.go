package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment belongs to a post and optionally replies to another comment.
// Deleting is soft: IsActive flips to false and replies are left alone.
type Comment struct {
	ID       string  `gorm:"primaryKey;type:uuid" json:"id"`
	UserID   string  `gorm:"type:uuid;not null;index" json:"user_id"`
	PostID   string  `gorm:"type:uuid;not null;index:idx_comment_post_active" json:"post_id"`
	ParentID *string `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Content  string  `gorm:"type:text;not null" json:"content"`
	IsActive bool    `gorm:"not null;default:true;index:idx_comment_post_active" json:"is_active"`

	User   *User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post   *Post    `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Parent *Comment `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Comment) TableName() string {
	return "comments"
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// ActiveReplies scopes a query to the active direct replies of commentID,
// newest first.
func ActiveReplies(commentID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("parent_id = ? AND is_active = ?", commentID, true).Order("created_at DESC")
	}
}
