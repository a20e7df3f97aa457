package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InteractionType is what the actor did to the post.
type InteractionType string

const (
	InteractionView    InteractionType = "view"
	InteractionLike    InteractionType = "like"
	InteractionComment InteractionType = "comment"
	InteractionShare   InteractionType = "share"
)

// Valid reports whether t is a known interaction type.
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionView, InteractionLike, InteractionComment, InteractionShare:
		return true
	}
	return false
}

// InteractionCategory separates passive consumption from active engagement.
type InteractionCategory string

const (
	InteractionPassive InteractionCategory = "passive"
	InteractionActive  InteractionCategory = "active"
)

// DeviceType is the coarse client class derived from the User-Agent.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
)

// PostInteraction is one append-only entry of the interaction log.
// Unique on (user_id, post_id, interaction_type, comment_id); the index is
// created in database.Migrate because comment_id is nullable.
type PostInteraction struct {
	ID                  string              `gorm:"primaryKey;type:uuid" json:"id"`
	UserID              *string             `gorm:"type:uuid;index:idx_interaction_actor_time" json:"user_id,omitempty"`
	PostID              string              `gorm:"type:uuid;not null;index:idx_interaction_actor_time" json:"post_id"`
	CommentID           *string             `gorm:"type:uuid" json:"comment_id,omitempty"`
	InteractionType     InteractionType     `gorm:"size:20;not null;index" json:"interaction_type"`
	InteractionCategory InteractionCategory `gorm:"size:10;not null;default:passive" json:"interaction_category"`
	Weight              float64             `gorm:"not null;default:1" json:"weight"`
	Timestamp           time.Time           `gorm:"not null;index:idx_interaction_actor_time" json:"timestamp"`
	DeviceType          *DeviceType         `gorm:"size:10" json:"device_type,omitempty"`
	IPAddress           string              `gorm:"size:64;index" json:"ip_address,omitempty"`
	HourOfDay           int                 `json:"hour_of_day"`
	DayOfWeek           int                 `json:"day_of_week"` // Monday = 0

	Post    *Post    `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Comment *Comment `gorm:"foreignKey:CommentID;constraint:OnDelete:SET NULL" json:"-"`
}

func (PostInteraction) TableName() string {
	return "post_interactions"
}

func (i *PostInteraction) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}
