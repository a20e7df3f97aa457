package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the authorization role of an account.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleHelper    Role = "helper"
	RoleEditor    Role = "editor"
	RoleCustomer  Role = "customer"
	RoleSeller    Role = "seller"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleModerator, RoleHelper, RoleEditor, RoleCustomer, RoleSeller}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RestrictedUsernames cannot be registered.
var RestrictedUsernames = []string{"admin", "undefined", "null", "superuser", "root", "system"}

// IsRestrictedUsername reports whether username is reserved (case-insensitive).
func IsRestrictedUsername(username string) bool {
	u := strings.ToLower(strings.TrimSpace(username))
	for _, r := range RestrictedUsernames {
		if u == r {
			return true
		}
	}
	return false
}

// User is an account. The OTP columns hold the 2FA state machine:
// disabled (no secret) -> provisioned (secret + QR) -> armed (login_otp hash set)
// -> verified-once (login_otp_used).
type User struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	Username     string `gorm:"uniqueIndex;size:100;not null" json:"username"`
	FirstName    string `gorm:"size:100" json:"first_name"`
	LastName     string `gorm:"size:100" json:"last_name"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         Role   `gorm:"size:20;default:customer;not null" json:"role"`
	Verified     bool   `gorm:"default:false" json:"verified"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`
	IsStaff      bool   `gorm:"default:false" json:"is_staff"`

	TwoFactorEnabled bool       `gorm:"column:two_factor_enabled;default:false" json:"two_factor_enabled"`
	OTPAuthURL       string     `gorm:"column:otp_auth_url" json:"-"`
	OTPBase32        string     `gorm:"column:otp_base32" json:"-"`
	QRCode           string     `gorm:"column:qr_code" json:"-"`
	LoginOTP         string     `gorm:"column:login_otp" json:"-"` // sha256 hex of the armed code
	LoginOTPUsed     bool       `gorm:"column:login_otp_used;default:false" json:"-"`
	OTPCreatedAt     *time.Time `gorm:"column:otp_created_at" json:"-"`
	LoginIP          string     `gorm:"column:login_ip;size:64" json:"-"`

	Profile *UserProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns the id and normalizes the email.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = RoleCustomer
	}
	return nil
}

// CanAuthor reports whether the account may create and edit posts.
func (u *User) CanAuthor() bool {
	return u != nil && u.Role != RoleCustomer
}

// IsAdmin reports whether the account has admin rights.
func (u *User) IsAdmin() bool {
	return u != nil && (u.Role == RoleAdmin || u.IsStaff)
}

// OTPProvisioned reports whether a secret and QR image exist.
func (u *User) OTPProvisioned() bool {
	return u.OTPBase32 != "" && u.QRCode != ""
}

// UserProfile holds the public profile of an account. One row per user,
// inserted together with the user.
type UserProfile struct {
	ID             string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID         string     `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Biography      string     `gorm:"type:text" json:"biography"`
	Birthday       *time.Time `json:"birthday,omitempty"`
	ProfilePicture string     `json:"profile_picture"`
	BannerPicture  string     `json:"banner_picture"`
	Website        string     `json:"website"`
	Instagram      string     `json:"instagram"`
	Facebook       string     `json:"facebook"`
	Threads        string     `json:"threads"`
	LinkedIn       string     `gorm:"column:linkedin" json:"linkedin"`
	YouTube        string     `gorm:"column:youtube" json:"youtube"`
	TikTok         string     `gorm:"column:tiktok" json:"tiktok"`
	GitHub         string     `gorm:"column:github" json:"github"`
	GitLab         string     `gorm:"column:gitlab" json:"gitlab"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}

func (p *UserProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
