package dto

import (
	"time"

	"github.com/zfogg/blog/backend/internal/models"
)

// UserResponse is the public representation of an account.
type UserResponse struct {
	ID               string           `json:"id"`
	Email            string           `json:"email"`
	Username         string           `json:"username"`
	FirstName        string           `json:"first_name"`
	LastName         string           `json:"last_name"`
	Role             models.Role      `json:"role"`
	Verified         bool             `json:"verified"`
	TwoFactorEnabled bool             `json:"two_factor_enabled"`
	Profile          *ProfileResponse `json:"profile,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// ProfileResponse is the public profile of an account.
type ProfileResponse struct {
	Biography      string     `json:"biography"`
	Birthday       *time.Time `json:"birthday,omitempty"`
	ProfilePicture string     `json:"profile_picture"`
	BannerPicture  string     `json:"banner_picture"`
	Website        string     `json:"website"`
	Instagram      string     `json:"instagram"`
	Facebook       string     `json:"facebook"`
	Threads        string     `json:"threads"`
	LinkedIn       string     `json:"linkedin"`
	YouTube        string     `json:"youtube"`
	TikTok         string     `json:"tiktok"`
	GitHub         string     `json:"github"`
	GitLab         string     `json:"gitlab"`
}

// RegisterRequest for password registration
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Username  string `json:"username" binding:"required,min=3,max=30,alphanum"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
}

// LoginRequest for password login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest exchanges a refresh token for a new pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse is an access/refresh credential pair.
type TokenResponse struct {
	AccessToken  string        `json:"access"`
	RefreshToken string        `json:"refresh"`
	ExpiresAt    time.Time     `json:"expires_at"`
	User         *UserResponse `json:"user,omitempty"`
}

// LoginResponse is either a token pair or a second-factor challenge.
type LoginResponse struct {
	*TokenResponse
	TwoFactorRequired bool `json:"two_factor_required,omitempty"`
}

// ToUserResponse converts models.User to UserResponse (excludes sensitive fields)
func ToUserResponse(user *models.User) *UserResponse {
	if user == nil {
		return nil
	}
	return &UserResponse{
		ID:               user.ID,
		Email:            user.Email,
		Username:         user.Username,
		FirstName:        user.FirstName,
		LastName:         user.LastName,
		Role:             user.Role,
		Verified:         user.Verified,
		TwoFactorEnabled: user.TwoFactorEnabled,
		Profile:          ToProfileResponse(user.Profile),
		CreatedAt:        user.CreatedAt,
	}
}

func ToProfileResponse(p *models.UserProfile) *ProfileResponse {
	if p == nil {
		return nil
	}
	return &ProfileResponse{
		Biography:      p.Biography,
		Birthday:       p.Birthday,
		ProfilePicture: p.ProfilePicture,
		BannerPicture:  p.BannerPicture,
		Website:        p.Website,
		Instagram:      p.Instagram,
		Facebook:       p.Facebook,
		Threads:        p.Threads,
		LinkedIn:       p.LinkedIn,
		YouTube:        p.YouTube,
		TikTok:         p.TikTok,
		GitHub:         p.GitHub,
		GitLab:         p.GitLab,
	}
}
