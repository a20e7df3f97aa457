package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zfogg/blog/backend/internal/dto"
	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	AccessTokenTTL  = 24 * time.Hour
	RefreshTokenTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrUsernameExists     = errors.New("username already taken")
	ErrUsernameRestricted = errors.New("username is not allowed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("account is disabled")
	ErrInvalidToken       = errors.New("invalid token")
)

// Service handles password authentication and the JWT pair.
type Service struct {
	users     repository.UserRepository
	jwtSecret []byte
	cost      int
	now       func() time.Time
}

// NewService creates a new authentication service
func NewService(users repository.UserRepository, jwtSecret []byte) *Service {
	return &Service{
		users:     users,
		jwtSecret: jwtSecret,
		cost:      bcrypt.DefaultCost,
		now:       time.Now,
	}
}

// SetPasswordCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func (s *Service) SetPasswordCost(cost int) {
	s.cost = cost
}

// Register creates an account with a password and an empty profile.
func (s *Service) Register(ctx context.Context, req dto.RegisterRequest) (*models.User, error) {
	if models.IsRestrictedUsername(req.Username) {
		return nil, ErrUsernameRestricted
	}
	if exists, err := s.users.EmailExists(ctx, req.Email); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	} else if exists {
		return nil, ErrUserExists
	}
	if exists, err := s.users.UsernameExists(ctx, req.Username); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	} else if exists {
		return nil, ErrUsernameExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Username:     strings.TrimSpace(req.Username),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: string(hash),
		Role:         models.RoleCustomer,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.Log.Info("User registered", logger.WithUserID(user.ID), zap.String("username", user.Username))
	return user, nil
}

// Login checks email and password. Accounts with 2FA enabled get a
// two_factor_required challenge instead of tokens.
func (s *Service) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	if user.TwoFactorEnabled {
		return &dto.LoginResponse{TwoFactorRequired: true}, nil
	}

	tokens, err := s.IssueTokens(user)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{TokenResponse: tokens}, nil
}

// IssueTokens mints an access/refresh pair for user.
func (s *Service) IssueTokens(user *models.User) (*dto.TokenResponse, error) {
	now := s.now()
	access, err := s.sign(user, tokenTypeAccess, now, AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(user, tokenTypeRefresh, now, RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &dto.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(AccessTokenTTL),
		User:         dto.ToUserResponse(user),
	}, nil
}

func (s *Service) sign(user *models.User, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     string(user.Role),
		"type":     tokenType,
		"exp":      now.Add(ttl).Unix(),
		"iat":      now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Refresh exchanges a refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	user, err := s.userFromToken(ctx, refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	return s.IssueTokens(user)
}

// ValidateToken validates an access token and returns the fresh account.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*models.User, error) {
	return s.userFromToken(ctx, tokenString, tokenTypeAccess)
}

func (s *Service) userFromToken(ctx context.Context, tokenString, wantType string) (*models.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if typ, _ := claims["type"].(string); typ != wantType {
		return nil, ErrInvalidToken
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}
