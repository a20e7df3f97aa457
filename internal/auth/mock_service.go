package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zfogg/blog/backend/internal/dto"
	"github.com/zfogg/blog/backend/internal/models"
)

// MockCall records a method call for assertion
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockAuthService is a mock implementation of AuthServiceInterface for testing.
// Tokens are "mock_token_<user id>" and validate against Users.
type MockAuthService struct {
	mu sync.Mutex

	// Call tracking
	Calls []MockCall

	// Configurable function overrides
	RegisterFunc      func(req dto.RegisterRequest) (*models.User, error)
	LoginFunc         func(req dto.LoginRequest) (*dto.LoginResponse, error)
	ValidateTokenFunc func(tokenString string) (*models.User, error)

	// Default error to return
	DefaultError error

	// Pre-configured users for testing, keyed by id
	Users map[string]*models.User
}

// NewMockAuthService creates a new mock auth service with sensible defaults
func NewMockAuthService() *MockAuthService {
	return &MockAuthService{
		Calls: make([]MockCall, 0),
		Users: make(map[string]*models.User),
	}
}

// recordCall records a method call for later assertion
func (m *MockAuthService) recordCall(method string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
}

// GetCallsForMethod returns calls for a specific method
func (m *MockAuthService) GetCallsForMethod(method string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []MockCall
	for _, call := range m.Calls {
		if call.Method == method {
			result = append(result, call)
		}
	}
	return result
}

// AssertCalled checks if a method was called at least once
func (m *MockAuthService) AssertCalled(method string) bool {
	return len(m.GetCallsForMethod(method)) > 0
}

// AddUser adds a test user and returns its bearer token.
func (m *MockAuthService) AddUser(user *models.User) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	m.Users[user.ID] = user
	return "mock_token_" + user.ID
}

func (m *MockAuthService) Register(ctx context.Context, req dto.RegisterRequest) (*models.User, error) {
	m.recordCall("Register", req)
	if m.RegisterFunc != nil {
		return m.RegisterFunc(req)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	for _, u := range m.Users {
		if u.Email == req.Email {
			return nil, ErrUserExists
		}
	}
	user := &models.User{Email: req.Email, Username: req.Username, Role: models.RoleCustomer, IsActive: true}
	m.AddUser(user)
	return user, nil
}

func (m *MockAuthService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	m.recordCall("Login", req)
	if m.LoginFunc != nil {
		return m.LoginFunc(req)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	for _, u := range m.Users {
		if u.Email == req.Email {
			tokens, _ := m.IssueTokens(u)
			return &dto.LoginResponse{TokenResponse: tokens}, nil
		}
	}
	return nil, ErrInvalidCredentials
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	m.recordCall("Refresh", refreshToken)
	user, err := m.ValidateToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return m.IssueTokens(user)
}

func (m *MockAuthService) IssueTokens(user *models.User) (*dto.TokenResponse, error) {
	m.recordCall("IssueTokens", user.ID)
	token := "mock_token_" + user.ID
	return &dto.TokenResponse{
		AccessToken:  token,
		RefreshToken: token,
		ExpiresAt:    time.Now().Add(AccessTokenTTL),
		User:         dto.ToUserResponse(user),
	}, nil
}

func (m *MockAuthService) ValidateToken(ctx context.Context, tokenString string) (*models.User, error) {
	m.recordCall("ValidateToken", tokenString)
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(tokenString)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.Users {
		if tokenString == "mock_token_"+id {
			return u, nil
		}
	}
	return nil, ErrInvalidToken
}

// Ensure MockAuthService implements AuthServiceInterface
var _ AuthServiceInterface = (*MockAuthService)(nil)
