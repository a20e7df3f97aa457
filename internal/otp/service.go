// Package otp implements the TOTP second factor of an account: provisioning
// a secret with its QR code, arming a one-time login code, verifying,
// disabling and OTP-only login.
package otp

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/zfogg/blog/backend/internal/dto"
	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/metrics"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/repository"
	"github.com/zfogg/blog/backend/internal/storage"
	"go.uber.org/zap"
)

const (
	Issuer = "Blog"

	period = 30
	skew   = 1

	qrSize = 200
)

var (
	ErrNoEmail            = errors.New("User has no email address.")
	ErrNotProvisioned     = errors.New("QR Code or OTP Base32 not found for user.")
	ErrQRCodeMissing      = errors.New("QR Code not found for user.")
	ErrInvalidCode        = errors.New("Error Verifying One Time Password")
	ErrInvalidLoginCode   = errors.New("Invalid OTP code.")
	ErrUserNotFound       = errors.New("User does not exist.")
	ErrMissingCredentials = errors.New("Both username and OTP code are required.")
)

// TokenIssuer mints the session pair after an OTP login.
type TokenIssuer interface {
	IssueTokens(user *models.User) (*dto.TokenResponse, error)
}

// Service drives the per-account OTP state machine:
// disabled -> provisioned -> armed -> verified-once.
type Service struct {
	users    repository.UserRepository
	uploader storage.Uploader
	tokens   TokenIssuer
	now      func() time.Time
}

func NewService(users repository.UserRepository, uploader storage.Uploader, tokens TokenIssuer) *Service {
	return &Service{users: users, uploader: uploader, tokens: tokens, now: time.Now}
}

// SetClock overrides the clock used for code generation and validation.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// armedTTL is how long a reset code stays checkable: exactly as long as TOTP
// validation with the allowed skew can still accept it.
const armedTTL = (skew + 1) * period * time.Second

func validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func qrKey(userID string) string {
	return fmt.Sprintf("qrcode/%s.png", userID)
}

// Provision generates a fresh secret, renders its provisioning URI as a PNG
// QR code, uploads it and stores both on the account. Returns the QR URL.
func (s *Service) Provision(ctx context.Context, user *models.User) (string, error) {
	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email == "" {
		return "", ErrNoEmail
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      Issuer,
		AccountName: email,
		Period:      period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return "", fmt.Errorf("failed to render QR code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}

	uploaded, err := s.uploader.Upload(ctx, qrKey(user.ID), buf.Bytes())
	if err != nil {
		return "", err
	}

	fields := map[string]interface{}{
		"otp_auth_url":   key.URL(),
		"otp_base32":     key.Secret(),
		"qr_code":        uploaded.URL,
		"login_otp":      "",
		"login_otp_used": false,
	}
	if err := s.users.UpdateFields(ctx, user.ID, fields); err != nil {
		return "", fmt.Errorf("failed to store TOTP secret: %w", err)
	}
	user.OTPAuthURL = key.URL()
	user.OTPBase32 = key.Secret()
	user.QRCode = uploaded.URL
	user.LoginOTP = ""
	user.LoginOTPUsed = false

	logger.Log.Info("OTP provisioned", logger.WithUserID(user.ID))
	return uploaded.URL, nil
}

// Reset arms the current code: its sha256 is stored as the expected login
// code. The plaintext is never persisted.
func (s *Service) Reset(ctx context.Context, user *models.User, ip string) error {
	if !user.OTPProvisioned() {
		return ErrNotProvisioned
	}

	now := s.now().UTC()
	code, err := totp.GenerateCodeCustom(user.OTPBase32, now, totp.ValidateOpts{
		Period:    period,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return fmt.Errorf("error generating TOTP: %w", err)
	}

	if user.LoginIP != "" && user.LoginIP != ip {
		logger.Log.Info("New login IP for user", logger.WithUserID(user.ID), logger.WithIP(ip))
	}

	fields := map[string]interface{}{
		"login_otp":      hashCode(code),
		"otp_created_at": now,
		"login_otp_used": false,
		"login_ip":       ip,
	}
	if err := s.users.UpdateFields(ctx, user.ID, fields); err != nil {
		return err
	}
	user.LoginOTP = hashCode(code)
	user.OTPCreatedAt = &now
	user.LoginOTPUsed = false
	user.LoginIP = ip
	return nil
}

// check validates code against the secret with one step of skew. The armed
// hash only rejects a replay of the reset code once it has been consumed.
func (s *Service) check(user *models.User, code string) bool {
	code = strings.TrimSpace(code)
	now := s.now().UTC()
	valid, err := totp.ValidateCustom(code, user.OTPBase32, now, validateOpts())
	if err != nil || !valid {
		return false
	}

	if !user.LoginOTPUsed || user.LoginOTP == "" || user.OTPCreatedAt == nil || now.Sub(*user.OTPCreatedAt) >= armedTTL {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(hashCode(code)), []byte(user.LoginOTP)) != 1
}

func (s *Service) consume(ctx context.Context, user *models.User) error {
	if err := s.users.UpdateFields(ctx, user.ID, map[string]interface{}{"login_otp_used": true}); err != nil {
		return err
	}
	user.LoginOTPUsed = true
	return nil
}

// Verify checks code and marks the OTP consumed.
func (s *Service) Verify(ctx context.Context, user *models.User, code string) error {
	if !user.OTPProvisioned() {
		return ErrNotProvisioned
	}
	ok := s.check(user, code)
	metrics.RecordOTPVerification(ok)
	if !ok {
		return ErrInvalidCode
	}
	return s.consume(ctx, user)
}

// Disable verifies code, then clears the whole second factor in one update.
func (s *Service) Disable(ctx context.Context, user *models.User, code string) error {
	if !user.OTPProvisioned() {
		return ErrNotProvisioned
	}
	ok := s.check(user, code)
	metrics.RecordOTPVerification(ok)
	if !ok {
		return ErrInvalidCode
	}

	fields := map[string]interface{}{
		"two_factor_enabled": false,
		"otp_auth_url":       "",
		"otp_base32":         "",
		"qr_code":            "",
		"login_otp":          "",
		"login_otp_used":     false,
		"otp_created_at":     nil,
	}
	if err := s.users.UpdateFields(ctx, user.ID, fields); err != nil {
		return err
	}
	if err := s.uploader.Delete(ctx, qrKey(user.ID)); err != nil {
		logger.WarnWithFields("Failed to delete QR code", err, logger.WithUserID(user.ID))
	}

	user.TwoFactorEnabled = false
	user.OTPAuthURL, user.OTPBase32, user.QRCode, user.LoginOTP = "", "", "", ""
	user.LoginOTPUsed = false
	user.OTPCreatedAt = nil
	return nil
}

// SetTwoFactor toggles whether password login requires the second factor.
func (s *Service) SetTwoFactor(ctx context.Context, user *models.User, enabled bool) error {
	if user.QRCode == "" {
		return ErrQRCodeMissing
	}
	if err := s.users.UpdateFields(ctx, user.ID, map[string]interface{}{"two_factor_enabled": enabled}); err != nil {
		return err
	}
	user.TwoFactorEnabled = enabled
	return nil
}

// LoginByOTP authenticates with email and a current code only.
func (s *Service) LoginByOTP(ctx context.Context, email, code string) (*dto.TokenResponse, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(code) == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	ok := user.OTPProvisioned() && s.check(user, code)
	metrics.RecordOTPVerification(ok)
	if !ok {
		logger.Log.Info("OTP login rejected", logger.WithUserID(user.ID), zap.Bool("provisioned", user.OTPProvisioned()))
		return nil, ErrInvalidLoginCode
	}
	if err := s.consume(ctx, user); err != nil {
		return nil, err
	}
	return s.tokens.IssueTokens(user)
}
