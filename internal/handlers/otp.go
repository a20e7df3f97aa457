package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	apierrors "github.com/zfogg/blog/backend/internal/errors"
	"github.com/zfogg/blog/backend/internal/otp"
	"github.com/zfogg/blog/backend/internal/util"
)

// otpError maps otp.Service sentinels onto API errors, keeping their
// messages verbatim.
func otpError(err error) error {
	switch {
	case errors.Is(err, otp.ErrUserNotFound):
		return apierrors.NotFound(err.Error())
	case errors.Is(err, otp.ErrNoEmail),
		errors.Is(err, otp.ErrNotProvisioned),
		errors.Is(err, otp.ErrQRCodeMissing),
		errors.Is(err, otp.ErrInvalidCode),
		errors.Is(err, otp.ErrInvalidLoginCode),
		errors.Is(err, otp.ErrMissingCredentials):
		return apierrors.ValidationError("otp", err.Error())
	}
	return err
}

type otpCodeRequest struct {
	OTP string `json:"otp"`
}

type twoFactorRequest struct {
	Enabled *bool `json:"enabled"`
	Bool    *bool `json:"bool"`
}

type otpLoginRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// GenerateQRCode provisions a TOTP secret and returns the QR image URL
// GET /api/v1/auth/otp/qr
func (h *Handlers) GenerateQRCode(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	url, err := h.otp.Provision(requestContext(c), user)
	if err != nil {
		util.RespondWithError(c, otpError(err))
		return
	}
	respondOK(c, url)
}

// ResetOTP arms a fresh one-time login code
// POST /api/v1/auth/otp/reset
func (h *Handlers) ResetOTP(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	if err := h.otp.Reset(requestContext(c), user, c.ClientIP()); err != nil {
		util.RespondWithError(c, otpError(err))
		return
	}
	respondOK(c, "OTP Reset Successfully for user")
}

// VerifyOTP checks a code against the caller's secret
// POST /api/v1/auth/otp/verify
func (h *Handlers) VerifyOTP(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req otpCodeRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.otp.Verify(requestContext(c), user, strings.TrimSpace(req.OTP)); err != nil {
		util.RespondWithError(c, otpError(err))
		return
	}
	respondOK(c, "OTP Verified")
}

// DisableOTP clears the caller's OTP state after checking a code
// POST /api/v1/auth/otp/disable
func (h *Handlers) DisableOTP(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req otpCodeRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.otp.Disable(requestContext(c), user, strings.TrimSpace(req.OTP)); err != nil {
		util.RespondWithError(c, otpError(err))
		return
	}
	respondOK(c, "Two Factor Authentication Disabled")
}

// Set2FA turns the login second factor on or off
// POST /api/v1/auth/otp/2fa
func (h *Handlers) Set2FA(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req twoFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}
	enabled := req.Enabled
	if enabled == nil {
		enabled = req.Bool
	}
	if enabled == nil {
		util.RespondValidationError(c, "enabled", "enabled must be true or false.")
		return
	}

	if err := h.otp.SetTwoFactor(requestContext(c), user, *enabled); err != nil {
		util.RespondWithError(c, otpError(err))
		return
	}
	if *enabled {
		respondOK(c, "2FA Activated")
		return
	}
	respondOK(c, "2FA Disabled")
}

// OTPLogin signs in with email and a one-time code
// POST /api/v1/auth/otp/login
func (h *Handlers) OTPLogin(c *gin.Context) {
	var req otpLoginRequest
	_ = c.ShouldBindJSON(&req)

	tokens, err := h.otp.LoginByOTP(requestContext(c), strings.TrimSpace(req.Email), strings.TrimSpace(req.OTP))
	if err != nil {
		util.RespondWithError(c, otpError(err))
		return
	}
	respondOK(c, tokens)
}
