package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/auth"
	"github.com/zfogg/blog/backend/internal/dto"
	apierrors "github.com/zfogg/blog/backend/internal/errors"
	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/util"
)

// authError maps auth.Service sentinels onto API errors.
func authError(err error) error {
	switch {
	case errors.Is(err, auth.ErrUserExists):
		return apierrors.Conflict("A user with this email already exists.")
	case errors.Is(err, auth.ErrUsernameExists):
		return apierrors.Conflict("A user with this username already exists.")
	case errors.Is(err, auth.ErrUsernameRestricted):
		return apierrors.ValidationError("username", "This username is not allowed.")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return apierrors.Unauthorized("Invalid email or password.")
	case errors.Is(err, auth.ErrInactiveUser):
		return apierrors.Forbidden("This account is disabled.")
	case errors.Is(err, auth.ErrInvalidToken):
		return apierrors.Unauthorized("Invalid or expired token.")
	}
	return err
}

// Register creates a password account and signs it in
// POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	user, err := h.auth.Register(requestContext(c), req)
	if err != nil {
		util.RespondWithError(c, authError(err))
		return
	}
	tokens, err := h.auth.IssueTokens(user)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	logger.Log.Info("User registered", logger.WithUserID(user.ID))
	respond(c, http.StatusCreated, tokens)
}

// Login checks email and password. Accounts with 2FA answer with a
// two_factor_required challenge.
// POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.auth.Login(requestContext(c), req)
	if err != nil {
		util.RespondWithError(c, authError(err))
		return
	}
	respondOK(c, resp)
}

// Refresh exchanges a refresh token for a new pair
// POST /api/v1/auth/refresh
func (h *Handlers) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	tokens, err := h.auth.Refresh(requestContext(c), req.RefreshToken)
	if err != nil {
		util.RespondWithError(c, authError(err))
		return
	}
	respondOK(c, tokens)
}

// Me returns the caller's account with its profile
// GET /api/v1/auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var account models.User
	if err := h.db.WithContext(requestContext(c)).Preload("Profile").First(&account, "id = ?", user.ID).Error; err != nil {
		util.RespondWithError(c, err)
		return
	}
	respondOK(c, dto.ToUserResponse(&account))
}
