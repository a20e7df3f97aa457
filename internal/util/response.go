package util

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/analytics"
	"github.com/zfogg/blog/backend/internal/errors"
	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RespondWithAPIError sends a structured API error response
func RespondWithAPIError(c *gin.Context, apiErr *errors.APIError) {
	fields := []zap.Field{
		zap.String("code", string(apiErr.Code)),
		zap.String("message", apiErr.Message),
		zap.String("path", c.FullPath()),
		zap.Int("status", apiErr.Status),
	}
	if apiErr.Field != "" {
		fields = append(fields, zap.String("field", apiErr.Field))
	}
	if apiErr.Status >= http.StatusInternalServerError {
		logger.Log.Error("API error", fields...)
	} else if apiErr.Status >= http.StatusBadRequest {
		logger.Log.Debug("API error", fields...)
	}
	metrics.RecordError(string(apiErr.Code))

	c.AbortWithStatusJSON(apiErr.Status, apiErr)
}

// RespondWithError maps a returned error onto the API error taxonomy. Errors
// that fit no category are logged in full and answered with a generic 500.
func RespondWithError(c *gin.Context, err error) {
	if apiErr, ok := errors.As(err); ok {
		RespondWithAPIError(c, apiErr)
		return
	}

	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		RespondWithAPIError(c, errors.NotFoundResource("Resource"))
	case stderrors.Is(err, analytics.ErrAnalyticsNotFound), stderrors.Is(err, analytics.ErrUnknownTarget):
		RespondWithAPIError(c, errors.NotFoundResource("Analytics"))
	case stderrors.Is(err, analytics.ErrAnomalousBehavior):
		RespondWithAPIError(c, errors.New(errors.ErrAnomalous, analytics.ErrAnomalousBehavior.Error()))
	default:
		if sentinel := matchSentinel(err, interactionErrors); sentinel != nil {
			RespondWithAPIError(c, errors.ValidationError("interaction_type", sentinel.Error()))
			return
		}
		logger.ErrorWithFields("Unhandled request error", err,
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		RespondWithAPIError(c, errors.InternalError(""))
	}
}

var interactionErrors = []error{
	analytics.ErrInvalidInteractionType,
	analytics.ErrCommentRequired,
	analytics.ErrCommentNotAllowed,
}

// matchSentinel returns the first sentinel err wraps, so wrap prefixes never
// reach the client.
func matchSentinel(err error, sentinels []error) error {
	for _, sentinel := range sentinels {
		if stderrors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

// RespondUnauthorized sends a 401 Unauthorized response
func RespondUnauthorized(c *gin.Context, message ...string) {
	msg := "user not authenticated"
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	RespondWithAPIError(c, errors.Unauthorized(msg))
}

// RespondNotFound sends a 404 with a verbatim message.
func RespondNotFound(c *gin.Context, message string) {
	RespondWithAPIError(c, errors.NotFound(message))
}

// RespondBadRequest sends a 400 Bad Request response
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithAPIError(c, errors.BadRequest(message))
}

// RespondForbidden sends a 403 Forbidden response
func RespondForbidden(c *gin.Context, message ...string) {
	msg := "forbidden"
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	RespondWithAPIError(c, errors.Forbidden(msg))
}

// RespondValidationError sends a 400 validation failure bound to field.
func RespondValidationError(c *gin.Context, field, message string) {
	RespondWithAPIError(c, errors.ValidationError(field, message))
}

// RespondMessage sends {"message": msg} with status.
func RespondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}
