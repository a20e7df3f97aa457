package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/errors"
	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/util"
)

// APIKeyHeader carries the client key on every API request.
const APIKeyHeader = "X-API-Key"

// APIKey rejects requests whose X-API-Key is not one of keys. With no keys
// configured every request passes, which is the development setup.
func APIKey(keys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}

		supplied := c.GetHeader(APIKeyHeader)
		if supplied != "" {
			for _, key := range keys {
				if subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) == 1 {
					c.Next()
					return
				}
			}
		}

		logger.Log.Debug("Rejected API key", logger.WithIP(c.ClientIP()))
		util.RespondWithAPIError(c, errors.New(errors.ErrInvalidAPIKey, "Invalid or missing API key"))
	}
}
