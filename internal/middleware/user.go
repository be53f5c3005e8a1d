package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/pulsemetrics/pulseboard/pkg/errors"
	"github.com/pulsemetrics/pulseboard/pkg/response"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "user_id"

// UserHeader is the header the edge proxy sets after authenticating the
// request. The service trusts it; authentication itself happens upstream.
const UserHeader = "X-User-ID"

// RequireUser extracts the user id from the request and aborts with 401 when
// it is missing. The id is also accepted as a query parameter so websocket
// clients that cannot set headers can connect.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserHeader))
		if userID == "" {
			userID = strings.TrimSpace(c.Query("user_id"))
		}
		if userID == "" {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID returns the user id set by RequireUser.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
