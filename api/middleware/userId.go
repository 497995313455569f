package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

var UserIdHeaders = []string{"X-MAILTRACK-USER-ID", "X-User-Id"}

// UserIdMiddleware picks the caller's user id from a header or the userId
// query parameter. Handlers with a JSON body fall back to the body field.
func UserIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := ""
		for _, header := range UserIdHeaders {
			if value := strings.TrimSpace(c.GetHeader(header)); value != "" {
				userId = value
				break
			}
		}
		if userId == "" {
			userId = strings.TrimSpace(c.Query("userId"))
		}

		c.Set("UserId", userId)
		c.Next()
	}
}
