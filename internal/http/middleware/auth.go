// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements AdminAuth, a static bearer-token check for the
// operator API. It is deliberately small: one shared token from config,
// compared in constant time. Requests without a configured token are always
// refused so a missing env var never exposes the admin surface.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// adminKey is the Gin context key set on authenticated admin requests.
const adminKey = "admin"

// AdminAuth returns a Gin middleware that requires
// "Authorization: Bearer <token>".
//
// Responses:
//   - 401 when the header is missing or malformed
//   - 403 when the token does not match, or no token is configured
func AdminAuth(token string) gin.HandlerFunc {
	want := []byte(strings.TrimSpace(token))
	return func(c *gin.Context) {
		reqID := c.Writer.Header().Get(requestIDHeader)

		auth := c.GetHeader("Authorization")
		scheme, got, found := strings.Cut(strings.TrimSpace(auth), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(got) == "" {
			c.Header("WWW-Authenticate", `Bearer realm="admin"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": reqID,
				"code":       "unauthorized",
				"message":    "missing bearer token",
			})
			return
		}

		if len(want) == 0 || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
			LoggerFrom(c).Warn().Str("ip", c.ClientIP()).Msg("admin token rejected")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"request_id": reqID,
				"code":       "forbidden",
				"message":    "invalid admin token",
			})
			return
		}

		c.Set(adminKey, true)
		c.Next()
	}
}

// IsAdmin reports whether AdminAuth accepted this request.
func IsAdmin(c *gin.Context) bool {
	v, ok := c.Get(adminKey)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
