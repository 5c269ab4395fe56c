package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Vibez0-CONNECT/vibez/internal/pkg/identity"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/response"
)

const (
	ContextKeyUserID   = "user_id"
	ContextKeyEmail    = "user_email"
	ContextKeyVerified = "user_verified"
)

// Auth returns a middleware that enforces identity-token authentication.
// Missing, malformed or expired tokens are rejected before any storage touch.
func Auth(verifier *identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := verifier.Parse(extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyEmail, claims.Email)
		c.Set(ContextKeyVerified, claims.Verified)
		c.Next()
	}
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(string)
	return id
}

// CurrentEmail extracts the authenticated user's email from context.
func CurrentEmail(c *gin.Context) string {
	v, _ := c.Get(ContextKeyEmail)
	email, _ := v.(string)
	return email
}

// IsAuthenticated returns true if the request has a valid auth token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != ""
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
