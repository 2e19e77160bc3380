package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/filconv/filconv/pkg/logger"
)

// AccessTokenCookie is the cookie the login route sets for browser clients.
const AccessTokenCookie = "access_token"

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// Blacklist reports revoked tokens.
type Blacklist interface {
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

// RawToken extracts the access token from "Authorization: Bearer" or the
// access token cookie. ok is false when a header is present but malformed.
func RawToken(c *gin.Context) (token string, ok bool) {
	if auth := c.GetHeader("Authorization"); auth != "" {
		scheme, rest, found := strings.Cut(auth, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(rest) == "" {
			return "", false
		}
		return strings.TrimSpace(rest), true
	}
	if v, err := c.Cookie(AccessTokenCookie); err == nil && v != "" {
		return v, true
	}
	return "", true
}

// AuthMiddleware returns a Gin middleware that verifies access tokens using
// the provided verifier and rejects revoked ones. bl may be nil.
func AuthMiddleware(ver Verifier, bl Blacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := RawToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}

		if bl != nil {
			revoked, err := bl.IsBlacklisted(c.Request.Context(), token)
			if err != nil {
				logger.Warnf("auth: blacklist check failed: %v", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "token check unavailable"})
				return
			}
			if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
				return
			}
		}

		idToken, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
			return
		}

		// Extract claims
		var claims map[string]interface{}
		if err := idToken.Claims(&claims); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "failed to parse claims"})
			return
		}

		c.Set("claims", claims)
		c.Set("token", token)
		c.Next()
	}
}

// OptionalAuth sets claims when a valid token is present and never rejects.
func OptionalAuth(ver Verifier, bl Blacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := RawToken(c)
		if !ok || token == "" || ver == nil {
			c.Next()
			return
		}
		if bl != nil {
			if revoked, err := bl.IsBlacklisted(c.Request.Context(), token); err != nil || revoked {
				c.Next()
				return
			}
		}
		if t, err := ver.Verify(c.Request.Context(), token); err == nil {
			var claims map[string]interface{}
			if t.Claims(&claims) == nil {
				c.Set("claims", claims)
				c.Set("token", token)
			}
		}
		c.Next()
	}
}

// Subject returns the "sub" claim set by the auth middlewares, or "".
func Subject(c *gin.Context) string {
	if v, ok := c.Get("claims"); ok {
		if cm, ok := v.(map[string]interface{}); ok {
			if sub, ok := cm["sub"].(string); ok {
				return sub
			}
		}
	}
	return ""
}
