package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/filconv/filconv/internal/history"
	"github.com/filconv/filconv/internal/models"
	"github.com/filconv/filconv/internal/tokens"
	"github.com/filconv/filconv/internal/users"
	"github.com/filconv/filconv/pkg/logger"
	"github.com/filconv/filconv/pkg/middleware"
)

// RefreshTokenCookie carries the login session's refresh token.
const RefreshTokenCookie = "refresh_token"

// wantsJSON is true for API clients; browsers posting the HTML forms get
// redirects and plain-text errors.
func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

func (s *Server) authReady() bool {
	return s.Users != nil
}

func (s *Server) accessTTL() time.Duration {
	if s.Config != nil && s.Config.JWT.AccessTokenTTL > 0 {
		return s.Config.JWT.AccessTokenTTL
	}
	return 15 * time.Minute
}

func (s *Server) refreshTTL() time.Duration {
	if s.Config != nil && s.Config.JWT.RefreshTokenTTL > 0 {
		return s.Config.JWT.RefreshTokenTTL
	}
	return 7 * 24 * time.Hour
}

func (s *Server) secureCookies() bool {
	return s.Config != nil && s.Config.Server.Environment == "production"
}

func (s *Server) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl.Seconds()), "/", "", s.secureCookies(), true)
}

// Signup creates a user from the signup form and redirects to the
// registration confirmation page.
func (s *Server) Signup(c *gin.Context) {
	if !s.authReady() {
		c.String(http.StatusInternalServerError, "Signup failed")
		return
	}
	u, err := s.Users.Signup(c.Request.Context(), c.PostForm("username"), c.PostForm("email"), c.PostForm("password"))
	if err != nil {
		logger.Warnf("signup failed: %v", err)
		if wantsJSON(c) {
			status := http.StatusInternalServerError
			if errors.Is(err, users.ErrInvalidInput) {
				status = http.StatusBadRequest
			} else if errors.Is(err, users.ErrEmailTaken) {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"message": "Signup failed", "error": err.Error()})
			return
		}
		c.String(http.StatusInternalServerError, "Signup failed")
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusCreated, gin.H{"user": u})
		return
	}
	c.Redirect(http.StatusSeeOther, "/register-success.html?username="+url.QueryEscape(u.Username))
}

// Login checks the credentials, opens a session and sets the access and
// refresh cookies. The redirect still carries the username for the pages
// that read it from the query string.
func (s *Server) Login(c *gin.Context) {
	if !s.authReady() {
		c.String(http.StatusInternalServerError, "Server error")
		return
	}
	ctx := c.Request.Context()
	u, err := s.Users.Authenticate(ctx, c.PostForm("email"), c.PostForm("password"))
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		c.String(http.StatusUnauthorized, "No user found")
		return
	case errors.Is(err, users.ErrInvalidCredentials):
		c.String(http.StatusUnauthorized, "Invalid password")
		return
	case err != nil:
		logger.Errorf("login: %v", err)
		c.String(http.StatusInternalServerError, "Server error")
		return
	}

	access, refresh, err := s.issue(c, u)
	if err != nil {
		logger.Errorf("login: issue tokens: %v", err)
		c.String(http.StatusInternalServerError, "Server error")
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"accessToken":  access,
			"refreshToken": refresh,
			"user":         u,
			"expiresIn":    int(s.accessTTL().Seconds()),
		})
		return
	}
	c.Redirect(http.StatusSeeOther, "/index.html?username="+url.QueryEscape(u.Username))
}

// issue creates the refresh session and the access token and sets both
// cookies. Without a session store only the access token is issued.
func (s *Server) issue(c *gin.Context, u *models.User) (string, string, error) {
	if s.Config == nil {
		return "", "", errors.New("no config")
	}
	refresh := ""
	if s.Sessions != nil {
		var err error
		refresh, err = s.Sessions.CreateSession(c.Request.Context(), u.ID, u.Username, s.refreshTTL())
		if err != nil {
			return "", "", err
		}
	}
	access, err := tokens.GenerateAccessToken(s.Config, u, s.accessTTL())
	if err != nil {
		return "", "", err
	}
	s.setCookie(c, middleware.AccessTokenCookie, access, s.accessTTL())
	if refresh != "" {
		s.setCookie(c, RefreshTokenCookie, refresh, s.refreshTTL())
	}
	return access, refresh, nil
}

func refreshToken(c *gin.Context) string {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if strings.HasPrefix(c.ContentType(), "application/json") {
		_ = c.ShouldBindJSON(&req)
	}
	if req.RefreshToken != "" {
		return req.RefreshToken
	}
	if v, err := c.Cookie(RefreshTokenCookie); err == nil {
		return v
	}
	return ""
}

// Refresh exchanges a refresh token (cookie or JSON body) for a new access token.
func (s *Server) Refresh(c *gin.Context) {
	if !s.authReady() || s.Sessions == nil {
		authUnavailable(c)
		return
	}
	ctx := c.Request.Context()
	sess, err := s.Sessions.ValidateRefresh(ctx, refreshToken(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	u, err := s.Users.Get(ctx, sess.Sub)
	if err != nil || u == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
		return
	}
	access, err := tokens.GenerateAccessToken(s.Config, u, s.accessTTL())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	s.setCookie(c, middleware.AccessTokenCookie, access, s.accessTTL())
	c.JSON(http.StatusOK, gin.H{"access_token": access, "expires_in": int(s.accessTTL().Seconds())})
}

// Logout revokes the current access token, drops the refresh session and
// clears both cookies.
func (s *Server) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	if raw, ok := middleware.RawToken(c); ok && raw != "" && s.Verifier != nil && s.Blacklist != nil {
		if ttl := s.Verifier.RemainingTTL(raw); ttl > 0 {
			if err := s.Blacklist.Add(ctx, raw, ttl); err != nil {
				logger.Errorf("logout: blacklist access token: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to blacklist access token"})
				return
			}
		}
	}
	if s.Sessions != nil {
		if err := s.Sessions.DeleteRefresh(ctx, refreshToken(c)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove session"})
			return
		}
	}
	s.setCookie(c, middleware.AccessTokenCookie, "", -time.Second)
	s.setCookie(c, RefreshTokenCookie, "", -time.Second)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the user behind the access token, or its claims when the user
// record cannot be loaded.
func (s *Server) Me(c *gin.Context) {
	if s.Users != nil {
		if u, err := s.Users.Get(c.Request.Context(), middleware.Subject(c)); err == nil && u != nil {
			c.JSON(http.StatusOK, gin.H{"user": u})
			return
		}
	}
	// the account is gone or the store is down; answer from the token
	claims, _ := c.Get("claims")
	cm, _ := claims.(map[string]interface{})
	c.JSON(http.StatusOK, gin.H{"user": gin.H{
		"id":       tokens.ClaimString(cm, "sub"),
		"username": tokens.ClaimString(cm, "username"),
		"email":    tokens.ClaimString(cm, "email"),
	}})
}

// GetHistory returns one of the caller's operations.
func (s *Server) GetHistory(c *gin.Context) {
	e, err := s.History.Get(c.Request.Context(), middleware.Subject(c), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "history entry not found"})
		return
	}
	if err != nil {
		logger.Errorf("history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, e)
}

// ListHistory returns the caller's recent operations, newest first.
func (s *Server) ListHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := s.History.List(c.Request.Context(), middleware.Subject(c), limit)
	if err != nil {
		logger.Errorf("history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
