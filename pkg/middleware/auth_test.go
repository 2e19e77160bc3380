package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// fakeToken implements Token
type fakeToken struct {
	data map[string]interface{}
}

func (t *fakeToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = t.data
		return nil
	}
	return fmt.Errorf("unsupported claims type")
}

// fakeVerifier implements Verifier
type fakeVerifier struct{}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	if raw == "goodtoken" || raw == "black-token" {
		return &fakeToken{data: map[string]interface{}{"sub": "user1", "email": "test@example.com"}}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

type fakeBlacklist map[string]bool

func (f fakeBlacklist) IsBlacklisted(_ context.Context, token string) (bool, error) {
	return f[token], nil
}

func serve(t *testing.T, mw gin.HandlerFunc, prep func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	g := gin.New()
	g.GET("/", mw, func(c *gin.Context) {
		claims, _ := c.Get("claims")
		resp, _ := json.Marshal(gin.H{"claims": claims, "sub": Subject(c)})
		c.Writer.Write(resp)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if prep != nil {
		prep(req)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestAuthMiddleware_NoHeader(t *testing.T) {
	rw := serve(t, AuthMiddleware(&fakeVerifier{}, nil), nil)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestAuthMiddleware_InvalidHeader(t *testing.T) {
	rw := serve(t, AuthMiddleware(&fakeVerifier{}, nil), func(r *http.Request) {
		r.Header.Set("Authorization", "BadHeader")
	})
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	rw := serve(t, AuthMiddleware(&fakeVerifier{}, nil), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer goodtoken")
	})
	require.Equal(t, http.StatusOK, rw.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Contains(t, got, "claims")
	require.Equal(t, "user1", got["sub"])
}

func TestAuthMiddleware_CookieToken(t *testing.T) {
	rw := serve(t, AuthMiddleware(&fakeVerifier{}, nil), func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "goodtoken"})
	})
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestAuthMiddleware_RejectsBlacklistedToken(t *testing.T) {
	rw := serve(t, AuthMiddleware(&fakeVerifier{}, fakeBlacklist{"black-token": true}), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer black-token")
	})
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestOptionalAuth(t *testing.T) {
	rw := serve(t, OptionalAuth(&fakeVerifier{}, nil), nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Contains(t, rw.Body.String(), `"sub":""`)

	rw = serve(t, OptionalAuth(&fakeVerifier{}, nil), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer goodtoken")
	})
	require.Contains(t, rw.Body.String(), `"sub":"user1"`)

	rw = serve(t, OptionalAuth(&fakeVerifier{}, fakeBlacklist{"black-token": true}), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer black-token")
	})
	require.Equal(t, http.StatusOK, rw.Code)
	require.Contains(t, rw.Body.String(), `"sub":""`)
}
