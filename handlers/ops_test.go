package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestBootIDStable(t *testing.T) {
	env := newTestEnv(t)
	var first, second map[string]int64
	require.NoError(t, json.Unmarshal(env.get("/boot-id").Body.Bytes(), &first))
	require.NoError(t, json.Unmarshal(env.get("/boot-id").Body.Bytes(), &second))
	require.Equal(t, int64(testBoot), first["bootId"])
	require.Equal(t, first, second)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/health")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "healthy", w.Body.String())

	env.srv.Checks["storage"] = func(context.Context) error { return nil }
	w = env.get("/ready")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status string          `json:"status"`
		Deps   map[string]bool `json:"deps"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ready", body.Status)
	require.True(t, body.Deps["storage"])
	require.False(t, body.Deps["cloudconvertKey"])

	env.srv.Checks["redis"] = func(context.Context) error { return errors.New("connection refused") }
	w = env.get("/ready")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "not_ready", body.Status)
	require.False(t, body.Deps["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "go_goroutines")
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>convert</h1>"), 0o644))

	env := newTestEnv(t)
	env.srv.Config.Server.StaticDir = dir
	r := gin.New()
	env.srv.Register(r)
	env.router = r

	require.NoError(t, os.WriteFile(filepath.Join(dir, "merge.html"), []byte("<h1>merge</h1>"), 0o644))

	w := env.get("/?username=alice")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "convert")

	w = env.get("/merge.html")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "merge")

	require.Equal(t, http.StatusNotFound, env.get("/nope.html").Code)
}

func TestAuthRoutesWithoutVerifier(t *testing.T) {
	env := newTestEnv(t)
	env.srv.Verifier = nil
	r := gin.New()
	env.srv.Register(r)
	env.router = r

	require.Equal(t, http.StatusServiceUnavailable, env.get("/api/me").Code)
}
