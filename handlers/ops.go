package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/filconv/filconv/pkg/logger"
)

// GetBootID lets clients notice a restart and drop their cached login.
func (s *Server) GetBootID(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bootId": s.BootID.Int64()})
}

func (s *Server) Health(c *gin.Context) {
	c.String(http.StatusOK, "healthy")
}

// Ready returns 200 only when every configured dependency answers.
func (s *Server) Ready(c *gin.Context) {
	ready := true
	deps := map[string]bool{}

	names := make([]string, 0, len(s.Checks))
	for name := range s.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		err := s.Checks[name](ctx)
		cancel()
		deps[name] = err == nil
		if err != nil {
			logger.Warnf("ready: %s: %v", name, err)
			ready = false
		}
	}
	deps["users"] = s.Users != nil
	deps["sessions"] = s.Sessions != nil
	deps["cloudconvertKey"] = s.Config != nil && s.Config.CloudConvert.APIKey != ""

	uptime := time.Since(s.started).String()
	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": uptime})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": uptime})
}
