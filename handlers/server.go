package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/filconv/filconv/internal/bootid"
	"github.com/filconv/filconv/internal/config"
	"github.com/filconv/filconv/internal/convert"
	"github.com/filconv/filconv/internal/filestore"
	"github.com/filconv/filconv/internal/history"
	"github.com/filconv/filconv/internal/sessions"
	"github.com/filconv/filconv/internal/tokens"
	"github.com/filconv/filconv/internal/users"
	"github.com/filconv/filconv/pkg/logger"
	"github.com/filconv/filconv/pkg/middleware"
)

// Check reports whether a backing dependency is reachable.
type Check func(ctx context.Context) error

// Server holds everything the routes need. Users, Sessions, Verifier and
// Blacklist may be nil; the auth routes then answer 503.
type Server struct {
	Config    *config.Config
	Store     filestore.Store
	Convert   *convert.Service
	Users     *users.Service
	Sessions  *sessions.Service
	Verifier  *tokens.Verifier
	Blacklist sessions.Blacklist
	History   *history.Recorder
	BootID    bootid.ID
	// Proxy is the client used to forward /api/convert upstream.
	Proxy *http.Client
	// Checks feed /ready, keyed by dependency name.
	Checks map[string]Check
	// Limiter runs on every route after optional auth, so it can key on the
	// caller's subject.
	Limiter gin.HandlerFunc
	Now    func() time.Time

	started time.Time
}

func NewServer(cfg *config.Config, store filestore.Store, conv *convert.Service, rec *history.Recorder, id bootid.ID) *Server {
	return &Server{
		Config:  cfg,
		Store:   store,
		Convert: conv,
		History: rec,
		BootID:  id,
		Proxy:   &http.Client{},
		Checks:  map[string]Check{},
		Now:     time.Now,
		started: time.Now(),
	}
}

// Register mounts every route on r.
func (s *Server) Register(r *gin.Engine) {
	var optional gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if s.Verifier != nil {
		optional = middleware.OptionalAuth(s.Verifier, s.Blacklist)
	}

	r.Use(optional)
	if s.Limiter != nil {
		r.Use(s.Limiter)
	}

	work := r.Group("/")
	work.POST("/upload-convert", s.UploadConvert)
	work.POST("/merge-files", s.MergeFiles)
	work.POST("/api/convert", s.APIConvert)
	work.POST("/upload-for-edit", s.UploadForEdit)
	work.POST("/api/compress", s.CompressPDF)
	work.POST("/api/split", s.SplitPDF)
	work.POST("/split-pdf", s.SplitPDF)

	r.GET("/downloads/:filename", s.download(filestore.Downloads))
	r.GET("/download/compressed/:filename", s.download(filestore.Compressed))
	r.GET("/download/split/:filename", s.download(filestore.Split))
	r.GET("/download-pdf-for-edit/:fileId", s.DownloadForEdit)

	r.POST("/signup", s.Signup)
	r.POST("/login", s.Login)
	r.POST("/refresh", s.Refresh)
	r.POST("/logout", s.Logout)

	api := r.Group("/api")
	if s.Verifier != nil {
		api.GET("/me", middleware.AuthMiddleware(s.Verifier, s.Blacklist), s.Me)
		api.GET("/history", middleware.AuthMiddleware(s.Verifier, s.Blacklist), s.ListHistory)
		api.GET("/history/:id", middleware.AuthMiddleware(s.Verifier, s.Blacklist), s.GetHistory)
	} else {
		api.GET("/me", authUnavailable)
		api.GET("/history", authUnavailable)
		api.GET("/history/:id", authUnavailable)
	}

	r.GET("/boot-id", s.GetBootID)
	r.GET("/health", s.Health)
	r.GET("/ready", s.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	RegisterSwagger(r)

	if s.Config != nil && s.Config.Server.StaticDir != "" {
		files := http.FileServer(http.Dir(s.Config.Server.StaticDir))
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				c.String(http.StatusNotFound, "Not found")
				return
			}
			files.ServeHTTP(c.Writer, c.Request)
		})
	}
}

// RegisterConversion mounts only the conversion handoff routes, for the
// standalone conversion service the front server proxies /api/convert to.
func (s *Server) RegisterConversion(r *gin.Engine) {
	r.POST("/api/convert", s.APIConvert)
	r.GET("/downloads/:filename", s.download(filestore.Downloads))
	r.GET("/health", s.Health)
	r.GET("/ready", s.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func authUnavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "authentication not configured"})
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) download(area filestore.Area) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("filename")
		s.sendArtifact(c, area, name, "attachment", filestore.DisplayName(name), true, "File not found.")
	}
}

// sendArtifact streams area/name to the client. With single set the artifact
// is deleted once the body was written without error; a failed write keeps it
// for the janitor.
func (s *Server) sendArtifact(c *gin.Context, area filestore.Area, name, disposition, display string, single bool, missing string) {
	ctx := c.Request.Context()
	if _, err := filestore.CleanName(name); err != nil {
		c.String(http.StatusNotFound, missing)
		return
	}
	rc, info, err := s.Store.Open(ctx, area, name)
	if errors.Is(err, filestore.ErrNotFound) {
		c.String(http.StatusNotFound, missing)
		return
	}
	if err != nil {
		logger.Errorf("open %s/%s: %v", area, name, err)
		c.String(http.StatusInternalServerError, "Something broke!")
		return
	}

	c.Header("Content-Disposition", contentDisposition(disposition, display))
	c.Header("Content-Type", contentType(name))
	if info.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	c.Status(http.StatusOK)
	_, err = io.Copy(c.Writer, rc)
	rc.Close()
	if err != nil {
		logger.Errorf("Download error for %s: %v", name, err)
		return
	}
	if single {
		logger.Infof("File %s downloaded.", name)
		filestore.Discard(context.WithoutCancel(ctx), s.Store, area, name)
	}
}

// contentDisposition quotes ASCII names and falls back to RFC 5987 encoding
// for everything else.
func contentDisposition(kind, name string) string {
	for _, r := range name {
		if r > 0x7e || r < 0x20 {
			return fmt.Sprintf("%s; filename*=UTF-8''%s", kind, url.PathEscape(name))
		}
	}
	return fmt.Sprintf("%s; filename=%q", kind, name)
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// record stores a history entry for a local operation.
func (s *Server) record(c *gin.Context, op string, started time.Time, err error, inputs []string, output string) {
	e := history.Finish(op, started, err)
	e.InputNames = inputs
	e.OutputName = output
	e.UserID = middleware.Subject(c)
	s.History.Record(c.Request.Context(), e)
}
