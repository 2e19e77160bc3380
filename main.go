package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"github.com/filconv/filconv/handlers"
	"github.com/filconv/filconv/internal/bootid"
	"github.com/filconv/filconv/internal/cloudconvert"
	"github.com/filconv/filconv/internal/config"
	"github.com/filconv/filconv/internal/convert"
	"github.com/filconv/filconv/internal/filestore"
	"github.com/filconv/filconv/internal/sessions"
	"github.com/filconv/filconv/internal/tokens"
	"github.com/filconv/filconv/internal/users"
	"github.com/filconv/filconv/pkg/logger"
	"github.com/filconv/filconv/pkg/metrics"
	"github.com/filconv/filconv/pkg/middleware"
)

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	boot := bootid.New(time.Now())
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.SetFormat(cfg.Log.Format)
	logger.Init(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = randomSecret()
		logger.Warnf("JWT_SECRET not set; using a per-process secret, sessions end on restart")
	}
	logger.Infof("config loaded: storage=%s postgres=%v mongo=%v redis=%v proxy=%q cloudconvert_key=%v",
		cfg.Storage.Backend, cfg.Postgres.DSN != "", cfg.MongoDB.URI != "", cfg.RedisAddr() != "",
		cfg.Proxy.UpstreamURL, cfg.CloudConvert.APIKey != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := connect(ctx, cfg)
	defer d.close()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}
	if m, ok := store.(*filestore.MinIO); ok {
		d.checks["storage"] = m.Ping
	}

	cc := cloudconvert.NewClient(cfg.CloudConvert.APIKey, cfg.CloudConvert.BaseURL, cfg.CloudConvert.SyncBaseURL, cfg.CloudConvert.PollInterval)
	rec := d.historyRecorder(ctx, cfg)
	conv := convert.NewService(store, cc, rec, cfg.CloudConvert.WaitTimeout)

	srv := handlers.NewServer(cfg, store, conv, rec, boot)
	srv.Users = users.NewService(d.userRepository(ctx, cfg))
	srv.Sessions = sessions.NewService(d.sessionRepository(ctx, cfg))
	srv.Verifier = tokens.NewVerifier(cfg.JWT.Secret)
	srv.Blacklist = d.blacklist()
	srv.Checks = d.checks

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && d.redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			srv.Limiter = middleware.RedisRateLimitMiddleware(d.redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
		} else {
			srv.Limiter = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}

	r := gin.New()
	r.Use(middleware.Recovery(), middleware.AccessLog(), middleware.SecurityHeaders())
	srv.Register(r)

	janitor := &filestore.Janitor{Store: store, MaxAge: cfg.Storage.MaxAge, Interval: cfg.Storage.JanitorInterval}
	go janitor.Run(ctx)

	httpSrv := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposedHeaders:   []string{"Content-Disposition", "Content-Length"},
			AllowCredentials: false,
		}).Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("Server running on http://%s (boot id %d)", httpSrv.Addr, boot.Int64())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		logger.Fatalf("generate JWT secret: %v", err)
	}
	return hex.EncodeToString(b)
}

func openStore(ctx context.Context, cfg *config.Config) (filestore.Store, error) {
	if cfg.Storage.Backend == "minio" {
		logger.Infof("storing artifacts in MinIO bucket %s at %s", cfg.Storage.MinIOBucket, cfg.Storage.MinIOEndpoint)
		return filestore.NewMinIO(ctx, filestore.MinIOConfig{
			Endpoint:  cfg.Storage.MinIOEndpoint,
			AccessKey: cfg.Storage.MinIOAccessKey,
			SecretKey: cfg.Storage.MinIOSecretKey,
			UseSSL:    cfg.Storage.MinIOUseSSL,
			Bucket:    cfg.Storage.MinIOBucket,
		})
	}
	logger.Infof("storing artifacts under %s", cfg.Storage.Root)
	return filestore.NewLocal(cfg.Storage.Root)
}
