// Command convertsvc is the standalone conversion service. It converts
// uploads through CloudConvert and keeps each result for one download; the
// front server forwards POST /api/convert here when PROXY_UPSTREAM_URL is set.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/filconv/filconv/handlers"
	"github.com/filconv/filconv/internal/bootid"
	"github.com/filconv/filconv/internal/cloudconvert"
	"github.com/filconv/filconv/internal/config"
	"github.com/filconv/filconv/internal/convert"
	"github.com/filconv/filconv/internal/filestore"
	"github.com/filconv/filconv/internal/history"
	"github.com/filconv/filconv/pkg/logger"
	"github.com/filconv/filconv/pkg/metrics"
	"github.com/filconv/filconv/pkg/middleware"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.SetFormat(cfg.Log.Format)
	logger.Init(cfg.Log.Level)

	port := os.Getenv("CONVERTSVC_PORT")
	if port == "" {
		port = "3001"
	}
	cfg.Server.Port = port
	// this process is the upstream; it never forwards
	cfg.Proxy.UpstreamURL = ""
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	if cfg.CloudConvert.APIKey == "" {
		logger.Warnf("CLOUDCONVERT_API_KEY not set; every conversion will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store filestore.Store
	if cfg.Storage.Backend == "minio" {
		store, err = filestore.NewMinIO(ctx, filestore.MinIOConfig{
			Endpoint:  cfg.Storage.MinIOEndpoint,
			AccessKey: cfg.Storage.MinIOAccessKey,
			SecretKey: cfg.Storage.MinIOSecretKey,
			UseSSL:    cfg.Storage.MinIOUseSSL,
			Bucket:    cfg.Storage.MinIOBucket,
		})
	} else {
		store, err = filestore.NewLocal(cfg.Storage.Root)
	}
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}

	cc := cloudconvert.NewClient(cfg.CloudConvert.APIKey, cfg.CloudConvert.BaseURL, cfg.CloudConvert.SyncBaseURL, cfg.CloudConvert.PollInterval)
	rec := history.NewRecorder(history.NewMemoryRepository(1000))
	srv := handlers.NewServer(cfg, store, convert.NewService(store, cc, rec, cfg.CloudConvert.WaitTimeout), rec, bootid.New(time.Now()))
	if cfg.CloudConvert.APIKey != "" {
		srv.Checks["cloudconvert"] = cc.Ping
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	r := gin.New()
	r.Use(middleware.Recovery(), middleware.AccessLog())
	srv.RegisterConversion(r)

	janitor := &filestore.Janitor{
		Store:    store,
		MaxAge:   cfg.Storage.MaxAge,
		Interval: cfg.Storage.JanitorInterval,
		Areas:    []filestore.Area{filestore.Uploads, filestore.Downloads},
	}
	go janitor.Run(ctx)

	httpSrv := &http.Server{Addr: cfg.Server.Addr(), Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("conversion service listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
