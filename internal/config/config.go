package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MaxEditUploadBytes is the editor upload cap (50 MiB).
const MaxEditUploadBytes = 50 << 20

// Config holds application configuration
type Config struct {
	Server       ServerConfig
	Storage      StorageConfig
	CloudConvert CloudConvertConfig
	Proxy        ProxyConfig
	Postgres     PostgresConfig
	MongoDB      MongoDBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	Log          LogConfig
}

type ServerConfig struct {
	Port          string
	Host          string
	Environment   string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	PublicBaseURL string
	StaticDir     string
}

type StorageConfig struct {
	Root            string
	Backend         string
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOBucket     string
	MinIOUseSSL     bool
	MaxEditUpload   int64
	JanitorInterval time.Duration
	MaxAge          time.Duration
}

type CloudConvertConfig struct {
	APIKey       string
	BaseURL      string
	SyncBaseURL  string
	PollInterval time.Duration
	WaitTimeout  time.Duration
}

type ProxyConfig struct {
	UpstreamURL string
}

type PostgresConfig struct {
	DSN string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from environment variables and an optional .env file.
// Nothing is required: unset backing services fall back to in-process implementations.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "3000")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 0)
	v.SetDefault("STORAGE_ROOT", "data")
	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("MINIO_BUCKET", "filconv")
	v.SetDefault("STORAGE_MAX_EDIT_UPLOAD", MaxEditUploadBytes)
	v.SetDefault("STORAGE_JANITOR_INTERVAL", 300)
	v.SetDefault("STORAGE_MAX_AGE", 1800)
	v.SetDefault("CLOUDCONVERT_BASE_URL", "https://api.cloudconvert.com")
	v.SetDefault("CLOUDCONVERT_SYNC_URL", "https://sync.api.cloudconvert.com")
	v.SetDefault("CLOUDCONVERT_POLL_INTERVAL", 1000)
	v.SetDefault("CLOUDCONVERT_WAIT_TIMEOUT", 600)
	v.SetDefault("MONGODB_DATABASE", "filconv")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	v.SetDefault("JWT_REFRESH_TOKEN_TTL", 10080)
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	cfg := &Config{
		Server: ServerConfig{
			Port:          v.GetString("SERVER_PORT"),
			Host:          v.GetString("SERVER_HOST"),
			Environment:   v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:   time.Duration(v.GetInt("SERVER_READ_TIMEOUT")) * time.Second,
			WriteTimeout:  time.Duration(v.GetInt("SERVER_WRITE_TIMEOUT")) * time.Second,
			PublicBaseURL: strings.TrimRight(v.GetString("SERVER_PUBLIC_BASE_URL"), "/"),
			StaticDir:     v.GetString("SERVER_STATIC_DIR"),
		},
		Storage: StorageConfig{
			Root:            v.GetString("STORAGE_ROOT"),
			Backend:         strings.ToLower(v.GetString("STORAGE_BACKEND")),
			MinIOEndpoint:   v.GetString("MINIO_ENDPOINT"),
			MinIOAccessKey:  v.GetString("MINIO_ACCESS_KEY"),
			MinIOSecretKey:  v.GetString("MINIO_SECRET_KEY"),
			MinIOBucket:     v.GetString("MINIO_BUCKET"),
			MinIOUseSSL:     v.GetBool("MINIO_USE_SSL"),
			MaxEditUpload:   v.GetInt64("STORAGE_MAX_EDIT_UPLOAD"),
			JanitorInterval: time.Duration(v.GetInt("STORAGE_JANITOR_INTERVAL")) * time.Second,
			MaxAge:          time.Duration(v.GetInt("STORAGE_MAX_AGE")) * time.Second,
		},
		CloudConvert: CloudConvertConfig{
			APIKey:       v.GetString("CLOUDCONVERT_API_KEY"),
			BaseURL:      strings.TrimRight(v.GetString("CLOUDCONVERT_BASE_URL"), "/"),
			SyncBaseURL:  strings.TrimRight(v.GetString("CLOUDCONVERT_SYNC_URL"), "/"),
			PollInterval: time.Duration(v.GetInt("CLOUDCONVERT_POLL_INTERVAL")) * time.Millisecond,
			WaitTimeout:  time.Duration(v.GetInt("CLOUDCONVERT_WAIT_TIMEOUT")) * time.Second,
		},
		Proxy: ProxyConfig{
			UpstreamURL: strings.TrimRight(v.GetString("PROXY_UPSTREAM_URL"), "/"),
		},
		Postgres: PostgresConfig{
			DSN: v.GetString("DATABASE_URL"),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:          v.GetString("JWT_SECRET"),
			AccessTokenTTL:  time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(v.GetInt("JWT_REFRESH_TOKEN_TTL")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	return cfg, nil
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// RedisAddr returns host:port, or "" when Redis is not configured.
func (c *Config) RedisAddr() string {
	if c.Redis.Host == "" {
		return ""
	}
	return net.JoinHostPort(c.Redis.Host, c.Redis.Port)
}

var ErrSelfProxy = errors.New("proxy upstream points at this server")

// Validate reports configuration mistakes that would make the server misbehave at runtime.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case "local", "":
	case "minio":
		if c.Storage.MinIOEndpoint == "" || c.Storage.MinIOBucket == "" {
			errs = append(errs, errors.New("STORAGE_BACKEND=minio requires MINIO_ENDPOINT and MINIO_BUCKET"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	if c.Proxy.UpstreamURL != "" {
		u, err := url.Parse(c.Proxy.UpstreamURL)
		if err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid PROXY_UPSTREAM_URL %q", c.Proxy.UpstreamURL))
		} else if c.pointsAtSelf(u) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrSelfProxy, c.Proxy.UpstreamURL))
		}
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate limit enabled with non-positive RATE_LIMIT_RPS or RATE_LIMIT_BURST"))
	}
	if c.CloudConvert.PollInterval <= 0 {
		errs = append(errs, errors.New("CLOUDCONVERT_POLL_INTERVAL must be positive"))
	}
	if c.Storage.MaxAge <= 0 {
		errs = append(errs, errors.New("STORAGE_MAX_AGE must be positive"))
	}
	if c.Storage.JanitorInterval <= 0 {
		errs = append(errs, errors.New("STORAGE_JANITOR_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) pointsAtSelf(u *url.URL) bool {
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	if port != c.Server.Port {
		return false
	}
	switch strings.ToLower(u.Hostname()) {
	case "localhost", "127.0.0.1", "::1", "0.0.0.0":
		return true
	}
	if c.Server.Host != "" && c.Server.Host != "0.0.0.0" && strings.EqualFold(u.Hostname(), c.Server.Host) {
		return true
	}
	if c.Server.PublicBaseURL != "" {
		if pub, err := url.Parse(c.Server.PublicBaseURL); err == nil && strings.EqualFold(pub.Host, u.Host) {
			return true
		}
	}
	return false
}
