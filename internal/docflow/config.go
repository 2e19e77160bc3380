package docflow

import (
	"flag"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/filconv/filconv/pkg/workflow"
)

// Config holds the CLI settings.
type Config struct {
	ServerURL   string
	OutputDir   string
	SessionFile string
	Timeout     time.Duration
	LogLevel    string
}

// LoadConfig reads DOCFLOW_* environment variables and then applies
// the leading flags of args. It returns the remaining arguments.
func LoadConfig(args []string) (*Config, []string, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCFLOW")
	v.AutomaticEnv()

	v.SetDefault("SERVER", "http://localhost:3000")
	v.SetDefault("OUTPUT_DIR", ".")
	v.SetDefault("TIMEOUT", 900)
	v.SetDefault("LOG_LEVEL", "warn")

	cfg := &Config{
		ServerURL:   strings.TrimRight(v.GetString("SERVER"), "/"),
		OutputDir:   v.GetString("OUTPUT_DIR"),
		SessionFile: v.GetString("SESSION_FILE"),
		Timeout:     time.Duration(v.GetInt("TIMEOUT")) * time.Second,
		LogLevel:    v.GetString("LOG_LEVEL"),
	}
	if cfg.SessionFile == "" {
		if p, err := workflow.DefaultCachePath(); err == nil {
			cfg.SessionFile = p
		}
	}

	fs := flag.NewFlagSet("docflow", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "server base URL")
	fs.StringVar(&cfg.OutputDir, "o", cfg.OutputDir, "directory for downloaded results")
	timeout := fs.Int("t", int(cfg.Timeout.Seconds()), "request timeout (in seconds)")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	cfg.Timeout = time.Duration(*timeout) * time.Second
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	return cfg, fs.Args(), nil
}
