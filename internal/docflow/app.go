// Package docflow is a command line front end for a filconv server.
package docflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/filconv/filconv/pkg/client"
	"github.com/filconv/filconv/pkg/logger"
	"github.com/filconv/filconv/pkg/workflow"
)

var ErrUsage = errors.New("usage")

type App struct {
	config  *Config
	api     *client.Client
	session *workflow.Session
	out     io.Writer
}

func NewApp(c *Config, out io.Writer) (*App, error) {
	if c.ServerURL == "" {
		return nil, errors.New("server URL is empty")
	}
	api := client.New(c.ServerURL)
	api.HTTP = &http.Client{Timeout: c.Timeout}

	var cache workflow.Cache = workflow.NewMemoryCache()
	if c.SessionFile != "" {
		cache = &workflow.FileCache{Path: c.SessionFile}
	}
	return &App{config: c, api: api, session: workflow.NewSession(cache), out: out}, nil
}

const usage = `usage: docflow [-s server] [-o dir] [-t seconds] <command> [args]

commands:
  convert <file> <format>       convert a file and save the result
  merge <out.pdf> <a.pdf> <b.pdf>...  merge PDFs in the given order
  split <file.pdf> [method]     split a PDF (all, every:N, ranges:1-3,5)
  compress <file.pdf>           compress a PDF
  info <file.pdf>               show the page sizes of a local PDF
  formats                       list output formats
  boot-id                       show the server boot id and the cached user
  signup <user> <email> [pw]    create an account
  login <email> [password]      log in and remember the user
  logout                        forget the cached user
`

// Run executes one command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return ErrUsage
	}
	cmd, rest := args[0], args[1:]

	// a restarted server invalidates the cached login before anything else
	if cmd != "formats" && cmd != "info" && cmd != "help" {
		if _, err := a.session.Sync(ctx, a.api); err != nil {
			logger.Warnf("session cache: %v", err)
		}
	}

	switch cmd {
	case "convert":
		return a.convert(ctx, rest)
	case "merge":
		return a.merge(ctx, rest)
	case "split":
		return a.split(ctx, rest)
	case "compress":
		return a.compress(ctx, rest)
	case "info":
		return a.info(rest)
	case "formats":
		return a.formats()
	case "boot-id":
		return a.bootID(ctx)
	case "signup":
		return a.signup(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "help":
		fmt.Fprint(a.out, usage)
		return nil
	}
	fmt.Fprint(a.out, usage)
	return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
}

// save writes data into the output directory under the base of name.
func (a *App) save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(a.config.OutputDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(a.config.OutputDir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
