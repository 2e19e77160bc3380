package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/filconv/filconv/internal/docflow"
	"github.com/filconv/filconv/pkg/logger"
)

func main() {
	cfg, args, err := docflow.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger.SetOutput(os.Stderr)
	logger.SetFormat("console")
	logger.Init(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	app, err := docflow.NewApp(cfg, os.Stdout)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, docflow.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
