package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ironsheep/meterscan/internal/config"
	"github.com/ironsheep/meterscan/internal/httpapi"
	"github.com/ironsheep/meterscan/internal/logging"
)

// serve runs the HTTP service until SIGINT or SIGTERM.
func serve() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	logger := logging.New(cfg.LogLevel, os.Stderr)

	p, err := newPipeline(cfg, logger, cfg.DebugDir)
	if err != nil {
		logger.Errorf("Pipeline setup failed: %v", err)
		return 1
	}

	srv := httpapi.NewServer(cfg, p, logging.Component(logger, "http"))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Errorf("Server error: %v", err)
			return 1
		}
		return 0
	case sig := <-sigChan:
		logger.Infof("Received signal %v, initiating graceful shutdown...", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown failed: %v", err)
		return 1
	}
	logger.Info("Shutdown complete")
	return 0
}
