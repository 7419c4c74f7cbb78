// Command server runs the marketfeed HTTP API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"marketfeed/internal/app"
	"marketfeed/internal/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("MARKETFEED_CONFIG"), "settings file (yaml)")
	flag.Parse()

	srv, cleanup, err := app.InitializeServer(app.ConfigPath(*configPath))
	if err != nil {
		logger.Errorf("[server] init: %v", err)
		os.Exit(1)
	}
	defer cleanup()
	logger.Configure(os.Stderr, srv.Config.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx); err != nil {
		logger.Errorf("[server] %v", err)
		cleanup()
		os.Exit(1)
	}
	logger.Infof("[server] stopped")
}
