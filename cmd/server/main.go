package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ParkFee-Network/parking_layer/internal/app"
	"github.com/ParkFee-Network/parking_layer/pkg/logger"
)

func main() {
	log := logger.NewDefault("main")

	application, err := app.NewApplication()
	if err != nil {
		log.WithError(err).Error("failed to initialize application")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.WithError(err).Error("server error")
		os.Exit(1)
	}

	log.Info("shutting down")
	if err := application.Shutdown(context.Background()); err != nil {
		log.WithError(err).Error("shutdown error")
		os.Exit(1)
	}
}
