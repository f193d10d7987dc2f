package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"gobayes/internal/api"
	"gobayes/internal/config"
	"gobayes/internal/container"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(ctx, appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	if err := api.Serve(ctx, appConfig.Server, appContainer.FitService, appContainer.Logger); err != nil {
		appContainer.Logger.Error("server stopped: %v", err)
		stop()
		appContainer.Shutdown(context.Background())
		os.Exit(1)
	}
	appContainer.Logger.Info("shutdown complete")
}
