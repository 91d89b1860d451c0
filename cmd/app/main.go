package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"VisionAnalytica/internal/config"
	"VisionAnalytica/pkg/log"
	"golang.org/x/net/context"
)

func main() {
	logger := log.NewLogger()
	config.LoadEnv(logger)

	appConfig, err := config.NewAppConfig(os.Getenv)
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	// Base64 JSON bodies are a third larger than the raw upload.
	bodyLimit := int(appConfig.MaxUploadBytes*4/3) + 1<<20

	fiberApp := config.NewFiber(logger, bodyLimit)
	validator := config.NewValidator()

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithConfig(appConfig),
		config.WithValidator(validator),
		config.WithMiddleware(),
		config.WithUtils(),
		config.WithMetrics(),
		config.WithProviders(context.Background()),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	if err := server.Shutdown(10 * time.Second); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}
