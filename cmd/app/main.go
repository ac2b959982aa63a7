package main

import (
	"SentraKTP/internal/config"
	"SentraKTP/pkg/log"
	websocketPkg "SentraKTP/pkg/websocket"
	"github.com/joho/godotenv"
	"golang.org/x/net/context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Fatalf("Error loading .env file: %v", err)
	}

	ktpConfig, err := config.LoadKTPConfig()
	if err != nil {
		logger.Fatalf("Invalid KTP configuration: %v", err)
	}

	recognizer, err := config.NewRecognizer(context.Background(), ktpConfig.Engine)
	if err != nil {
		logger.Fatalf("Error creating OCR engine: %v", err)
	}

	options := []config.ServerOption{
		config.WithFiber(config.NewFiber(logger)),
		config.WithLogger(logger),
		config.WithValidator(config.NewValidator()),
		config.WithKTPConfig(ktpConfig),
		config.WithRedisServer(),
		config.WithRecognizer(recognizer),
		config.WithMiddleware(),
		config.WithMetrics(),
		config.WithUtils(),
	}
	if os.Getenv("AI_KTP_DETECTION_URL") != "" {
		options = append(options, config.WithWebSocket(websocketPkg.NewAIWebSocketClient(logger)))
	} else {
		logger.Warn("AI_KTP_DETECTION_URL not set, captures will use the full frame")
	}

	server, err := config.NewServer(options...)
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

	logger.WithField("engine", recognizer.Name()).Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")
	if err := server.Shutdown(); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}
