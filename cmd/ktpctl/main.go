package main

import (
	"SentraKTP/internal/config"
	"SentraKTP/pkg/log"
	"github.com/joho/godotenv"
	"os"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using the process environment")
	}

	root := newRootCmd(&cli{
		log:           logger,
		newRecognizer: config.NewRecognizer,
	})
	if err := root.Execute(); err != nil {
		logger.Errorf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
