package main

import (
	"log"

	"github.com/joho/godotenv"

	"invoicefetcher/cmd"
	"invoicefetcher/internal/config"
	"invoicefetcher/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// The logger is configured from the default config location; commands
	// re-load configuration themselves to honor --config.
	cfg, err := config.Load("")
	if err != nil {
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		mainLogger := logger.WithComponent("main")
		mainLogger.Warn().Err(err).Msg("Could not load configuration, using defaults")
	} else {
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	cmd.Execute()
}
