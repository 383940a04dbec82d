package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/server"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to a TOML config file")
	port := flag.String("port", "", "Server port (overrides config)")
	dataDir := flag.String("data-dir", "", "Data directory (overrides config)")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	if *configPath != "" {
		if err := os.Setenv(config.FileEnv, *configPath); err != nil {
			log.Fatalf("Failed to set config path: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	if *dev {
		cfg.Logging.Development = true
	}

	// Create server
	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		log.Println("Shutting down gracefully...")
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		if err != nil {
			_ = srv.Close()
			log.Fatalf("Server error: %v", err)
		}
		_ = srv.Close()
	}
}
