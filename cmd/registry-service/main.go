package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Preeti0411Gautam/Electronic-Medical-Records/internal/registry"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/config"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/database"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/interfaces"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/logger"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/monitoring"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Initialize the registry store
	var store interfaces.RegistryStore
	var db *database.DB
	switch cfg.Store.Backend {
	case "postgres":
		db, err = database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.CreateSchema(context.Background()); err != nil {
			logger.Fatalf("Failed to create schema: %v", err)
		}
		store = registry.NewPostgresStore(db, logger)
	default:
		store = registry.NewMemoryStore()
	}

	// Initialize registry service and HTTP server
	events := registry.NewEventPublisher(logger)
	service := registry.New(store, events, logger)
	server := registry.NewServer(cfg, service, logger)

	if db != nil {
		server.Health().RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))
	}

	// Start service in a goroutine
	go func() {
		logger.Infof("Starting Registry Service on port %d", cfg.Server.Port)
		if err := server.Start(); err != nil {
			logger.Fatalf("Failed to start Registry Service: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Registry Service...")
	if err := server.Stop(); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	logger.Info("Registry Service stopped")
}
