package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lisanmuaddib/meshbot-go/internal/botconfig"
	"github.com/lisanmuaddib/meshbot-go/pkg/actions"
	"github.com/lisanmuaddib/meshbot-go/pkg/db"
	"github.com/lisanmuaddib/meshbot-go/pkg/dispatch"
	"github.com/lisanmuaddib/meshbot-go/pkg/interfaces/mesh"
	"github.com/lisanmuaddib/meshbot-go/pkg/logging"
	"github.com/lisanmuaddib/meshbot-go/pkg/supervisor"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// Only log warning since .env is optional
		logrus.WithError(err).Warn("Error loading .env file")
	}

	// Initialize logger
	log := logrus.New()
	log.SetFormatter(logging.NewColoredJSONFormatter())

	// Get log level from environment
	logLevel := os.Getenv("LOG_LEVEL")
	if level, err := logrus.ParseLevel(logLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithFields(logrus.Fields{
			"attempted_level": logLevel,
			"default_level":   "INFO",
		}).Warn("Invalid log level specified, defaulting to INFO")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize device link config
	meshConfig, err := mesh.NewMeshConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to create mesh config")
	}
	meshConfig.Logger = log

	// Initialize persistence
	database, err := db.SetupDatabase(log)
	if err != nil {
		log.WithError(err).Fatal("Failed to set up database")
	}
	store := db.NewSeenNodeStore(database, log)

	// Load actions
	registry := actions.NewRegistry(log)
	registry.Load(botconfig.ConfigureActions(botconfig.ActionConfig{Logger: log}))

	for id, info := range registry.Describe() {
		interval := "on demand"
		if info.Interval > 0 {
			interval = info.Interval.String()
		}
		log.WithFields(logrus.Fields{
			"action":      id,
			"name":        info.Name,
			"description": info.Description,
			"interval":    interval,
		}).Info("Action ready")
	}

	// Build the dispatch engine
	var dispatchOpts []dispatch.Option
	if legacy, _ := strconv.ParseBool(os.Getenv("LEGACY_TICK_FALLBACK")); legacy {
		dispatchOpts = append(dispatchOpts, dispatch.WithLegacyTickFallback())
	}
	dispatcher := dispatch.New(registry, store, log, dispatchOpts...)

	// Build the connection supervisor
	supervisorConfig := supervisor.NewConfigFromEnv()
	supervisorConfig.Logger = log
	supervisorConfig.Dispatcher = dispatcher
	supervisorConfig.StoreCloser = store
	supervisorConfig.Dialer = func(ctx context.Context) (mesh.Transport, error) {
		return mesh.Dial(ctx, meshConfig)
	}

	sup, err := supervisor.New(supervisorConfig)
	if err != nil {
		log.WithError(err).Fatal("Failed to create supervisor")
	}

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info("Received shutdown signal")
		cancel()
	}()

	log.Info("Starting mesh bot")

	if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("Supervisor stopped with error")
	}

	log.Info("Mesh bot shutdown complete")
}
