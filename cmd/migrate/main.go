package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/steemit/blogd/internal/db"
	"github.com/steemit/blogd/pkg/config"
	"github.com/steemit/blogd/pkg/logging"
)

func main() {
	configFile := pflag.String("config", "", "path to a config file")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [--config file] up|down|status\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	command := "up"
	if pflag.NArg() > 0 {
		command = pflag.Arg(0)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	logger.Info("Running migrations", zap.String("command", command))
	if err := db.Migrate(ctx, database, command); err != nil {
		logger.Error("Migration failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Migrations done", zap.String("command", command))
}
