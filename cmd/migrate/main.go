package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"versus-backend/internal/config"
	"versus-backend/pkg/database"
	"versus-backend/pkg/logger"
)

const programName = "migrate"

var globalFlags = struct {
	debug bool
}{}

func commonRun() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.LogLevel
	if globalFlags.debug {
		level = "debug"
	}
	log, err := logger.New(level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log.Component(programName), nil
}

// withPostgres runs fn against DATABASE_URL.
func withPostgres(ctx context.Context, fn func(db *database.PostgresDB, log *logger.Logger) error) error {
	cfg, log, err := commonRun()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(db, log)
}

func upCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create the battle tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPostgres(cmd.Context(), func(db *database.PostgresDB, log *logger.Logger) error {
				if err := db.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("failed to create tables: %w", err)
				}
				log.Info("All tables created successfully")
				return nil
			})
		},
	}
}

func dropCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Short: "Drop the battle tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPostgres(cmd.Context(), func(db *database.PostgresDB, log *logger.Logger) error {
				if err := db.Drop(cmd.Context()); err != nil {
					return fmt.Errorf("failed to drop tables: %w", err)
				}
				log.Info("All tables dropped successfully")
				return nil
			})
		},
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Manage the versus-backend store",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")

	rootCmd.AddCommand(upCommand())
	rootCmd.AddCommand(dropCommand())
	rootCmd.AddCommand(seedCommand())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
