package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"techsched/internal/config"
	"techsched/internal/database"
)

var (
	configPath string
	logger     zerolog.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "techsched",
	Short:        "Technician appointment scheduling service",
	Long:         "techsched books plumbers, electricians and other technicians into hourly slots and serves the booking API.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("TECHSCHED_CONFIG_PATH"), "path to config.yaml")
	rootCmd.AddCommand(serveCmd, seedCmd, exportCmd, backupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and sets up the logger.
func loadConfig() error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	return nil
}

func setupLogger(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if format == "json" {
		return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
	}
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
}

// openDatabase opens the store and seeds it from technicians.yaml when empty.
// The loaded technicians config is returned for later reloads.
func openDatabase(ctx context.Context) (*database.DB, *config.TechniciansConfig, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, fmt.Errorf("load timezone %q: %w", cfg.Database.Timezone, err)
	}

	db, err := database.NewDB(cfg.Database.Path, loc, &logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	techCfg, err := config.LoadTechniciansConfig(cfg.TechniciansPath)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("load technicians: %w", err)
	}

	seeded, err := db.Seed(ctx, techCfg)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("seed database: %w", err)
	}
	if !seeded {
		if err := db.SyncTechniciansFromConfig(ctx, techCfg); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("sync technicians: %w", err)
		}
	}

	logger.Info().
		Str("path", db.Path()).
		Str("timezone", loc.String()).
		Bool("seeded", seeded).
		Stringer("technicians", techCfg).
		Msg("database ready")
	return db, techCfg, nil
}
