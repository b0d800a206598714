package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"techsched/internal/booking"
	"techsched/internal/export"
)

var exportOut string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create tables and insert the configured technicians if the database is empty",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		db, _, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		return db.Close()
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write active bookings to an xlsx workbook",
	RunE:  runExport,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Take a one-off database backup",
	RunE:  runBackup,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "bookings.xlsx", "output file")
}

func runExport(cmd *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	ctx := cmd.Context()

	db, _, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	mgr := booking.NewManager(db, nil, cfg.Storage.ReadRetries, &logger)
	bookings, err := mgr.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}

	if dir := filepath.Dir(exportOut); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(exportOut)
	if err != nil {
		return err
	}
	if err := export.WriteBookings(f, bookings, db.Location()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Info().Str("file", exportOut).Int("bookings", len(bookings)).Msg("export written")
	return nil
}

func runBackup(cmd *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	ctx := cmd.Context()

	db, _, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := newBackupService(db)
	path, err := svc.PerformBackup(ctx)
	if err != nil {
		return err
	}
	removed := svc.CleanupOldBackups(time.Now())
	logger.Info().Str("file", path).Int("removed", removed).Msg("backup written")
	return nil
}
