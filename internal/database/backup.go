package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const backupPrefix = "techsched_"

// Backup writes a consistent copy of the database to dest using VACUUM INTO.
func (db *DB) Backup(ctx context.Context, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("backup target %s already exists", dest)
	}
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dest, err)
	}
	return nil
}

// BackupService runs periodic backups with retention cleanup.
type BackupService struct {
	db        *DB
	dir       string
	interval  time.Duration
	retention time.Duration
	logger    *zerolog.Logger
}

func NewBackupService(db *DB, dir string, interval, retention time.Duration, logger *zerolog.Logger) *BackupService {
	return &BackupService{
		db:        db,
		dir:       dir,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Start blocks until ctx is done, taking a backup right away and then every interval.
func (s *BackupService) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Str("dir", s.dir).Msg("Backup service started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if _, err := s.PerformBackup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Initial backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PerformBackup(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Scheduled backup failed")
			}
			s.CleanupOldBackups(time.Now())
		}
	}
}

// PerformBackup takes one timestamped backup and returns its path.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	name := fmt.Sprintf("%s%s.db", backupPrefix, time.Now().Format("20060102_150405"))
	path := filepath.Join(s.dir, name)

	s.logger.Info().Str("path", path).Msg("Performing database backup")
	if err := s.db.Backup(ctx, path); err != nil {
		return "", err
	}
	s.logger.Info().Str("path", path).Msg("Backup completed successfully")
	return path, nil
}

// CleanupOldBackups removes backups older than the retention window and
// returns how many files were deleted.
func (s *BackupService) CleanupOldBackups(now time.Time) int {
	if s.retention <= 0 {
		return 0
	}

	files, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read backup directory for cleanup")
		return 0
	}

	cutoff := now.Add(-s.retention)
	removed := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), backupPrefix) {
			continue
		}

		info, err := file.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", file.Name()).Msg("Deleting old backup")
			if err := os.Remove(filepath.Join(s.dir, file.Name())); err == nil {
				removed++
			}
		}
	}
	return removed
}
