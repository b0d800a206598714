package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// WatchTechnicians reloads technicians.yaml on change and calls onUpdate with the latest config.
// The initial load is the caller's job; the watcher only reports later modifications.
// An edit that fails to load is logged once and skipped until the file changes again.
func WatchTechnicians(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*TechniciansConfig)) error {
	if path == "" {
		path = "configs/technicians.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		statFailing := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					if !statFailing {
						logger.Warn().Err(err).Str("path", path).Msg("technicians config unreadable")
						statFailing = true
					}
					continue
				}
				statFailing = false
				if !info.ModTime().After(lastMod) {
					continue
				}
				lastMod = info.ModTime()

				cfg, err := LoadTechniciansConfig(path)
				if err != nil {
					logger.Error().Err(err).Str("path", path).Msg("technicians config reload rejected, keeping previous")
					continue
				}
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}
