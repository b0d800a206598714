package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"techsched/internal/config"
	"techsched/internal/model"
)

// SyncTechniciansFromConfig applies technicians.yaml to the database.
// It upserts configured technicians and marks missing ones inactive.
// Seed bookings are ignored here; see Seed.
func (db *DB) SyncTechniciansFromConfig(ctx context.Context, cfg *config.TechniciansConfig) error {
	if cfg == nil {
		return fmt.Errorf("technicians config is nil")
	}

	return db.WithTx(ctx, func(tx *Tx) error {
		seen := make(map[int64]struct{}, len(cfg.Technicians))
		for _, t := range cfg.ToModels() {
			if err := tx.UpsertTechnician(ctx, &t); err != nil {
				return err
			}
			seen[t.ID] = struct{}{}
		}

		existing, err := tx.ListTechnicians(ctx, true)
		if err != nil {
			return err
		}
		for _, t := range existing {
			if _, ok := seen[t.ID]; ok {
				continue
			}
			if err := tx.SetTechnicianActive(ctx, t.ID, false); err != nil {
				return fmt.Errorf("deactivate technician %d: %w", t.ID, err)
			}
			db.logger.Info().Int64("technician_id", t.ID).Str("name", t.Name).Msg("technician removed from config, deactivated")
		}
		return nil
	})
}

// Seed inserts the configured technicians and seed bookings when the
// technicians table is empty. It reports whether anything was inserted.
// Seed bookings outside working hours are logged and still inserted.
func (db *DB) Seed(ctx context.Context, cfg *config.TechniciansConfig) (bool, error) {
	if cfg == nil {
		return false, fmt.Errorf("technicians config is nil")
	}

	n, err := db.CountTechnicians(ctx)
	if err != nil {
		return false, fmt.Errorf("count technicians: %w", err)
	}
	if n > 0 {
		db.logger.Debug().Int("technicians", n).Msg("database already seeded")
		return false, nil
	}

	err = db.WithTx(ctx, func(tx *Tx) error {
		byName := make(map[string]model.Technician, len(cfg.Technicians))
		for _, t := range cfg.ToModels() {
			if err := tx.UpsertTechnician(ctx, &t); err != nil {
				return err
			}
			byName[t.Name] = t
		}

		for i, sb := range cfg.Bookings {
			tech, ok := byName[sb.Technician]
			if !ok {
				return fmt.Errorf("booking[%d]: unknown technician '%s'", i, sb.Technician)
			}
			at, err := time.ParseInLocation(config.SeedTimeLayout, sb.Time, db.loc)
			if err != nil {
				return fmt.Errorf("booking[%d]: %w", i, err)
			}
			if !tech.WorksAt(at.Hour()) {
				db.logger.Warn().
					Str("technician", tech.Name).
					Time("booking_time", at).
					Str("working_hours", tech.WorkingHours()).
					Msg("seed booking outside working hours")
			}

			desc := sb.Description
			if desc == "" {
				desc = "Initial booking for " + tech.Type
			}
			b := &model.Booking{TechnicianID: tech.ID, BookingTime: at, Description: desc, Status: model.StatusBooked}
			if err := tx.InsertBooking(ctx, b); err != nil {
				if errors.Is(err, model.ErrSlotTaken) {
					db.logger.Warn().Str("technician", tech.Name).Time("booking_time", at).Msg("duplicate seed booking skipped")
					continue
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	db.logger.Info().Int("technicians", len(cfg.Technicians)).Int("bookings", len(cfg.Bookings)).Msg("database seeded")
	return true, nil
}
