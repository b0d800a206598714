// Package availability decides whether a technician can take a booking at
// a given hour.
package availability

import (
	"context"
	"errors"
	"time"

	"techsched/internal/model"
)

// Verdict is the outcome of an availability check.
type Verdict int

const (
	Available Verdict = iota
	TechnicianUnavailable
	OutsideWorkingHours
	NotHourAligned
	NotInFuture
	SlotTaken
)

func (v Verdict) String() string {
	switch v {
	case Available:
		return "available"
	case TechnicianUnavailable:
		return "technician_unavailable"
	case OutsideWorkingHours:
		return "outside_working_hours"
	case NotHourAligned:
		return "not_hour_aligned"
	case NotInFuture:
		return "not_in_future"
	case SlotTaken:
		return "slot_taken"
	default:
		return "unknown"
	}
}

// Reader is satisfied by both the database handle and an open transaction.
type Reader interface {
	GetTechnician(ctx context.Context, id int64) (*model.Technician, error)
	IsSlotBooked(ctx context.Context, technicianID int64, at time.Time) (bool, error)
}

// Evaluate applies the booking rules to already loaded facts. tech may be nil.
// The hour is read in instant's own location.
func Evaluate(tech *model.Technician, instant, now time.Time, taken bool) Verdict {
	switch {
	case tech == nil || !tech.IsActive:
		return TechnicianUnavailable
	case !tech.WorksAt(instant.Hour()):
		return OutsideWorkingHours
	case !model.IsHourAligned(instant):
		return NotHourAligned
	case !instant.After(now):
		return NotInFuture
	case taken:
		return SlotTaken
	default:
		return Available
	}
}

// Check loads the technician and the slot state from r and evaluates them.
// An unknown technician is TechnicianUnavailable, not an error.
func Check(ctx context.Context, r Reader, technicianID int64, instant, now time.Time) (Verdict, error) {
	tech, err := r.GetTechnician(ctx, technicianID)
	if errors.Is(err, model.ErrTechnicianNotFound) {
		return TechnicianUnavailable, nil
	}
	if err != nil {
		return TechnicianUnavailable, err
	}

	if v := Evaluate(tech, instant, now, false); v != Available {
		return v, nil
	}

	taken, err := r.IsSlotBooked(ctx, technicianID, instant)
	if err != nil {
		return TechnicianUnavailable, err
	}
	return Evaluate(tech, instant, now, taken), nil
}

// IsAvailable is the boolean form of Check. It fails closed on errors.
func IsAvailable(ctx context.Context, r Reader, technicianID int64, instant, now time.Time) (bool, error) {
	v, err := Check(ctx, r, technicianID, instant, now)
	if err != nil {
		return false, err
	}
	return v == Available, nil
}
