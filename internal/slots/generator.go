package slots

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"techsched/internal/availability"
	"techsched/internal/model"
)

// Store provides the technician and booking reads the generator needs.
type Store interface {
	GetTechnician(ctx context.Context, id int64) (*model.Technician, error)
	ListTechniciansByType(ctx context.Context, techType string, activeOnly bool) ([]model.Technician, error)
	BookedTimes(ctx context.Context, technicianID int64, from, to time.Time) ([]time.Time, error)
}

// Slots is the set of open hours for one technician on one day.
// Ranging over All twice yields the same instants.
type Slots struct {
	day   time.Time
	hours []int
}

// All yields the open instants in ascending order.
func (s Slots) All() iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for _, h := range s.hours {
			if !yield(s.at(h)) {
				return
			}
		}
	}
}

func (s Slots) at(h int) time.Time {
	return time.Date(s.day.Year(), s.day.Month(), s.day.Day(), h, 0, 0, 0, s.day.Location())
}

// First returns the earliest open instant.
func (s Slots) First() (time.Time, bool) {
	for t := range s.All() {
		return t, true
	}
	return time.Time{}, false
}

func (s Slots) Collect() []time.Time {
	out := make([]time.Time, 0, len(s.hours))
	for t := range s.All() {
		out = append(out, t)
	}
	return out
}

func (s Slots) Len() int {
	return len(s.hours)
}

// ToSlotInfo formats slots as "15:04" strings for display.
func ToSlotInfo(s Slots) []string {
	result := make([]string, 0, s.Len())
	for t := range s.All() {
		result = append(result, t.Format("15:04"))
	}
	return result
}

// Generator computes bookable hour slots.
type Generator struct {
	store Store
}

// NewGenerator creates a new slot generator.
func NewGenerator(store Store) *Generator {
	return &Generator{store: store}
}

// AvailableSlots returns the hours of date on which technicianID can still be
// booked as seen at now. The calendar day is taken in date's location. An
// unknown or inactive technician yields empty Slots and no error.
func (g *Generator) AvailableSlots(ctx context.Context, technicianID int64, date, now time.Time) (Slots, error) {
	tech, err := g.store.GetTechnician(ctx, technicianID)
	if errors.Is(err, model.ErrTechnicianNotFound) {
		return Slots{day: model.StartOfDay(date)}, nil
	}
	if err != nil {
		return Slots{}, fmt.Errorf("get technician: %w", err)
	}
	return g.forTechnician(ctx, tech, date, now)
}

func (g *Generator) forTechnician(ctx context.Context, tech *model.Technician, date, now time.Time) (Slots, error) {
	day := model.StartOfDay(date)
	s := Slots{day: day}
	if !tech.IsActive {
		return s, nil
	}

	booked, err := g.store.BookedTimes(ctx, tech.ID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return Slots{}, fmt.Errorf("list booked times: %w", err)
	}
	taken := make(map[int64]struct{}, len(booked))
	for _, b := range booked {
		taken[b.Unix()] = struct{}{}
	}

	for h := tech.WorkingHoursStart; h < tech.WorkingHoursEnd; h++ {
		instant := s.at(h)
		_, isTaken := taken[instant.Unix()]
		if availability.Evaluate(tech, instant, now, isTaken) == availability.Available {
			s.hours = append(s.hours, h)
		}
	}
	return s, nil
}

// Opening is one bookable instant with the technician who has it.
type Opening struct {
	Technician model.Technician
	At         time.Time
}

// Earliest finds the first open slot on date across active technicians of
// techType. Ties go to the lower technician id. It returns nil when nothing is
// open and model.ErrUnknownTechnicianType when no active technician has the type.
func (g *Generator) Earliest(ctx context.Context, techType string, date, now time.Time) (*Opening, error) {
	techs, err := g.store.ListTechniciansByType(ctx, model.NormalizeType(techType), true)
	if err != nil {
		return nil, err
	}
	if len(techs) == 0 {
		return nil, model.ErrUnknownTechnicianType
	}

	var best *Opening
	for i := range techs {
		s, err := g.forTechnician(ctx, &techs[i], date, now)
		if err != nil {
			return nil, err
		}
		first, ok := s.First()
		if !ok {
			continue
		}
		if best == nil || first.Before(best.At) {
			best = &Opening{Technician: techs[i], At: first}
		}
	}
	return best, nil
}
