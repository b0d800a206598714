// Package booking owns the create/cancel/query lifecycle of bookings.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"techsched/internal/availability"
	"techsched/internal/database"
	"techsched/internal/events"
	"techsched/internal/metrics"
	"techsched/internal/model"
)

// Assignment is a booking together with the technician it belongs to.
type Assignment struct {
	Booking    model.Booking    `json:"booking"`
	Technician model.Technician `json:"technician"`
}

// CancelResult reports the booking after Cancel. AlreadyCancelled is set
// when the call found the booking cancelled and changed nothing.
type CancelResult struct {
	Booking          model.Booking `json:"booking"`
	AlreadyCancelled bool          `json:"already_cancelled"`
}

// Publisher receives booking events after commit. *events.EventBus delivers
// synchronously; *events.Dispatcher hands them to a background goroutine.
type Publisher interface {
	Publish(e events.Event)
}

// Manager is the only component that writes bookings.
type Manager struct {
	db          *database.DB
	pub         Publisher
	readRetries int
	check       func(ctx context.Context, r availability.Reader, technicianID int64, instant, now time.Time) (availability.Verdict, error)
	logger      *zerolog.Logger
}

// NewManager creates a manager. pub may be nil. readRetries bounds the extra
// attempts made by Query and ListActive on storage faults.
func NewManager(db *database.DB, pub Publisher, readRetries int, logger *zerolog.Logger) *Manager {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if readRetries < 0 {
		readRetries = 0
	}
	return &Manager{
		db:          db,
		pub:         pub,
		readRetries: readRetries,
		check:       availability.Check,
		logger:      logger,
	}
}

type createOptions struct {
	description string
}

// CreateOption customises Create.
type CreateOption func(*createOptions)

// WithDescription sets the booking description. Blank keeps the default.
func WithDescription(s string) CreateOption {
	return func(o *createOptions) { o.description = s }
}

// Create books the first technician of techType free at requested. The
// instant is truncated to the hour in the database location. Candidates are
// tried in id order, each in its own transaction that re-checks availability
// before inserting.
func (m *Manager) Create(ctx context.Context, techType string, requested, now time.Time, opts ...CreateOption) (*Assignment, error) {
	defer metrics.ObserveOperation("create", time.Now())

	instant := model.TruncateHour(requested.In(m.db.Location()))
	if !requested.After(now) || !instant.After(now) {
		metrics.IncBookingCreated("past_time")
		return nil, model.ErrPastBookingTime
	}

	norm := model.NormalizeType(techType)
	o := createOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.description == "" {
		o.description = fmt.Sprintf("Scheduled %s appointment", norm)
	}

	candidates, err := m.db.ListTechniciansByType(ctx, norm, false)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	if len(candidates) == 0 {
		metrics.IncBookingCreated("unknown_type")
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownTechnicianType, norm)
	}

	onlyHours := true
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, verdict, err := m.tryCandidate(ctx, c.ID, instant, now, o.description)
		if errors.Is(err, model.ErrSlotTaken) {
			metrics.IncCandidateConflict()
			m.logger.Debug().Int64("technician_id", c.ID).Time("booking_time", instant).Msg("slot taken at insert, trying next candidate")
			onlyHours = false
			continue
		}
		if err != nil {
			metrics.IncBookingCreated("error")
			return nil, fmt.Errorf("create booking with technician %d: %w", c.ID, err)
		}
		if result != nil {
			metrics.IncBookingCreated("created")
			m.logger.Info().
				Int64("booking_id", result.Booking.ID).
				Int64("technician_id", result.Technician.ID).
				Str("technician_type", norm).
				Time("booking_time", instant).
				Msg("booking created")
			m.publish(events.BookingCreated, result.Booking, result.Technician)
			return result, nil
		}
		if verdict != availability.OutsideWorkingHours {
			onlyHours = false
		}
	}

	if onlyHours {
		metrics.IncBookingCreated("outside_hours")
		return nil, model.ErrOutsideWorkingHours
	}
	metrics.IncBookingCreated("unavailable")
	return nil, model.ErrNoTechnicianAvailable
}

func (m *Manager) tryCandidate(ctx context.Context, technicianID int64, instant, now time.Time, description string) (*Assignment, availability.Verdict, error) {
	var result *Assignment
	var verdict availability.Verdict

	err := m.db.WithTx(ctx, func(tx *database.Tx) error {
		v, err := m.check(ctx, tx, technicianID, instant, now)
		if err != nil {
			return err
		}
		verdict = v
		if v != availability.Available {
			return nil
		}

		b := &model.Booking{
			TechnicianID: technicianID,
			BookingTime:  instant,
			Description:  description,
			Status:       model.StatusBooked,
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		tech, err := tx.GetTechnician(ctx, technicianID)
		if err != nil {
			return err
		}
		result = &Assignment{Booking: *b, Technician: *tech}
		return nil
	})
	if err != nil {
		return nil, verdict, err
	}
	return result, verdict, nil
}

// Cancel moves a booking to cancelled. Cancelling a cancelled booking
// succeeds with AlreadyCancelled set.
func (m *Manager) Cancel(ctx context.Context, bookingID int64) (*CancelResult, error) {
	defer metrics.ObserveOperation("cancel", time.Now())

	var result CancelResult
	var tech *model.Technician

	// The transaction holds the write lock from BEGIN, so the read below
	// cannot go stale before the update.
	err := m.db.WithTx(ctx, func(tx *database.Tx) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status == model.StatusCancelled {
			result = CancelResult{Booking: *b, AlreadyCancelled: true}
			return nil
		}

		changed, err := tx.CancelBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		updated, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		result = CancelResult{Booking: *updated, AlreadyCancelled: !changed}

		tech, err = tx.GetTechnician(ctx, updated.TechnicianID)
		return err
	})
	if errors.Is(err, model.ErrBookingNotFound) {
		metrics.IncBookingCancelled("not_found")
		return nil, err
	}
	if err != nil {
		metrics.IncBookingCancelled("error")
		return nil, fmt.Errorf("cancel booking %d: %w", bookingID, err)
	}

	if result.AlreadyCancelled {
		metrics.IncBookingCancelled("already_cancelled")
		m.logger.Info().Int64("booking_id", bookingID).Msg("booking already cancelled")
		return &result, nil
	}

	metrics.IncBookingCancelled("cancelled")
	m.logger.Info().Int64("booking_id", bookingID).Msg("booking cancelled")
	if tech != nil {
		m.publish(events.BookingCancelled, result.Booking, *tech)
	}
	return &result, nil
}

// Query returns a booking with its technician as currently stored.
func (m *Manager) Query(ctx context.Context, bookingID int64) (*Assignment, error) {
	defer metrics.ObserveOperation("query", time.Now())

	var bw *model.BookingWithTechnician
	err := m.withReadRetry(ctx, "query", func() error {
		var err error
		bw, err = m.db.GetBookingWithTechnician(ctx, bookingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Assignment{Booking: bw.Booking, Technician: *bw.Technician}, nil
}

// ListActive returns booked bookings ordered by booking time.
func (m *Manager) ListActive(ctx context.Context) ([]model.BookingWithTechnician, error) {
	defer metrics.ObserveOperation("list_active", time.Now())

	var list []model.BookingWithTechnician
	err := m.withReadRetry(ctx, "list_active", func() error {
		var err error
		list, err = m.db.ListActiveBookings(ctx)
		return err
	})
	return list, err
}

// DeleteBooking removes a booking row regardless of status.
func (m *Manager) DeleteBooking(ctx context.Context, bookingID int64) error {
	if err := m.db.DeleteBooking(ctx, bookingID); err != nil {
		return err
	}
	m.logger.Info().Int64("booking_id", bookingID).Msg("booking deleted")
	return nil
}

// PurgeActive deletes every booked booking and returns how many were removed.
func (m *Manager) PurgeActive(ctx context.Context) (int, error) {
	n, err := m.db.DeleteActiveBookings(ctx)
	if err != nil {
		return 0, err
	}
	m.logger.Info().Int64("count", n).Msg("active bookings purged")
	return int(n), nil
}

func (m *Manager) withReadRetry(ctx context.Context, op string, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 50 * time.Millisecond
	eb.MaxInterval = time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(m.readRetries)), ctx)

	return backoff.RetryNotify(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, model.ErrBookingNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		m.logger.Warn().Err(err).Str("op", op).Dur("retry_in", wait).Msg("storage read failed, retrying")
	})
}

func (m *Manager) publish(eventType string, b model.Booking, t model.Technician) {
	if m.pub == nil {
		return
	}
	e, err := events.NewBookingEvent(eventType, b, t)
	if err != nil {
		m.logger.Error().Err(err).Str("event_type", eventType).Msg("build event")
		return
	}
	m.pub.Publish(e)
}
