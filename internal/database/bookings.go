package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"techsched/internal/model"
)

const bookingColumns = `b.id, b.technician_id, b.booking_time, b.description, b.status, b.created_at, b.updated_at`

func nowUTC() time.Time {
	return time.Now().UTC()
}

func (q queries) scanBooking(s rowScanner, extra ...any) (*model.Booking, error) {
	var b model.Booking
	var bookingTime int64
	var status string
	var createdAt, updatedAt sql.NullTime
	dest := append([]any{&b.ID, &b.TechnicianID, &bookingTime, &b.Description, &status, &createdAt, &updatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	b.BookingTime = q.fromUnix(bookingTime)
	b.Status = model.BookingStatus(status)
	b.CreatedAt = createdAt.Time
	b.UpdatedAt = updatedAt.Time
	return &b, nil
}

// IsSlotBooked reports whether the technician has a booked row at exactly at.
func (q queries) IsSlotBooked(ctx context.Context, technicianID int64, at time.Time) (bool, error) {
	var n int
	err := q.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE technician_id = ? AND booking_time = ? AND status = ?`,
		technicianID, q.toUnix(at), model.StatusBooked,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return n > 0, nil
}

// BookedTimes returns booked instants of a technician in [from, to), ascending.
func (q queries) BookedTimes(ctx context.Context, technicianID int64, from, to time.Time) ([]time.Time, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT booking_time FROM bookings
		WHERE technician_id = ? AND status = ? AND booking_time >= ? AND booking_time < ?
		ORDER BY booking_time`,
		technicianID, model.StatusBooked, q.toUnix(from), q.toUnix(to),
	)
	if err != nil {
		return nil, fmt.Errorf("list booked times: %w", err)
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var sec int64
		if err := rows.Scan(&sec); err != nil {
			return nil, err
		}
		result = append(result, q.fromUnix(sec))
	}
	return result, rows.Err()
}

// InsertBooking stores b and sets its ID and timestamps. A second booked row
// for the same technician and hour yields model.ErrSlotTaken.
func (q queries) InsertBooking(ctx context.Context, b *model.Booking) error {
	now := nowUTC()
	if b.Status == "" {
		b.Status = model.StatusBooked
	}
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO bookings (technician_id, booking_time, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.TechnicianID, q.toUnix(b.BookingTime), b.Description, b.Status, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrSlotTaken
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert booking id: %w", err)
	}
	b.ID = id
	b.BookingTime = q.fromUnix(q.toUnix(b.BookingTime))
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// GetBooking returns the booking row or model.ErrBookingNotFound.
func (q queries) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, id)
	b, err := q.scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return b, nil
}

const joinedColumns = bookingColumns + `,
	t.id, t.name, t.type, t.working_hours_start, t.working_hours_end, t.is_active, t.created_at, t.updated_at`

func (q queries) scanJoined(s rowScanner) (*model.BookingWithTechnician, error) {
	var t model.Technician
	var tCreated, tUpdated sql.NullTime
	b, err := q.scanBooking(s, &t.ID, &t.Name, &t.Type, &t.WorkingHoursStart, &t.WorkingHoursEnd, &t.IsActive, &tCreated, &tUpdated)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = tCreated.Time
	t.UpdatedAt = tUpdated.Time
	return &model.BookingWithTechnician{Booking: *b, Technician: &t}, nil
}

// GetBookingWithTechnician joins the booking with the technician as currently stored.
func (q queries) GetBookingWithTechnician(ctx context.Context, id int64) (*model.BookingWithTechnician, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT `+joinedColumns+`
		FROM bookings b JOIN technicians t ON t.id = b.technician_id
		WHERE b.id = ?`, id)
	bw, err := q.scanJoined(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return bw, nil
}

// ListActiveBookings returns booked rows ordered by booking time, then id.
func (q queries) ListActiveBookings(ctx context.Context) ([]model.BookingWithTechnician, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+joinedColumns+`
		FROM bookings b JOIN technicians t ON t.id = b.technician_id
		WHERE b.status = ?
		ORDER BY b.booking_time, b.id`, model.StatusBooked)
	if err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}
	defer rows.Close()

	result := make([]model.BookingWithTechnician, 0)
	for rows.Next() {
		bw, err := q.scanJoined(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *bw)
	}
	return result, rows.Err()
}

// CancelBooking moves a booked row to cancelled. It reports false when the
// row was already cancelled.
func (q queries) CancelBooking(ctx context.Context, id int64) (bool, error) {
	res, err := q.q.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		model.StatusCancelled, nowUTC(), id, model.StatusBooked,
	)
	if err != nil {
		return false, fmt.Errorf("cancel booking %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteBooking physically removes a booking row.
func (q queries) DeleteBooking(ctx context.Context, id int64) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete booking %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrBookingNotFound
	}
	return nil
}

// DeleteActiveBookings removes every booked row and returns how many went.
func (q queries) DeleteActiveBookings(ctx context.Context) (int64, error) {
	res, err := q.q.ExecContext(ctx, `DELETE FROM bookings WHERE status = ?`, model.StatusBooked)
	if err != nil {
		return 0, fmt.Errorf("delete active bookings: %w", err)
	}
	return res.RowsAffected()
}
