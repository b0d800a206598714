package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusBooked    BookingStatus = "booked"
	StatusCancelled BookingStatus = "cancelled"
)

// Booking is one technician appointment at an exact hour.
type Booking struct {
	ID           int64         `json:"id"`
	TechnicianID int64         `json:"technician_id"`
	BookingTime  time.Time     `json:"booking_time"`
	Description  string        `json:"description"`
	Status       BookingStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsActive reports whether the booking still occupies its slot.
func (b *Booking) IsActive() bool {
	return b.Status == StatusBooked
}

// BookingWithTechnician is a booking joined with its technician snapshot.
type BookingWithTechnician struct {
	Booking
	Technician *Technician `json:"technician,omitempty"`
}

// TruncateHour drops minutes, seconds and nanoseconds, keeping the location.
func TruncateHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// IsHourAligned reports whether t has no sub-hour component.
func IsHourAligned(t time.Time) bool {
	return t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
