// Package intent validates structured booking requests and renders results
// as display-ready messages.
package intent

import (
	"fmt"
	"strings"
	"time"

	"techsched/internal/model"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionCancel Action = "cancel"
	ActionQuery  Action = "query"
)

// Intent is the record produced by the language collaborator.
type Intent struct {
	Action         string `json:"action"`
	TechnicianType string `json:"technician_type,omitempty"`
	BookingTime    string `json:"booking_time,omitempty"`
	BookingID      *int64 `json:"booking_id,omitempty"`
	Description    string `json:"description,omitempty"`
}

// Request is a validated Intent.
type Request struct {
	Action         Action
	TechnicianType string
	BookingTime    time.Time
	BookingID      int64
	Description    string
}

// ValidationError carries a message meant for the end user. It matches
// model.ErrMalformedIntent with errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return model.ErrMalformedIntent }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Naive layouts are read in the configured local clock.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseBookingTime accepts RFC 3339 or a naive local timestamp and returns
// the instant in loc truncated to the hour.
func ParseBookingTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return model.TruncateHour(t.In(loc)), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return model.TruncateHour(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as an ISO-8601 date and time", s)
}

// Validate checks the shape of the intent without touching storage.
func (i Intent) Validate(loc *time.Location) (*Request, error) {
	if loc == nil {
		loc = time.Local
	}
	req := &Request{Action: Action(strings.ToLower(strings.TrimSpace(i.Action)))}

	switch req.Action {
	case ActionCreate:
		req.TechnicianType = model.NormalizeType(i.TechnicianType)
		if req.TechnicianType == "" {
			return nil, invalid("I need to know what type of technician you need. Could you please specify if you need a plumber, electrician, or another kind of technician?")
		}
		if strings.TrimSpace(i.BookingTime) == "" {
			return nil, invalid("I need to know when you'd like to schedule the technician. Could you please specify a time?")
		}
		t, err := ParseBookingTime(i.BookingTime, loc)
		if err != nil {
			return nil, invalid("Invalid booking time format: %v", err)
		}
		req.BookingTime = t
		req.Description = strings.TrimSpace(i.Description)

	case ActionCancel:
		if i.BookingID == nil || *i.BookingID <= 0 {
			return nil, invalid("I need the booking ID to cancel an appointment. Could you please provide it?")
		}
		req.BookingID = *i.BookingID

	case ActionQuery:
		if i.BookingID == nil || *i.BookingID <= 0 {
			return nil, invalid("I need the booking ID to look up the details. Could you please provide it?")
		}
		req.BookingID = *i.BookingID

	default:
		return nil, invalid("I'm not sure what you'd like to do. I can create, cancel, or look up a booking.")
	}

	return req, nil
}
