package model

import "errors"

var (
	ErrTechnicianNotFound    = errors.New("technician not found")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrUnknownTechnicianType = errors.New("unknown technician type")
	ErrNoTechnicianAvailable = errors.New("no technician available")
)

var (
	ErrMalformedIntent     = errors.New("malformed intent")
	ErrPastBookingTime     = errors.New("booking time must be in the future")
	ErrOutsideWorkingHours = errors.New("booking time is outside working hours")
)

// ErrSlotTaken is returned by storage when the (technician, time) pair is
// already held by a booked row.
var ErrSlotTaken = errors.New("slot already booked")
