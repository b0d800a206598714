package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Technician is a bookable service technician.
type Technician struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Type              string    `json:"type"`
	WorkingHoursStart int       `json:"working_hours_start"` // inclusive hour of day
	WorkingHoursEnd   int       `json:"working_hours_end"`   // exclusive hour of day
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"-"`
	UpdatedAt         time.Time `json:"-"`
}

// WorksAt reports whether hour lies in [WorkingHoursStart, WorkingHoursEnd).
func (t *Technician) WorksAt(hour int) bool {
	return hour >= t.WorkingHoursStart && hour < t.WorkingHoursEnd
}

// WorkingHours formats the working interval as "9:00 - 17:00".
func (t *Technician) WorkingHours() string {
	return fmt.Sprintf("%d:00 - %d:00", t.WorkingHoursStart, t.WorkingHoursEnd)
}

// NormalizeType folds a technician type to its canonical stored form:
// surrounding space trimmed, inner runs of space collapsed, each word title cased.
// "  hvac   TECHNICIAN" becomes "Hvac Technician".
func NormalizeType(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
