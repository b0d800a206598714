package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"techsched/internal/model"
)

// SeedTimeLayout is the layout of seed booking times (local clock).
const SeedTimeLayout = "2006-01-02T15:04"

// TechnicianConfig represents a single technician entry.
type TechnicianConfig struct {
	ID                int    `yaml:"id"`
	Name              string `yaml:"name"`
	Type              string `yaml:"type"`
	WorkingHoursStart *int   `yaml:"working_hours_start,omitempty"`
	WorkingHoursEnd   *int   `yaml:"working_hours_end,omitempty"`
	IsActive          *bool  `yaml:"is_active,omitempty"`
}

// SeedBookingConfig is a booking inserted when the database is first seeded.
type SeedBookingConfig struct {
	Technician  string `yaml:"technician"` // technician name
	Time        string `yaml:"time"`       // "2025-10-15T10:00"
	Description string `yaml:"description,omitempty"`
}

// DefaultsConfig holds values applied to technicians that omit them.
type DefaultsConfig struct {
	WorkingHoursStart int `yaml:"working_hours_start"`
	WorkingHoursEnd   int `yaml:"working_hours_end"`
}

// TechniciansConfig is the root of technicians.yaml.
type TechniciansConfig struct {
	Technicians []TechnicianConfig  `yaml:"technicians"`
	Defaults    DefaultsConfig      `yaml:"defaults"`
	Bookings    []SeedBookingConfig `yaml:"bookings"`
}

// LoadTechniciansConfig loads and validates technicians configuration from YAML file.
func LoadTechniciansConfig(path string) (*TechniciansConfig, error) {
	if path == "" {
		path = "configs/technicians.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read technicians config: %w", err)
	}

	return ParseTechniciansConfig(data)
}

// ParseTechniciansConfig parses, defaults and validates raw YAML.
func ParseTechniciansConfig(data []byte) (*TechniciansConfig, error) {
	var cfg TechniciansConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse technicians config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate technicians config: %w", err)
	}

	return &cfg, nil
}

func (c *TechniciansConfig) applyDefaults() {
	if c.Defaults.WorkingHoursStart == 0 && c.Defaults.WorkingHoursEnd == 0 {
		c.Defaults.WorkingHoursStart = 9
		c.Defaults.WorkingHoursEnd = 17
	}
	for i := range c.Technicians {
		t := &c.Technicians[i]
		if t.WorkingHoursStart == nil {
			v := c.Defaults.WorkingHoursStart
			t.WorkingHoursStart = &v
		}
		if t.WorkingHoursEnd == nil {
			v := c.Defaults.WorkingHoursEnd
			t.WorkingHoursEnd = &v
		}
		if t.IsActive == nil {
			v := true
			t.IsActive = &v
		}
		t.Type = model.NormalizeType(t.Type)
	}
}

// Validate checks the configuration for errors.
func (c *TechniciansConfig) Validate() error {
	if len(c.Technicians) == 0 {
		return fmt.Errorf("no technicians defined")
	}

	ids := make(map[int]bool)
	names := make(map[string]bool)

	for i, t := range c.Technicians {
		if t.ID <= 0 {
			return fmt.Errorf("technician[%d]: id must be positive, got %d", i, t.ID)
		}
		if ids[t.ID] {
			return fmt.Errorf("technician[%d]: duplicate id %d", i, t.ID)
		}
		ids[t.ID] = true

		if t.Name == "" {
			return fmt.Errorf("technician[%d]: name is required", i)
		}
		if names[t.Name] {
			return fmt.Errorf("technician[%d]: duplicate name '%s'", i, t.Name)
		}
		names[t.Name] = true

		if t.Type == "" {
			return fmt.Errorf("technician[%d]: type is required", i)
		}

		start, end := *t.WorkingHoursStart, *t.WorkingHoursEnd
		if start < 0 || end > 24 || start >= end {
			return fmt.Errorf("technician[%d]: invalid working hours %d-%d, need 0 <= start < end <= 24", i, start, end)
		}
	}

	for i, b := range c.Bookings {
		if !names[b.Technician] {
			return fmt.Errorf("booking[%d]: unknown technician '%s'", i, b.Technician)
		}
		at, err := time.Parse(SeedTimeLayout, b.Time)
		if err != nil {
			return fmt.Errorf("booking[%d]: invalid time '%s', expected YYYY-MM-DDTHH:MM", i, b.Time)
		}
		if !model.IsHourAligned(at) {
			return fmt.Errorf("booking[%d]: time '%s' is not on the hour", i, b.Time)
		}
	}

	return nil
}

// ToModels converts the config entries to technician records.
func (c *TechniciansConfig) ToModels() []model.Technician {
	result := make([]model.Technician, 0, len(c.Technicians))
	for _, t := range c.Technicians {
		result = append(result, model.Technician{
			ID:                int64(t.ID),
			Name:              t.Name,
			Type:              t.Type,
			WorkingHoursStart: *t.WorkingHoursStart,
			WorkingHoursEnd:   *t.WorkingHoursEnd,
			IsActive:          *t.IsActive,
		})
	}
	return result
}

// String returns a summary of the configuration.
func (c *TechniciansConfig) String() string {
	active := 0
	for _, t := range c.Technicians {
		if *t.IsActive {
			active++
		}
	}
	return fmt.Sprintf("TechniciansConfig: %d technicians (%d active), %d seed bookings",
		len(c.Technicians), active, len(c.Bookings))
}
