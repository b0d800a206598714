package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"techsched/internal/model"
)

const technicianColumns = `id, name, type, working_hours_start, working_hours_end, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTechnician(s rowScanner) (*model.Technician, error) {
	var t model.Technician
	var createdAt, updatedAt sql.NullTime
	if err := s.Scan(&t.ID, &t.Name, &t.Type, &t.WorkingHoursStart, &t.WorkingHoursEnd, &t.IsActive, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.CreatedAt = createdAt.Time
	t.UpdatedAt = updatedAt.Time
	return &t, nil
}

// GetTechnician returns the technician with id or model.ErrTechnicianNotFound.
func (q queries) GetTechnician(ctx context.Context, id int64) (*model.Technician, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+technicianColumns+` FROM technicians WHERE id = ?`, id)
	t, err := scanTechnician(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrTechnicianNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get technician %d: %w", id, err)
	}
	return t, nil
}

// ListTechnicians returns all technicians ordered by id.
func (q queries) ListTechnicians(ctx context.Context, activeOnly bool) ([]model.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`
	return q.selectTechnicians(ctx, query)
}

// ListTechniciansByType returns technicians whose stored type equals techType.
// The caller passes the normalised form.
func (q queries) ListTechniciansByType(ctx context.Context, techType string, activeOnly bool) ([]model.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians WHERE type = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY id`
	return q.selectTechnicians(ctx, query, techType)
}

func (q queries) selectTechnicians(ctx context.Context, query string, args ...any) ([]model.Technician, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list technicians: %w", err)
	}
	defer rows.Close()

	var result []model.Technician
	for rows.Next() {
		t, err := scanTechnician(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

// CountTechnicians returns the number of technician rows.
func (q queries) CountTechnicians(ctx context.Context) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM technicians`).Scan(&n)
	return n, err
}

// UpsertTechnician inserts or updates a technician by id, keeping created_at.
func (q queries) UpsertTechnician(ctx context.Context, t *model.Technician) error {
	now := nowUTC()
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO technicians (id, name, type, working_hours_start, working_hours_end, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, COALESCE((SELECT created_at FROM technicians WHERE id = ?), ?), ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			working_hours_start = excluded.working_hours_start,
			working_hours_end = excluded.working_hours_end,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		t.ID, t.Name, model.NormalizeType(t.Type), t.WorkingHoursStart, t.WorkingHoursEnd, t.IsActive, t.ID, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert technician %d: %w", t.ID, err)
	}
	return nil
}

// SetTechnicianActive flips the is_active flag.
func (q queries) SetTechnicianActive(ctx context.Context, id int64, active bool) error {
	res, err := q.q.ExecContext(ctx, `UPDATE technicians SET is_active = ?, updated_at = ? WHERE id = ?`, active, nowUTC(), id)
	if err != nil {
		return fmt.Errorf("set technician %d active: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrTechnicianNotFound
	}
	return nil
}
