package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/blood-camps/pkg/db"
)

const campColumns = `id, name, description, location, camp_date, start_time, end_time,
	max_donors, current_donors, organizer_id, active, created_at, updated_at`

func scanCamp(row pgx.Row) (*db.Camp, error) {
	var c db.Camp
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Location, &c.Date, &c.StartTime, &c.EndTime,
		&c.MaxDonors, &c.CurrentDonors, &c.OrganizerID, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Date = c.Date.UTC()
	return &c, nil
}

// InsertCamp inserts a new camp record
func (d *DB) InsertCamp(ctx context.Context, camp *db.Camp) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO camps (id, name, description, location, camp_date, start_time, end_time,
			max_donors, current_donors, organizer_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, camp.ID, camp.Name, camp.Description, camp.Location, camp.Date, camp.StartTime, camp.EndTime,
		camp.MaxDonors, camp.CurrentDonors, camp.OrganizerID, camp.Active, camp.CreatedAt.UTC(), camp.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert camp: %w", err)
	}
	return nil
}

// UpdateCamp replaces the editable fields of a camp. The capacity guard is evaluated
// against current_donors in the same statement, so a concurrent registration cannot
// slip below the new limit.
func (d *DB) UpdateCamp(ctx context.Context, camp *db.Camp) error {
	var current int
	err := d.pool.QueryRow(ctx, `
		UPDATE camps
		SET name = $2, description = $3, location = $4, camp_date = $5, start_time = $6,
			end_time = $7, max_donors = $8, updated_at = $9
		WHERE id = $1 AND current_donors <= $8
		RETURNING current_donors
	`, camp.ID, camp.Name, camp.Description, camp.Location, camp.Date, camp.StartTime,
		camp.EndTime, camp.MaxDonors, camp.UpdatedAt.UTC()).Scan(&current)
	if err == nil {
		camp.CurrentDonors = current
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to update camp: %w", err)
	}

	// Distinguish a missing camp from a rejected capacity change
	if _, err := d.GetCamp(ctx, camp.ID); err != nil {
		return err
	}
	return db.ErrCapacityBelowOccupied
}

// SetCampActive toggles the soft-delete flag of a camp
func (d *DB) SetCampActive(ctx context.Context, campID string, active bool) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE camps SET active = $2, updated_at = NOW() WHERE id = $1
	`, campID, active)
	if err != nil {
		return fmt.Errorf("failed to set camp active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// GetCamp retrieves a camp by ID
func (d *DB) GetCamp(ctx context.Context, campID string) (*db.Camp, error) {
	camp, err := scanCamp(d.pool.QueryRow(ctx, `SELECT `+campColumns+` FROM camps WHERE id = $1`, campID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camp: %w", err)
	}
	return camp, nil
}

// ListCamps retrieves every camp, including inactive ones
func (d *DB) ListCamps(ctx context.Context) ([]db.Camp, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+campColumns+` FROM camps ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query camps: %w", err)
	}
	defer rows.Close()

	var camps []db.Camp
	for rows.Next() {
		c, err := scanCamp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan camp: %w", err)
		}
		camps = append(camps, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating camps: %w", err)
	}

	return camps, nil
}
