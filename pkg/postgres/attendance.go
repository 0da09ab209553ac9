package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/blood-camps/pkg/db"
)

const attendanceColumns = `id, camp_id, donor_id, recorded_by, attended_at, blood_donated, notes`

func scanAttendance(row pgx.Row) (*db.Attendance, error) {
	var a db.Attendance
	if err := row.Scan(&a.ID, &a.CampID, &a.DonorID, &a.RecordedBy, &a.AttendedAt, &a.BloodDonated, &a.Notes); err != nil {
		return nil, err
	}
	return &a, nil
}

// InsertAttendance inserts the record only while the donor holds an active registration.
// The existence check and insert are one statement, so a concurrent cancellation either
// lands before it (no row inserted) or after it.
func (d *DB) InsertAttendance(ctx context.Context, a *db.Attendance) error {
	tag, err := d.pool.Exec(ctx, `
		INSERT INTO attendance (id, camp_id, donor_id, recorded_by, attended_at, blood_donated, notes)
		SELECT $1, $2, $3, $4, $5, FALSE, $6
		WHERE EXISTS (
			SELECT 1 FROM registrations WHERE camp_id = $2 AND donor_id = $3 AND status = 'REGISTERED'
		)
	`, a.ID, a.CampID, a.DonorID, a.RecordedBy, a.AttendedAt.UTC(), a.Notes)
	if isUniqueViolation(err) {
		return db.ErrDuplicateAttendance
	}
	if err != nil {
		return fmt.Errorf("failed to insert attendance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotRegistered
	}
	return nil
}

// GetAttendance retrieves the attendance record of a donor at a camp
func (d *DB) GetAttendance(ctx context.Context, campID, donorID string) (*db.Attendance, error) {
	a, err := scanAttendance(d.pool.QueryRow(ctx, `
		SELECT `+attendanceColumns+` FROM attendance WHERE camp_id = $1 AND donor_id = $2
	`, campID, donorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance: %w", err)
	}
	return a, nil
}

// MarkBloodDonated sets blood_donated and notes, reporting whether the flag was already set
func (d *DB) MarkBloodDonated(ctx context.Context, campID, donorID, notes string) (*db.Attendance, bool, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var already bool
	err = tx.QueryRow(ctx, `
		SELECT blood_donated FROM attendance WHERE camp_id = $1 AND donor_id = $2 FOR UPDATE
	`, campID, donorID).Scan(&already)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, db.ErrNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock attendance: %w", err)
	}

	a, err := scanAttendance(tx.QueryRow(ctx, `
		UPDATE attendance SET blood_donated = TRUE, notes = $3
		WHERE camp_id = $1 AND donor_id = $2
		RETURNING `+attendanceColumns, campID, donorID, notes))
	if err != nil {
		return nil, false, fmt.Errorf("failed to mark blood donated: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return a, already, nil
}

// ListAttendanceByCamp retrieves every attendance record of a camp
func (d *DB) ListAttendanceByCamp(ctx context.Context, campID string) ([]db.Attendance, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+attendanceColumns+` FROM attendance WHERE camp_id = $1 ORDER BY attended_at
	`, campID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []db.Attendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance: %w", err)
	}

	return records, nil
}
