package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jakechorley/blood-camps/pkg/db"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const registrationColumns = `id, camp_id, donor_id, registered_at, status, cancelled_at`

func scanRegistration(row pgx.Row) (*db.Registration, error) {
	var r db.Registration
	var status string
	if err := row.Scan(&r.ID, &r.CampID, &r.DonorID, &r.RegisteredAt, &status, &r.CancelledAt); err != nil {
		return nil, err
	}
	r.Status = db.RegistrationStatus(status)
	return &r, nil
}

// ReserveAndRegister claims a slot and inserts the registration in one transaction.
// The conditional increment is evaluated on the locked camp row, so current_donors
// never exceeds max_donors.
func (d *DB) ReserveAndRegister(ctx context.Context, reg *db.Registration) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var active bool
	err = tx.QueryRow(ctx, `SELECT active FROM camps WHERE id = $1`, reg.CampID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get camp: %w", err)
	}
	if !active {
		return db.ErrCampNotAcceptingDonors
	}

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM registrations WHERE camp_id = $1 AND donor_id = $2 AND status = 'REGISTERED'
		)
	`, reg.CampID, reg.DonorID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check registration: %w", err)
	}
	if exists {
		return db.ErrAlreadyRegistered
	}

	tag, err := tx.Exec(ctx, `
		UPDATE camps SET current_donors = current_donors + 1
		WHERE id = $1 AND active AND current_donors < max_donors
	`, reg.CampID)
	if err != nil {
		return fmt.Errorf("failed to reserve slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrCampFull
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO registrations (id, camp_id, donor_id, registered_at, status)
		VALUES ($1, $2, $3, $4, 'REGISTERED')
	`, reg.ID, reg.CampID, reg.DonorID, reg.RegisteredAt.UTC())
	if isUniqueViolation(err) {
		// A concurrent registration for the same donor won; rollback releases our slot
		return db.ErrAlreadyRegistered
	}
	if err != nil {
		return fmt.Errorf("failed to insert registration: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	reg.Status = db.StatusRegistered
	return nil
}

// CancelRegistration cancels the active registration and recomputes current_donors
func (d *DB) CancelRegistration(ctx context.Context, campID, donorID string, at time.Time) (*db.Registration, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the camp first, in the same order as ReserveAndRegister
	if _, err := tx.Exec(ctx, `SELECT 1 FROM camps WHERE id = $1 FOR UPDATE`, campID); err != nil {
		return nil, fmt.Errorf("failed to lock camp: %w", err)
	}

	reg, err := scanRegistration(tx.QueryRow(ctx, `
		UPDATE registrations SET status = 'CANCELLED', cancelled_at = $3
		WHERE camp_id = $1 AND donor_id = $2 AND status = 'REGISTERED'
		RETURNING `+registrationColumns, campID, donorID, at.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel registration: %w", err)
	}

	if _, err := tx.Exec(ctx, recountSQL, campID); err != nil {
		return nil, fmt.Errorf("failed to recount camp donors: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return reg, nil
}

const recountSQL = `
	UPDATE camps SET current_donors = (
		SELECT COUNT(*) FROM registrations WHERE camp_id = $1 AND status = 'REGISTERED'
	)
	WHERE id = $1
	RETURNING current_donors`

// GetActiveRegistration retrieves the REGISTERED row for a camp and donor
func (d *DB) GetActiveRegistration(ctx context.Context, campID, donorID string) (*db.Registration, error) {
	reg, err := scanRegistration(d.pool.QueryRow(ctx, `
		SELECT `+registrationColumns+` FROM registrations
		WHERE camp_id = $1 AND donor_id = $2 AND status = 'REGISTERED'
	`, campID, donorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

// ListRegistrationsByCamp retrieves every registration of a camp, cancelled ones included
func (d *DB) ListRegistrationsByCamp(ctx context.Context, campID string) ([]db.Registration, error) {
	return d.queryRegistrations(ctx, `
		SELECT `+registrationColumns+` FROM registrations WHERE camp_id = $1 ORDER BY registered_at
	`, campID)
}

// ListRegistrationsByDonor retrieves every registration of a donor, cancelled ones included
func (d *DB) ListRegistrationsByDonor(ctx context.Context, donorID string) ([]db.Registration, error) {
	return d.queryRegistrations(ctx, `
		SELECT `+registrationColumns+` FROM registrations WHERE donor_id = $1 ORDER BY registered_at
	`, donorID)
}

func (d *DB) queryRegistrations(ctx context.Context, sql string, arg string) ([]db.Registration, error) {
	rows, err := d.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query registrations: %w", err)
	}
	defer rows.Close()

	var regs []db.Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registrations: %w", err)
	}

	return regs, nil
}

// ReconcileCampCounter resets current_donors to the number of active registrations
func (d *DB) ReconcileCampCounter(ctx context.Context, campID string) (int, error) {
	var n int
	err := d.pool.QueryRow(ctx, recountSQL, campID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, db.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile camp counter: %w", err)
	}
	return n, nil
}
