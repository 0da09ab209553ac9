package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/blood-camps/pkg/core/model"
	"github.com/jakechorley/blood-camps/pkg/db"
)

// GetUser retrieves a user from the directory
func (d *DB) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	var role string
	var verifiedBy, volunteerVerifiedBy *string
	var verifiedAt, volunteerVerifiedAt *time.Time
	err := d.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, role,
			verified_by, verified_at, volunteer_verified_by, volunteer_verified_at
		FROM users WHERE id = $1
	`, userID).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &role,
		&verifiedBy, &verifiedAt, &volunteerVerifiedBy, &volunteerVerifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.Role = model.Role(role)
	u.Verification = verification(verifiedBy, verifiedAt)
	u.VolunteerVerification = verification(volunteerVerifiedBy, volunteerVerifiedAt)
	return &u, nil
}

func verification(by *string, at *time.Time) *model.VerificationRecord {
	if at == nil {
		return nil
	}
	r := &model.VerificationRecord{At: *at}
	if by != nil {
		r.By = *by
	}
	return r
}

func verificationArgs(r *model.VerificationRecord) (*string, *time.Time) {
	if r == nil {
		return nil, nil
	}
	at := r.At.UTC()
	by := r.By
	return &by, &at
}

// UpsertUsers inserts or replaces users in a single batch
func (d *DB) UpsertUsers(ctx context.Context, users []model.User) error {
	if len(users) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, u := range users {
		verifiedBy, verifiedAt := verificationArgs(u.Verification)
		volBy, volAt := verificationArgs(u.VolunteerVerification)
		batch.Queue(`
			INSERT INTO users (id, first_name, last_name, email, role,
				verified_by, verified_at, volunteer_verified_by, volunteer_verified_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				first_name = EXCLUDED.first_name,
				last_name = EXCLUDED.last_name,
				email = EXCLUDED.email,
				role = EXCLUDED.role,
				verified_by = EXCLUDED.verified_by,
				verified_at = EXCLUDED.verified_at,
				volunteer_verified_by = EXCLUDED.volunteer_verified_by,
				volunteer_verified_at = EXCLUDED.volunteer_verified_at
		`, u.ID, u.FirstName, u.LastName, u.Email, string(u.Role), verifiedBy, verifiedAt, volBy, volAt)
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert users: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
