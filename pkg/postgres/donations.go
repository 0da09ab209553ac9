package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/blood-camps/pkg/db"
)

// InsertDonation inserts a donation, ignoring a repeat of an existing ID
func (d *DB) InsertDonation(ctx context.Context, donation *db.Donation) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		INSERT INTO donations (id, donor_id, donation_date, is_camp_donation, camp_id, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)
		ON CONFLICT (id) DO NOTHING
	`, donation.ID, donation.DonorID, donation.DonationDate, donation.IsCampDonation,
		donation.CampID, donation.RecordedBy, donation.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to insert donation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const donationColumns = `id, donor_id, donation_date, is_camp_donation, camp_id, recorded_by, created_at`

func scanDonation(row pgx.Row) (*db.Donation, error) {
	var donation db.Donation
	var campID, recordedBy *string
	if err := row.Scan(&donation.ID, &donation.DonorID, &donation.DonationDate, &donation.IsCampDonation,
		&campID, &recordedBy, &donation.CreatedAt); err != nil {
		return nil, err
	}
	donation.DonationDate = donation.DonationDate.UTC()
	if campID != nil {
		donation.CampID = *campID
	}
	if recordedBy != nil {
		donation.RecordedBy = *recordedBy
	}
	return &donation, nil
}

// LastCampDonation retrieves the donor's most recent camp donation, or nil if there is none
func (d *DB) LastCampDonation(ctx context.Context, donorID string) (*db.Donation, error) {
	donation, err := scanDonation(d.pool.QueryRow(ctx, `
		SELECT `+donationColumns+`
		FROM donations
		WHERE donor_id = $1 AND is_camp_donation
		ORDER BY donation_date DESC, created_at DESC
		LIMIT 1
	`, donorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last donation: %w", err)
	}
	return donation, nil
}

// ListDonationsByDonor retrieves all of a donor's donations, newest first
func (d *DB) ListDonationsByDonor(ctx context.Context, donorID string) ([]db.Donation, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+donationColumns+`
		FROM donations
		WHERE donor_id = $1
		ORDER BY donation_date DESC, created_at DESC
	`, donorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query donations: %w", err)
	}
	defer rows.Close()

	var donations []db.Donation
	for rows.Next() {
		donation, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		donations = append(donations, *donation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating donations: %w", err)
	}
	return donations, nil
}

// CountCampDonationsSince counts the donor's camp donations on or after since
func (d *DB) CountCampDonationsSince(ctx context.Context, donorID string, since time.Time) (int, error) {
	var n int
	err := d.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM donations
		WHERE donor_id = $1 AND is_camp_donation AND donation_date >= $2
	`, donorID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count donations: %w", err)
	}
	return n, nil
}
