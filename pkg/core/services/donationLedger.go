package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/pkg/core/model"
	"github.com/jakechorley/blood-camps/pkg/db"
)

// DonationLedgerStore is the subset of the store used for donation history
type DonationLedgerStore interface {
	db.DonationStore
	db.UserDirectory
}

// DonationStats summarises a donor's history and camp eligibility
type DonationStats struct {
	TotalDonations       int
	CampDonations        int
	RegularDonations     int
	LastDonationDate     *time.Time
	LastCampDonationDate *time.Time
	Eligibility          Eligibility
}

// DonationLedger records ad-hoc donations made outside camps and reads donor history.
// Ad-hoc donations are kept in the history but never start the camp cooldown.
type DonationLedger struct {
	store       DonationLedgerStore
	eligibility *EligibilityEngine
	logger      *zap.Logger
	now         func() time.Time
}

func NewDonationLedger(store DonationLedgerStore, eligibility *EligibilityEngine, logger *zap.Logger) *DonationLedger {
	return &DonationLedger{
		store:       store,
		eligibility: eligibility,
		logger:      logger,
		now:         time.Now,
	}
}

// RecordRegularDonation stores a donation made outside a camp. The donor may record their
// own donation; a verified volunteer may record one for any donor.
func (l *DonationLedger) RecordRegularDonation(ctx context.Context, donorID string, date time.Time, actor *model.User) (*db.Donation, error) {
	if actor == nil {
		return nil, model.NewError(model.KindNotAuthorized, "")
	}
	byVolunteer := actor.IsVerifiedVolunteer()
	if actor.ID != donorID && !byVolunteer {
		return nil, model.NewError(model.KindNotAuthorized, "only the donor or a verified volunteer can record a donation")
	}

	donor, err := l.store.GetUser(ctx, donorID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, model.NewError(model.KindNotEligibleDonor, "unknown donor %s", donorID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donor: %w", err)
	}
	if donor.Role != model.RoleDonor {
		return nil, model.NewError(model.KindNotEligibleDonor, "")
	}

	date = dateOf(date)
	if date.After(dateOf(l.now())) {
		return nil, model.NewError(model.KindInvalidDefinition, "donation date cannot be in the future")
	}

	donation := &db.Donation{
		ID:           uuid.New().String(),
		DonorID:      donor.ID,
		DonationDate: date,
		CreatedAt:    l.now(),
	}
	if byVolunteer && actor.ID != donorID {
		donation.RecordedBy = actor.ID
	}

	if _, err := l.store.InsertDonation(ctx, donation); err != nil {
		return nil, fmt.Errorf("failed to insert donation: %w", err)
	}

	l.logger.Info("Regular donation recorded",
		zap.String("donation_id", donation.ID),
		zap.String("donor_id", donor.ID),
		zap.String("date", date.Format(dateLayout)))
	return donation, nil
}

// DonationsForDonor returns the donor's history, newest first
func (l *DonationLedger) DonationsForDonor(ctx context.Context, donorID string) ([]db.Donation, error) {
	donations, err := l.store.ListDonationsByDonor(ctx, donorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	return donations, nil
}

// DonationsBetween returns donations dated from..to inclusive, newest first
func (l *DonationLedger) DonationsBetween(ctx context.Context, donorID string, from, to time.Time) ([]db.Donation, error) {
	all, err := l.DonationsForDonor(ctx, donorID)
	if err != nil {
		return nil, err
	}
	from, to = dateOf(from), dateOf(to)
	var result []db.Donation
	for _, d := range all {
		date := dateOf(d.DonationDate)
		if !date.Before(from) && !date.After(to) {
			result = append(result, d)
		}
	}
	return result, nil
}

// DonationStatistics counts the donor's camp and regular donations and attaches camp eligibility
func (l *DonationLedger) DonationStatistics(ctx context.Context, donorID string) (*DonationStats, error) {
	donations, err := l.DonationsForDonor(ctx, donorID)
	if err != nil {
		return nil, err
	}

	stats := &DonationStats{TotalDonations: len(donations)}
	for i := range donations {
		date := dateOf(donations[i].DonationDate)
		// newest first, so the first match of each kind is the latest
		if stats.LastDonationDate == nil {
			stats.LastDonationDate = &date
		}
		if donations[i].IsCampDonation {
			stats.CampDonations++
			if stats.LastCampDonationDate == nil {
				stats.LastCampDonationDate = &date
			}
		}
	}
	stats.RegularDonations = stats.TotalDonations - stats.CampDonations

	eligibility, err := l.eligibility.CheckEligibility(ctx, donorID)
	if err != nil {
		return nil, err
	}
	stats.Eligibility = *eligibility
	return stats, nil
}
