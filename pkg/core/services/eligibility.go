package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/pkg/db"
)

// DefaultCooldownMonths is the minimum gap between camp donations
const DefaultCooldownMonths = 6

// DonationHistory is the read side of the donation store used for eligibility
type DonationHistory interface {
	LastCampDonation(ctx context.Context, donorID string) (*db.Donation, error)
	CountCampDonationsSince(ctx context.Context, donorID string, since time.Time) (int, error)
}

// Eligibility is the cooldown status of a donor on a given day
type Eligibility struct {
	Eligible         bool
	NextEligibleDate time.Time
	DaysRemaining    int
	LastDonationDate *time.Time // nil when the donor has never donated at a camp
	Message          string
}

// EligibilityEngine computes whether a donor is outside the post-donation cooldown
type EligibilityEngine struct {
	donations      DonationHistory
	cooldownMonths int
	logger         *zap.Logger
	now            func() time.Time
}

func NewEligibilityEngine(donations DonationHistory, cooldownMonths int, logger *zap.Logger) *EligibilityEngine {
	if cooldownMonths <= 0 {
		cooldownMonths = DefaultCooldownMonths
	}
	return &EligibilityEngine{
		donations:      donations,
		cooldownMonths: cooldownMonths,
		logger:         logger,
		now:            time.Now,
	}
}

// CheckEligibility reports whether donorID may register for a new camp today.
// The donor becomes eligible on the day the cooldown ends.
func (e *EligibilityEngine) CheckEligibility(ctx context.Context, donorID string) (*Eligibility, error) {
	today := dateOf(e.now())

	last, err := e.donations.LastCampDonation(ctx, donorID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch last camp donation: %w", err)
	}

	if last == nil {
		e.logger.Debug("No previous camp donation", zap.String("donor_id", donorID))
		return &Eligibility{
			Eligible:         true,
			NextEligibleDate: today,
			Message:          eligibleMessage,
		}, nil
	}

	lastDate := dateOf(last.DonationDate)
	next := addMonths(lastDate, e.cooldownMonths)
	result := &Eligibility{
		Eligible:         !today.Before(next),
		NextEligibleDate: next,
		LastDonationDate: &lastDate,
	}
	if result.Eligible {
		result.Message = eligibleMessage
	} else {
		result.DaysRemaining = daysBetween(today, next)
		result.Message = fmt.Sprintf(
			"Not eligible to register for new camps due to recent blood donation. Next eligible date: %s (%d days remaining)",
			next.Format(dateLayout), result.DaysRemaining)
	}

	e.logger.Debug("Computed eligibility",
		zap.String("donor_id", donorID),
		zap.String("last_donation", lastDate.Format(dateLayout)),
		zap.String("next_eligible", next.Format(dateLayout)),
		zap.Bool("eligible", result.Eligible))

	return result, nil
}

// CampDonationsSince counts the donor's camp donations on or after since
func (e *EligibilityEngine) CampDonationsSince(ctx context.Context, donorID string, since time.Time) (int, error) {
	n, err := e.donations.CountCampDonationsSince(ctx, donorID, dateOf(since))
	if err != nil {
		return 0, fmt.Errorf("failed to count camp donations: %w", err)
	}
	return n, nil
}

const eligibleMessage = "Eligible to register for blood donation camps"
