package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/pkg/core/model"
	"github.com/jakechorley/blood-camps/pkg/db"
	"github.com/jakechorley/blood-camps/pkg/metrics"
)

// RegistrationLedgerStore is the store surface used by RegistrationLedger
type RegistrationLedgerStore interface {
	db.RegistrationStore
	db.UserDirectory
	GetCamp(ctx context.Context, campID string) (*db.Camp, error)
}

// Preview is the side-effect-free outcome of a registration attempt
type Preview struct {
	Eligible bool
	Reason   model.ErrorKind // zero when Eligible
	Message  string
}

// RegistrationStats summarises the registration ledger of one camp
type RegistrationStats struct {
	Total            int
	Active           int
	Cancelled        int
	MaxDonors        int
	RegistrationRate float64 // active / max donors, in percent
}

// RegistrationLedger runs the registration state machine for (camp, donor) pairs
type RegistrationLedger struct {
	store       RegistrationLedgerStore
	eligibility *EligibilityEngine
	notifier    Notifier
	logger      *zap.Logger
	now         func() time.Time
}

func NewRegistrationLedger(store RegistrationLedgerStore, eligibility *EligibilityEngine, notifier Notifier, logger *zap.Logger) *RegistrationLedger {
	return &RegistrationLedger{
		store:       store,
		eligibility: eligibility,
		notifier:    orNop(notifier),
		logger:      logger,
		now:         time.Now,
	}
}

// Register reserves a slot for donor at the camp.
// Checks run in order: cooldown, donor verification, camp registrability, existing
// registration, then the atomic reserve-and-insert.
func (l *RegistrationLedger) Register(ctx context.Context, campID string, donor *model.User) (reg *db.Registration, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperation("register", err, time.Since(start).Seconds())
		metrics.RecordRegistration(registrationOutcome(err))
	}()

	camp, err := l.checkRegistrable(ctx, campID, donor)
	if err != nil {
		return nil, err
	}

	reg = &db.Registration{
		ID:           uuid.New().String(),
		CampID:       campID,
		DonorID:      donor.ID,
		RegisteredAt: l.now(),
		Status:       db.StatusRegistered,
	}

	if err := l.store.ReserveAndRegister(ctx, reg); err != nil {
		switch {
		case errors.Is(err, db.ErrCampFull):
			l.logger.Info("Camp full", zap.String("camp_id", campID), zap.String("donor_id", donor.ID))
			return nil, model.NewError(model.KindCampFull, "")
		case errors.Is(err, db.ErrAlreadyRegistered):
			return nil, model.NewError(model.KindAlreadyRegistered, "")
		case errors.Is(err, db.ErrNotFound), errors.Is(err, db.ErrCampNotAcceptingDonors):
			return nil, model.NewError(model.KindCampNotRegistrable, "")
		}
		return nil, fmt.Errorf("failed to reserve camp slot: %w", err)
	}

	l.logger.Info("Donor registered",
		zap.String("registration_id", reg.ID),
		zap.String("camp_id", campID),
		zap.String("donor_id", donor.ID))

	l.notifier.Notify(model.Event{
		Type:       model.EventRegistrationConfirmed,
		CampID:     campID,
		CampName:   camp.Name,
		DonorID:    donor.ID,
		ActorID:    donor.ID,
		RefID:      reg.ID,
		OccurredAt: reg.RegisteredAt,
	})

	return reg, nil
}

// Cancel releases the donor's active registration and its slot
func (l *RegistrationLedger) Cancel(ctx context.Context, campID string, donor *model.User) (reg *db.Registration, err error) {
	start := time.Now()
	defer func() { metrics.RecordOperation("cancel", err, time.Since(start).Seconds()) }()

	if donor == nil {
		return nil, model.NewError(model.KindRegistrationNotFound, "")
	}

	reg, err = l.store.CancelRegistration(ctx, campID, donor.ID, l.now())
	if errors.Is(err, db.ErrNotRegistered) {
		return nil, model.NewError(model.KindRegistrationNotFound, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel registration: %w", err)
	}

	l.logger.Info("Registration cancelled",
		zap.String("registration_id", reg.ID),
		zap.String("camp_id", campID),
		zap.String("donor_id", donor.ID))
	return reg, nil
}

// EligibilityPreview runs the registration checks without reserving a slot
func (l *RegistrationLedger) EligibilityPreview(ctx context.Context, campID string, donor *model.User) (*Preview, error) {
	camp, err := l.checkRegistrable(ctx, campID, donor)
	if err == nil && camp.AvailableSlots() == 0 {
		err = model.NewError(model.KindCampFull, "")
	}
	if err == nil {
		return &Preview{Eligible: true, Message: "Eligible to register for this camp"}, nil
	}

	kind, ok := model.KindOf(err)
	if !ok {
		return nil, err
	}
	return &Preview{Reason: kind, Message: err.Error()}, nil
}

// RegistrationsForCamp returns the active registrations of a camp
func (l *RegistrationLedger) RegistrationsForCamp(ctx context.Context, campID string) ([]db.Registration, error) {
	regs, err := l.store.ListRegistrationsByCamp(ctx, campID)
	if err != nil {
		return nil, fmt.Errorf("failed to list camp registrations: %w", err)
	}
	return activeOnly(regs), nil
}

// RegistrationsForDonor returns the donor's active registrations
func (l *RegistrationLedger) RegistrationsForDonor(ctx context.Context, donorID string) ([]db.Registration, error) {
	regs, err := l.store.ListRegistrationsByDonor(ctx, donorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list donor registrations: %w", err)
	}
	return activeOnly(regs), nil
}

func (l *RegistrationLedger) IsRegistered(ctx context.Context, campID, donorID string) (bool, error) {
	_, err := l.store.GetActiveRegistration(ctx, campID, donorID)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get registration: %w", err)
	}
	return true, nil
}

// RegistrationStatistics counts a camp's registrations by status
func (l *RegistrationLedger) RegistrationStatistics(ctx context.Context, campID string) (*RegistrationStats, error) {
	camp, err := l.store.GetCamp(ctx, campID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, model.NewError(model.KindCampNotFound, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camp: %w", err)
	}

	regs, err := l.store.ListRegistrationsByCamp(ctx, campID)
	if err != nil {
		return nil, fmt.Errorf("failed to list camp registrations: %w", err)
	}

	stats := &RegistrationStats{Total: len(regs), MaxDonors: camp.MaxDonors}
	for _, r := range regs {
		if r.Status == db.StatusRegistered {
			stats.Active++
		} else {
			stats.Cancelled++
		}
	}
	stats.RegistrationRate = percent(stats.Active, camp.MaxDonors)
	return stats, nil
}

// SearchRegisteredDonors returns actively registered donors whose name or email matches query
func (l *RegistrationLedger) SearchRegisteredDonors(ctx context.Context, campID, query string) ([]model.User, error) {
	regs, err := l.RegistrationsForCamp(ctx, campID)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	users := newOrganizerCache(l.store)
	var result []model.User
	for _, r := range regs {
		u, err := users.get(ctx, r.DonorID)
		if err != nil {
			return nil, err
		}
		if u == nil {
			continue
		}
		if q == "" || matchesName(u, q) || strings.Contains(strings.ToLower(u.Email), q) {
			result = append(result, *u)
		}
	}
	return result, nil
}

// ReconcileCapacity resets the camp's counter to its number of active registrations
func (l *RegistrationLedger) ReconcileCapacity(ctx context.Context, campID string) (int, error) {
	n, err := l.store.ReconcileCampCounter(ctx, campID)
	if errors.Is(err, db.ErrNotFound) {
		return 0, model.NewError(model.KindCampNotFound, "")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile camp counter: %w", err)
	}
	l.logger.Info("Camp counter reconciled", zap.String("camp_id", campID), zap.Int("current_donors", n))
	return n, nil
}

// checkRegistrable runs every registration check that does not need the reservation
func (l *RegistrationLedger) checkRegistrable(ctx context.Context, campID string, donor *model.User) (*db.Camp, error) {
	if donor == nil {
		return nil, model.NewError(model.KindNotEligibleDonor, "")
	}

	eligibility, err := l.eligibility.CheckEligibility(ctx, donor.ID)
	if err != nil {
		return nil, err
	}
	if !eligibility.Eligible {
		return nil, model.NewError(model.KindCooldownActive, "%s", eligibility.Message)
	}

	if !donor.IsVerifiedDonor() {
		return nil, model.NewError(model.KindNotEligibleDonor, "")
	}

	camp, err := l.store.GetCamp(ctx, campID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, model.NewError(model.KindCampNotRegistrable, "camp not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camp: %w", err)
	}
	if !camp.Active {
		return nil, model.NewError(model.KindCampNotRegistrable, "camp is no longer active")
	}

	organizer, err := newOrganizerCache(l.store).get(ctx, camp.OrganizerID)
	if err != nil {
		return nil, err
	}
	if !organizer.IsVerifiedVolunteer() {
		return nil, model.NewError(model.KindCampNotRegistrable, "camp organizer is not verified")
	}

	if camp.Date.Before(dateOf(l.now())) {
		return nil, model.NewError(model.KindCampNotRegistrable, "cannot register for past camps")
	}

	registered, err := l.IsRegistered(ctx, campID, donor.ID)
	if err != nil {
		return nil, err
	}
	if registered {
		return nil, model.NewError(model.KindAlreadyRegistered, "")
	}

	return camp, nil
}

func activeOnly(regs []db.Registration) []db.Registration {
	var result []db.Registration
	for _, r := range regs {
		if r.Status == db.StatusRegistered {
			result = append(result, r)
		}
	}
	return result
}

func registrationOutcome(err error) string {
	if err == nil {
		return "registered"
	}
	if kind, ok := model.KindOf(err); ok {
		return kind.String()
	}
	return "error"
}
