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

// AttendanceLedgerStore is the store surface used by AttendanceLedger
type AttendanceLedgerStore interface {
	db.AttendanceStore
	db.UserDirectory
	GetCamp(ctx context.Context, campID string) (*db.Camp, error)
	ListCamps(ctx context.Context) ([]db.Camp, error)
	ListRegistrationsByCamp(ctx context.Context, campID string) ([]db.Registration, error)
}

// DonationOutcome is the result of marking an attendee as having donated
type DonationOutcome struct {
	Attendance db.Attendance
	Donation   *db.Donation // nil when the attendance had already been marked
	// DonationPending is set when the donation write failed and was queued for retry
	DonationPending bool
}

// Attendee pairs an attendance record with the donor's account
type Attendee struct {
	Attendance db.Attendance
	Donor      *model.User // nil if the donor is no longer in the directory
}

// AttendanceStats summarises attendance at one camp or across camps
type AttendanceStats struct {
	TotalAttendees   int
	BloodDonations   int
	MaxCapacity      int
	RegisteredDonors int
	DonationRate     float64 // donations / attendees, in percent
}

// AttendanceLedger records who turned up at a camp and who donated
type AttendanceLedger struct {
	store    AttendanceLedgerStore
	recorder *DonationRecorder
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewAttendanceLedger(store AttendanceLedgerStore, recorder *DonationRecorder, notifier Notifier, logger *zap.Logger) *AttendanceLedger {
	return &AttendanceLedger{
		store:    store,
		recorder: recorder,
		notifier: orNop(notifier),
		logger:   logger,
		now:      time.Now,
	}
}

// RecordAttendance records that a registered donor arrived at the camp.
// Any verified volunteer may record attendance, not only the organizer.
func (l *AttendanceLedger) RecordAttendance(ctx context.Context, campID, donorID string, volunteer *model.User) (att *db.Attendance, err error) {
	start := time.Now()
	defer func() { metrics.RecordOperation("record_attendance", err, time.Since(start).Seconds()) }()

	camp, err := l.authorize(ctx, campID, volunteer)
	if err != nil {
		return nil, err
	}

	att = &db.Attendance{
		ID:         uuid.New().String(),
		CampID:     campID,
		DonorID:    donorID,
		RecordedBy: volunteer.ID,
		AttendedAt: l.now(),
	}

	if err := l.store.InsertAttendance(ctx, att); err != nil {
		switch {
		case errors.Is(err, db.ErrNotRegistered):
			return nil, model.NewError(model.KindNotRegistered, "")
		case errors.Is(err, db.ErrDuplicateAttendance):
			return nil, model.NewError(model.KindDuplicateAttendance, "")
		}
		return nil, fmt.Errorf("failed to insert attendance: %w", err)
	}

	l.logger.Info("Attendance recorded",
		zap.String("attendance_id", att.ID),
		zap.String("camp_id", campID),
		zap.String("donor_id", donorID),
		zap.String("recorded_by", volunteer.ID))

	l.notifier.Notify(model.Event{
		Type:       model.EventAttendanceRecorded,
		CampID:     campID,
		CampName:   camp.Name,
		DonorID:    donorID,
		ActorID:    volunteer.ID,
		RefID:      att.ID,
		OccurredAt: att.AttendedAt,
	})

	return att, nil
}

// MarkBloodDonation flags an attendance as a donation, then writes the Donation record.
// The attendance update is committed first; a failed donation write is queued for retry
// and reported through DonationPending. Marking twice only updates the notes.
func (l *AttendanceLedger) MarkBloodDonation(ctx context.Context, campID, donorID string, volunteer *model.User, notes string) (outcome *DonationOutcome, err error) {
	start := time.Now()
	defer func() { metrics.RecordOperation("mark_donation", err, time.Since(start).Seconds()) }()

	if _, err := l.authorize(ctx, campID, volunteer); err != nil {
		return nil, err
	}

	att, alreadyDonated, err := l.store.MarkBloodDonated(ctx, campID, donorID, strings.TrimSpace(notes))
	if errors.Is(err, db.ErrNotFound) {
		return nil, model.NewError(model.KindAttendanceNotFound, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark blood donation: %w", err)
	}

	outcome = &DonationOutcome{Attendance: *att}
	if alreadyDonated {
		l.logger.Debug("Donation already marked, notes updated",
			zap.String("attendance_id", att.ID))
		return outcome, nil
	}

	now := l.now()
	donation := campDonation(att, volunteer.ID, dateOf(now), now)
	outcome.Donation = &donation
	outcome.DonationPending = !l.recorder.Record(ctx, donation)

	return outcome, nil
}

// RestoreMissingDonations writes a Donation for every attendance at the camp that is marked
// as donated but has no donation record, such as a write that failed in a process which
// exited before retrying. It returns the number of records created.
func (l *AttendanceLedger) RestoreMissingDonations(ctx context.Context, campID string) (int, error) {
	records, err := l.store.ListAttendanceByCamp(ctx, campID)
	if err != nil {
		return 0, fmt.Errorf("failed to list attendance: %w", err)
	}

	restored := 0
	for i := range records {
		att := &records[i]
		if !att.BloodDonated {
			continue
		}
		donation := campDonation(att, att.RecordedBy, dateOf(att.AttendedAt), l.now())
		created, err := l.recorder.Restore(ctx, donation)
		if err != nil {
			return restored, fmt.Errorf("failed to restore donation %s: %w", donation.ID, err)
		}
		if created {
			restored++
		}
	}

	if restored > 0 {
		l.logger.Warn("Restored missing donation records",
			zap.String("camp_id", campID),
			zap.Int("restored", restored))
	}
	return restored, nil
}

// campDonation builds the Donation for a donated attendance. It is keyed by the attendance
// ID so a retried or restored write can never create a second donation.
func campDonation(att *db.Attendance, recordedBy string, date, now time.Time) db.Donation {
	return db.Donation{
		ID:             att.ID,
		DonorID:        att.DonorID,
		DonationDate:   date,
		IsCampDonation: true,
		CampID:         att.CampID,
		RecordedBy:     recordedBy,
		CreatedAt:      now,
	}
}

// ListAttendees returns everyone recorded at the camp
func (l *AttendanceLedger) ListAttendees(ctx context.Context, campID string, volunteer *model.User) ([]Attendee, error) {
	if _, err := l.authorize(ctx, campID, volunteer); err != nil {
		return nil, err
	}
	records, err := l.store.ListAttendanceByCamp(ctx, campID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}

	users := newOrganizerCache(l.store)
	attendees := make([]Attendee, 0, len(records))
	for _, a := range records {
		donor, err := users.get(ctx, a.DonorID)
		if err != nil {
			return nil, err
		}
		attendees = append(attendees, Attendee{Attendance: a, Donor: donor})
	}
	return attendees, nil
}

// SearchAttendees filters attendees by donor name or email
func (l *AttendanceLedger) SearchAttendees(ctx context.Context, campID string, volunteer *model.User, query string) ([]Attendee, error) {
	attendees, err := l.ListAttendees(ctx, campID, volunteer)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return attendees, nil
	}
	var result []Attendee
	for _, a := range attendees {
		if a.Donor != nil && (matchesName(a.Donor, q) || strings.Contains(strings.ToLower(a.Donor.Email), q)) {
			result = append(result, a)
		}
	}
	return result, nil
}

// AttendeeDetails returns one donor's attendance at the camp
func (l *AttendanceLedger) AttendeeDetails(ctx context.Context, campID, donorID string, volunteer *model.User) (*Attendee, error) {
	if _, err := l.authorize(ctx, campID, volunteer); err != nil {
		return nil, err
	}
	a, err := l.store.GetAttendance(ctx, campID, donorID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, model.NewError(model.KindAttendanceNotFound, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance: %w", err)
	}
	donor, err := newOrganizerCache(l.store).get(ctx, donorID)
	if err != nil {
		return nil, err
	}
	return &Attendee{Attendance: *a, Donor: donor}, nil
}

// PendingArrivals returns actively registered donors with no attendance yet
func (l *AttendanceLedger) PendingArrivals(ctx context.Context, campID string, volunteer *model.User) ([]model.User, error) {
	if _, err := l.authorize(ctx, campID, volunteer); err != nil {
		return nil, err
	}
	regs, err := l.store.ListRegistrationsByCamp(ctx, campID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	records, err := l.store.ListAttendanceByCamp(ctx, campID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	arrived := make(map[string]bool, len(records))
	for _, a := range records {
		arrived[a.DonorID] = true
	}

	users := newOrganizerCache(l.store)
	var result []model.User
	for _, r := range activeOnly(regs) {
		if arrived[r.DonorID] {
			continue
		}
		donor, err := users.get(ctx, r.DonorID)
		if err != nil {
			return nil, err
		}
		if donor != nil {
			result = append(result, *donor)
		}
	}
	return result, nil
}

// CampStatistics summarises attendance at one camp
func (l *AttendanceLedger) CampStatistics(ctx context.Context, campID string, volunteer *model.User) (*AttendanceStats, error) {
	camp, err := l.authorize(ctx, campID, volunteer)
	if err != nil {
		return nil, err
	}
	stats := &AttendanceStats{}
	if err := l.accumulate(ctx, camp, stats); err != nil {
		return nil, err
	}
	stats.DonationRate = percent(stats.BloodDonations, stats.TotalAttendees)
	return stats, nil
}

// GlobalStatistics summarises attendance across all active camps
func (l *AttendanceLedger) GlobalStatistics(ctx context.Context, volunteer *model.User) (*AttendanceStats, error) {
	if !volunteer.IsVerifiedVolunteer() {
		return nil, model.NewError(model.KindNotAuthorized, "only verified volunteers can view attendance statistics")
	}
	camps, err := l.store.ListCamps(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list camps: %w", err)
	}
	stats := &AttendanceStats{}
	for i := range camps {
		if !camps[i].Active {
			continue
		}
		if err := l.accumulate(ctx, &camps[i], stats); err != nil {
			return nil, err
		}
	}
	stats.DonationRate = percent(stats.BloodDonations, stats.TotalAttendees)
	return stats, nil
}

// CanManageAttendance reports whether volunteer may record attendance at the camp
func (l *AttendanceLedger) CanManageAttendance(ctx context.Context, campID string, volunteer *model.User) (bool, error) {
	_, err := l.authorize(ctx, campID, volunteer)
	if err == nil {
		return true, nil
	}
	if _, ok := model.KindOf(err); ok {
		return false, nil
	}
	return false, err
}

// authorize checks that volunteer is verified and the camp's organizer is verified
func (l *AttendanceLedger) authorize(ctx context.Context, campID string, volunteer *model.User) (*db.Camp, error) {
	if !volunteer.IsVerifiedVolunteer() {
		return nil, model.NewError(model.KindNotAuthorized, "only verified volunteers can manage attendance")
	}

	camp, err := l.store.GetCamp(ctx, campID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, model.NewError(model.KindCampNotFound, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camp: %w", err)
	}

	organizer, err := newOrganizerCache(l.store).get(ctx, camp.OrganizerID)
	if err != nil {
		return nil, err
	}
	if !organizer.IsVerifiedVolunteer() {
		return nil, model.NewError(model.KindNotAuthorized, "camp organizer is not verified")
	}
	return camp, nil
}

func (l *AttendanceLedger) accumulate(ctx context.Context, camp *db.Camp, stats *AttendanceStats) error {
	records, err := l.store.ListAttendanceByCamp(ctx, camp.ID)
	if err != nil {
		return fmt.Errorf("failed to list attendance: %w", err)
	}
	regs, err := l.store.ListRegistrationsByCamp(ctx, camp.ID)
	if err != nil {
		return fmt.Errorf("failed to list registrations: %w", err)
	}
	stats.TotalAttendees += len(records)
	for _, a := range records {
		if a.BloodDonated {
			stats.BloodDonations++
		}
	}
	stats.MaxCapacity += camp.MaxDonors
	stats.RegisteredDonors += len(activeOnly(regs))
	return nil
}
