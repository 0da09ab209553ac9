package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/internal/config"
	"github.com/jakechorley/blood-camps/pkg/core/model"
	"github.com/jakechorley/blood-camps/pkg/db"
)

type CampStatus string

const (
	CampCompleted CampStatus = "COMPLETED"
	CampToday     CampStatus = "TODAY"
	CampUpcoming  CampStatus = "UPCOMING"
)

type Urgency string

const (
	UrgencyHigh   Urgency = "HIGH"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyLow    Urgency = "LOW"
)

type AttentionReason string

const (
	ReasonLowAttendance AttentionReason = "LOW_ATTENDANCE"
	ReasonStartingSoon  AttentionReason = "STARTING_SOON"
)

// CampPerformance is the derived dashboard view of one camp
type CampPerformance struct {
	Camp                db.Camp
	RegisteredCount     int
	AttendeeCount       int
	DonationCount       int
	AttendanceRate      float64 // attendees / active registrations, in percent
	CapacityUtilization float64 // active registrations / max donors, in percent
	AvailableSlots      int
	Score               int // 0..100
	Status              CampStatus
	Urgency             Urgency
}

// Summary aggregates active camps run by verified organizers
type Summary struct {
	TotalCamps       int
	TodaysCamps      int
	UpcomingCamps    int
	TotalCapacity    int
	TotalRegistered  int
	AvailableSlots   int
	RegistrationRate float64
	TotalAttendees   int
	TotalDonations   int
	DonationRate     float64
}

// AttentionItem flags a camp that needs action today
type AttentionItem struct {
	Performance CampPerformance
	Reason      AttentionReason
	Priority    Urgency
}

// OrganizerSummary aggregates the camps of one organizer
type OrganizerSummary struct {
	OrganizerID     string
	Camps           []CampPerformance
	TotalRegistered int
	TotalAttendees  int
	TotalDonations  int
	AverageScore    int
}

// StatisticsStore is the read surface used by StatisticsViews
type StatisticsStore interface {
	db.UserDirectory
	GetCamp(ctx context.Context, campID string) (*db.Camp, error)
	ListCamps(ctx context.Context) ([]db.Camp, error)
	ListRegistrationsByCamp(ctx context.Context, campID string) ([]db.Registration, error)
	ListAttendanceByCamp(ctx context.Context, campID string) ([]db.Attendance, error)
}

// StatisticsViews computes read-only aggregates. Counts come from the registration
// and attendance ledgers, never from the camp's cached counter.
type StatisticsViews struct {
	store  StatisticsStore
	cfg    config.StatisticsConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewStatisticsViews(store StatisticsStore, cfg config.StatisticsConfig, logger *zap.Logger) *StatisticsViews {
	return &StatisticsViews{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// CampPerformance computes the dashboard view of one camp
func (s *StatisticsViews) CampPerformance(ctx context.Context, campID string) (*CampPerformance, error) {
	camp, err := s.store.GetCamp(ctx, campID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, model.NewError(model.KindCampNotFound, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camp: %w", err)
	}
	return s.performance(ctx, camp)
}

// Summary aggregates every active camp with a verified organizer
func (s *StatisticsViews) Summary(ctx context.Context) (*Summary, error) {
	perfs, err := s.verifiedPerformances(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{TotalCamps: len(perfs)}
	for _, p := range perfs {
		switch p.Status {
		case CampToday:
			summary.TodaysCamps++
		case CampUpcoming:
			summary.UpcomingCamps++
		}
		summary.TotalCapacity += p.Camp.MaxDonors
		summary.TotalRegistered += p.RegisteredCount
		summary.TotalAttendees += p.AttendeeCount
		summary.TotalDonations += p.DonationCount
	}
	summary.AvailableSlots = max(0, summary.TotalCapacity-summary.TotalRegistered)
	summary.RegistrationRate = percent(summary.TotalRegistered, summary.TotalCapacity)
	summary.DonationRate = percent(summary.TotalDonations, summary.TotalAttendees)

	s.logger.Debug("Computed summary", zap.Int("camps", summary.TotalCamps))
	return summary, nil
}

// UrgentCamps returns today's camps with registrations whose attendance is below the
// urgent threshold, lowest attendance first
func (s *StatisticsViews) UrgentCamps(ctx context.Context) ([]CampPerformance, error) {
	today, err := s.todaysPerformances(ctx)
	if err != nil {
		return nil, err
	}
	var urgent []CampPerformance
	for _, p := range today {
		if p.RegisteredCount > 0 && p.AttendanceRate < s.cfg.UrgentAttendanceRate {
			urgent = append(urgent, p)
		}
	}
	sort.SliceStable(urgent, func(i, j int) bool { return urgent[i].AttendanceRate < urgent[j].AttendanceRate })
	return urgent, nil
}

// CampsNeedingAttention flags today's camps with low attendance or starting within the hour
func (s *StatisticsViews) CampsNeedingAttention(ctx context.Context) ([]AttentionItem, error) {
	today, err := s.todaysPerformances(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var items []AttentionItem
	for _, p := range today {
		if p.RegisteredCount > 0 && p.AttendanceRate < s.cfg.LowAttendanceRate {
			items = append(items, AttentionItem{Performance: p, Reason: ReasonLowAttendance, Priority: UrgencyHigh})
			continue
		}
		start, err := campStart(p.Camp.Date, p.Camp.StartTime, now.Location())
		if err != nil {
			s.logger.Warn("Skipping camp with invalid start time", zap.String("camp_id", p.Camp.ID), zap.Error(err))
			continue
		}
		if now.After(start.Add(-time.Hour)) && now.Before(start) {
			items = append(items, AttentionItem{Performance: p, Reason: ReasonStartingSoon, Priority: UrgencyMedium})
		}
	}
	return items, nil
}

// OrganizerSummary aggregates every camp organised by organizerID
func (s *StatisticsViews) OrganizerSummary(ctx context.Context, organizerID string) (*OrganizerSummary, error) {
	camps, err := s.store.ListCamps(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list camps: %w", err)
	}

	summary := &OrganizerSummary{OrganizerID: organizerID}
	scoreTotal := 0
	for i := range camps {
		if camps[i].OrganizerID != organizerID {
			continue
		}
		p, err := s.performance(ctx, &camps[i])
		if err != nil {
			return nil, err
		}
		summary.Camps = append(summary.Camps, *p)
		summary.TotalRegistered += p.RegisteredCount
		summary.TotalAttendees += p.AttendeeCount
		summary.TotalDonations += p.DonationCount
		scoreTotal += p.Score
	}
	if len(summary.Camps) > 0 {
		summary.AverageScore = scoreTotal / len(summary.Camps)
	}
	sort.SliceStable(summary.Camps, func(i, j int) bool {
		return summary.Camps[i].Camp.Date.After(summary.Camps[j].Camp.Date)
	})
	return summary, nil
}

func (s *StatisticsViews) performance(ctx context.Context, camp *db.Camp) (*CampPerformance, error) {
	regs, err := s.store.ListRegistrationsByCamp(ctx, camp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	records, err := s.store.ListAttendanceByCamp(ctx, camp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}

	p := &CampPerformance{
		Camp:            *camp,
		RegisteredCount: len(activeOnly(regs)),
		AttendeeCount:   len(records),
	}
	for _, a := range records {
		if a.BloodDonated {
			p.DonationCount++
		}
	}
	p.AttendanceRate = percent(p.AttendeeCount, p.RegisteredCount)
	p.CapacityUtilization = percent(p.RegisteredCount, camp.MaxDonors)
	p.AvailableSlots = max(0, camp.MaxDonors-p.RegisteredCount)
	p.Score = performanceScore(p.AttendanceRate, p.CapacityUtilization, s.cfg)

	today := dateOf(s.now())
	switch {
	case camp.Date.Before(today):
		p.Status = CampCompleted
	case camp.Date.Equal(today):
		p.Status = CampToday
	default:
		p.Status = CampUpcoming
	}

	p.Urgency = UrgencyLow
	if p.Status == CampToday {
		switch {
		case p.AttendanceRate < 30:
			p.Urgency = UrgencyHigh
		case p.AttendanceRate < 60:
			p.Urgency = UrgencyMedium
		}
	}
	return p, nil
}

func (s *StatisticsViews) verifiedPerformances(ctx context.Context) ([]CampPerformance, error) {
	camps, err := s.store.ListCamps(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list camps: %w", err)
	}
	organizers := newOrganizerCache(s.store)

	var perfs []CampPerformance
	for i := range camps {
		if !camps[i].Active {
			continue
		}
		verified, err := organizers.isVerified(ctx, camps[i].OrganizerID)
		if err != nil {
			return nil, err
		}
		if !verified {
			continue
		}
		p, err := s.performance(ctx, &camps[i])
		if err != nil {
			return nil, err
		}
		perfs = append(perfs, *p)
	}
	return perfs, nil
}

func (s *StatisticsViews) todaysPerformances(ctx context.Context) ([]CampPerformance, error) {
	perfs, err := s.verifiedPerformances(ctx)
	if err != nil {
		return nil, err
	}
	var today []CampPerformance
	for _, p := range perfs {
		if p.Status == CampToday {
			today = append(today, p)
		}
	}
	sort.SliceStable(today, func(i, j int) bool { return clockBefore(today[i].Camp.StartTime, today[j].Camp.StartTime) })
	return today, nil
}

// performanceScore weights attendance and utilization and clamps the result to 0..100
func performanceScore(attendanceRate, utilization float64, cfg config.StatisticsConfig) int {
	score := int(attendanceRate*cfg.AttendanceWeight + utilization*cfg.UtilizationWeight)
	return min(100, max(0, score))
}
