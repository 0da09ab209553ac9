package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/blood-camps/pkg/core/model"
	"github.com/jakechorley/blood-camps/pkg/db"
)

type statsFixture struct {
	morning  *db.Camp // today 09:00, 4 of 10 registered, 1 attended and donated
	starting *db.Camp // today 10:30, nobody registered
	upcoming *db.Camp // next week, 2 of 10 registered
	past     *db.Camp
}

func newStatsFixture(t *testing.T, env *testEnv) *statsFixture {
	t.Helper()
	ctx := context.Background()
	f := &statsFixture{
		morning:  env.createCamp(t, "Morning drive", testNow, 10),
		upcoming: env.createCamp(t, "Next week", day(2026, 10, 25), 10),
		past:     env.insertPastCamp(t, "past", day(2026, 10, 1), 5),
	}
	f.starting = &db.Camp{
		ID: "starting", Name: "Late start", Location: "School", Date: day(2026, 10, 18),
		StartTime: "10:30", EndTime: "16:00", MaxDonors: 5, OrganizerID: env.organizer.ID, Active: true,
	}
	require.NoError(t, env.store.InsertCamp(ctx, f.starting))

	for i := 0; i < 4; i++ {
		d := env.addUser(verifiedDonor(fmt.Sprintf("m-%d", i), "Morning", fmt.Sprint(i)))
		_, err := env.registrations.Register(ctx, f.morning.ID, d)
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		d := env.addUser(verifiedDonor(fmt.Sprintf("u-%d", i), "Upcoming", fmt.Sprint(i)))
		_, err := env.registrations.Register(ctx, f.upcoming.ID, d)
		require.NoError(t, err)
	}

	_, err := env.attendance.RecordAttendance(ctx, f.morning.ID, "m-0", &env.organizer)
	require.NoError(t, err)
	_, err = env.attendance.MarkBloodDonation(ctx, f.morning.ID, "m-0", &env.organizer, "")
	require.NoError(t, err)

	// Excluded from dashboards: inactive, and organised by an unverified volunteer
	inactive := env.createCamp(t, "Cancelled drive", day(2026, 10, 30), 20)
	require.NoError(t, env.catalog.DeactivateCamp(ctx, inactive.ID, &env.organizer))
	unverified := verifiedVolunteer("org-2", "Una", "Unverified")
	unverified.VolunteerVerification = nil
	env.addUser(unverified)
	require.NoError(t, env.store.InsertCamp(ctx, &db.Camp{
		ID: "unverified", Name: "Rogue drive", Location: "Car park", Date: day(2026, 10, 18),
		StartTime: "09:00", EndTime: "12:00", MaxDonors: 50, OrganizerID: "org-2", Active: true,
	}))
	return f
}

func TestCampPerformance(t *testing.T) {
	env := newTestEnv(t)
	f := newStatsFixture(t, env)
	ctx := context.Background()

	p, err := env.stats.CampPerformance(ctx, f.morning.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, p.RegisteredCount)
	assert.Equal(t, 1, p.AttendeeCount)
	assert.Equal(t, 1, p.DonationCount)
	assert.Equal(t, 25.0, p.AttendanceRate)
	assert.Equal(t, 40.0, p.CapacityUtilization)
	assert.Equal(t, 6, p.AvailableSlots)
	assert.Equal(t, 31, p.Score)
	assert.Equal(t, CampToday, p.Status)
	assert.Equal(t, UrgencyHigh, p.Urgency)

	p, err = env.stats.CampPerformance(ctx, f.upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, CampUpcoming, p.Status)
	assert.Equal(t, UrgencyLow, p.Urgency)
	assert.Equal(t, 8, p.Score)

	p, err = env.stats.CampPerformance(ctx, f.past.ID)
	require.NoError(t, err)
	assert.Equal(t, CampCompleted, p.Status)
	assert.Equal(t, UrgencyLow, p.Urgency)

	_, err = env.stats.CampPerformance(ctx, "missing")
	assert.True(t, errors.Is(err, model.ErrCampNotFound))
}

func TestSummary(t *testing.T) {
	env := newTestEnv(t)
	newStatsFixture(t, env)

	summary, err := env.stats.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{
		TotalCamps:       4,
		TodaysCamps:      2,
		UpcomingCamps:    1,
		TotalCapacity:    30,
		TotalRegistered:  6,
		AvailableSlots:   24,
		RegistrationRate: 20,
		TotalAttendees:   1,
		TotalDonations:   1,
		DonationRate:     100,
	}, *summary)
}

func TestSummary_Empty(t *testing.T) {
	env := newTestEnv(t)

	summary, err := env.stats.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, *summary)
}

func TestUrgentCamps(t *testing.T) {
	env := newTestEnv(t)
	f := newStatsFixture(t, env)

	urgent, err := env.stats.UrgentCamps(context.Background())
	require.NoError(t, err)
	require.Len(t, urgent, 1)
	assert.Equal(t, f.morning.ID, urgent[0].Camp.ID)
}

func TestCampsNeedingAttention(t *testing.T) {
	env := newTestEnv(t)
	f := newStatsFixture(t, env)

	items, err := env.stats.CampsNeedingAttention(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, f.morning.ID, items[0].Performance.Camp.ID)
	assert.Equal(t, ReasonLowAttendance, items[0].Reason)
	assert.Equal(t, UrgencyHigh, items[0].Priority)

	assert.Equal(t, f.starting.ID, items[1].Performance.Camp.ID)
	assert.Equal(t, ReasonStartingSoon, items[1].Reason)
	assert.Equal(t, UrgencyMedium, items[1].Priority)
}

func TestCampsNeedingAttention_HealthyAttendance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	camp := env.createCamp(t, "Good turnout", testNow, 4)
	for i := 0; i < 2; i++ {
		d := env.addUser(verifiedDonor(fmt.Sprintf("d-%d", i), "Donor", fmt.Sprint(i)))
		_, err := env.registrations.Register(ctx, camp.ID, d)
		require.NoError(t, err)
		_, err = env.attendance.RecordAttendance(ctx, camp.ID, d.ID, &env.organizer)
		require.NoError(t, err)
	}

	items, err := env.stats.CampsNeedingAttention(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	urgent, err := env.stats.UrgentCamps(ctx)
	require.NoError(t, err)
	assert.Empty(t, urgent)
}

func TestOrganizerSummary(t *testing.T) {
	env := newTestEnv(t)
	f := newStatsFixture(t, env)

	summary, err := env.stats.OrganizerSummary(context.Background(), env.organizer.ID)
	require.NoError(t, err)
	require.Len(t, summary.Camps, 5)
	assert.Equal(t, 6, summary.TotalRegistered)
	assert.Equal(t, 1, summary.TotalAttendees)
	assert.Equal(t, 1, summary.TotalDonations)
	assert.Equal(t, (31+8)/5, summary.AverageScore)
	assert.Equal(t, f.past.ID, summary.Camps[4].Camp.ID)

	none, err := env.stats.OrganizerSummary(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, none.Camps)
	assert.Zero(t, none.AverageScore)
}

func TestPerformanceScore(t *testing.T) {
	assert.Equal(t, 0, performanceScore(0, 0, testStatsConfig))
	assert.Equal(t, 70, performanceScore(50, 100, testStatsConfig))
	assert.Equal(t, 100, performanceScore(150, 100, testStatsConfig))
}
