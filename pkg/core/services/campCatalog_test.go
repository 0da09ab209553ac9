package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/blood-camps/internal/config"
	"github.com/jakechorley/blood-camps/pkg/core/model"
)

func validDefinition() CampDefinition {
	return CampDefinition{
		Name:      "Autumn drive",
		Location:  "Community Centre",
		Date:      day(2026, 10, 25),
		StartTime: "09:00",
		EndTime:   "14:00",
		MaxDonors: 20,
	}
}

func TestCreateCamp_Success(t *testing.T) {
	env := newTestEnv(t)

	camp, err := env.catalog.CreateCamp(context.Background(), validDefinition(), &env.organizer)
	require.NoError(t, err)

	assert.NotEmpty(t, camp.ID)
	assert.Equal(t, 0, camp.CurrentDonors)
	assert.True(t, camp.Active)
	assert.Equal(t, env.organizer.ID, camp.OrganizerID)

	stored, err := env.store.GetCamp(context.Background(), camp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Autumn drive", stored.Name)
}

func TestCreateCamp_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		modify func(*CampDefinition)
		kind   model.ErrorKind
	}{
		{"past date", func(d *CampDefinition) { d.Date = day(2026, 10, 17) }, model.KindInvalidSchedule},
		{"start after end", func(d *CampDefinition) { d.StartTime, d.EndTime = "15:00", "09:00" }, model.KindInvalidSchedule},
		{"missing name", func(d *CampDefinition) { d.Name = "" }, model.KindInvalidDefinition},
		{"zero capacity", func(d *CampDefinition) { d.MaxDonors = 0 }, model.KindInvalidDefinition},
		{"bad time format", func(d *CampDefinition) { d.StartTime = "9am" }, model.KindInvalidDefinition},
		{"single-digit end before start", func(d *CampDefinition) { d.StartTime, d.EndTime = "10:00", "9:30" }, model.KindInvalidSchedule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.modify(&def)

			_, err := env.catalog.CreateCamp(context.Background(), def, &env.organizer)
			require.Error(t, err)
			kind, ok := model.KindOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestCreateCamp_NormalizesTimes(t *testing.T) {
	env := newTestEnv(t)
	def := validDefinition()
	def.StartTime, def.EndTime = "9:00", "17:00"

	camp, err := env.catalog.CreateCamp(context.Background(), def, &env.organizer)
	require.NoError(t, err)
	assert.Equal(t, "09:00", camp.StartTime)
	assert.Equal(t, "17:00", camp.EndTime)

	stored, err := env.store.GetCamp(context.Background(), camp.ID)
	require.NoError(t, err)
	assert.Equal(t, "09:00", stored.StartTime)
}

func TestCreateCamp_TodayAllowed(t *testing.T) {
	env := newTestEnv(t)
	def := validDefinition()
	def.Date = testNow

	_, err := env.catalog.CreateCamp(context.Background(), def, &env.organizer)
	assert.NoError(t, err)
}

func TestCreateCamp_RequiresVerifiedVolunteer(t *testing.T) {
	env := newTestEnv(t)
	unverified := verifiedVolunteer("vol-2", "Uma", "Unverified")
	unverified.VolunteerVerification = nil
	donor := verifiedDonor("donor-1", "Dana", "Donor")

	for _, u := range []*model.User{&unverified, &donor, nil} {
		_, err := env.catalog.CreateCamp(context.Background(), validDefinition(), u)
		assert.True(t, errors.Is(err, model.ErrNotAuthorized))
	}
}

func TestCreateCamp_Blackout(t *testing.T) {
	env := newTestEnv(t)
	blackouts, err := CompileBlackouts([]config.ScheduleBlackout{
		{RRule: "FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=25", Reason: "Christmas Day"},
		{RRule: "FREQ=WEEKLY;BYDAY=MO", Reason: "centre closed on Mondays"},
	})
	require.NoError(t, err)
	env.catalog.blackouts = blackouts

	def := validDefinition()
	def.Date = day(2026, 12, 25)
	_, err = env.catalog.CreateCamp(context.Background(), def, &env.organizer)
	require.True(t, errors.Is(err, model.ErrInvalidSchedule))
	assert.Contains(t, err.Error(), "Christmas Day")

	def.Date = day(2026, 10, 26) // Monday
	_, err = env.catalog.CreateCamp(context.Background(), def, &env.organizer)
	require.True(t, errors.Is(err, model.ErrInvalidSchedule))
	assert.Contains(t, err.Error(), "Mondays")

	def.Date = day(2026, 10, 25) // Sunday
	_, err = env.catalog.CreateCamp(context.Background(), def, &env.organizer)
	assert.NoError(t, err)
}

func TestUpdateCamp(t *testing.T) {
	env := newTestEnv(t)
	camp := env.createCamp(t, "Drive", day(2026, 10, 25), 2)

	t.Run("not owner", func(t *testing.T) {
		other := env.addUser(verifiedVolunteer("vol-2", "Vic", "Other"))
		_, err := env.catalog.UpdateCamp(context.Background(), camp.ID, validDefinition(), other)
		assert.True(t, errors.Is(err, model.ErrNotOwner))
	})

	t.Run("unknown camp", func(t *testing.T) {
		_, err := env.catalog.UpdateCamp(context.Background(), "missing", validDefinition(), &env.organizer)
		assert.True(t, errors.Is(err, model.ErrCampNotFound))
	})

	t.Run("owner updates", func(t *testing.T) {
		def := validDefinition()
		def.Name = "Renamed drive"
		updated, err := env.catalog.UpdateCamp(context.Background(), camp.ID, def, &env.organizer)
		require.NoError(t, err)
		assert.Equal(t, "Renamed drive", updated.Name)
		assert.Equal(t, 20, updated.MaxDonors)
	})

	t.Run("capacity below occupied", func(t *testing.T) {
		for _, id := range []string{"d1", "d2"} {
			donor := env.addUser(verifiedDonor(id, id, "Donor"))
			_, err := env.registrations.Register(context.Background(), camp.ID, donor)
			require.NoError(t, err)
		}
		def := validDefinition()
		def.MaxDonors = 1
		_, err := env.catalog.UpdateCamp(context.Background(), camp.ID, def, &env.organizer)
		assert.True(t, errors.Is(err, model.ErrInvalidDefinition))
	})
}

func TestDeactivateCamp(t *testing.T) {
	env := newTestEnv(t)
	camp := env.createCamp(t, "Drive", day(2026, 10, 25), 5)

	other := env.addUser(verifiedVolunteer("vol-2", "Vic", "Other"))
	err := env.catalog.DeactivateCamp(context.Background(), camp.ID, other)
	assert.True(t, errors.Is(err, model.ErrNotOwner))

	require.NoError(t, env.catalog.DeactivateCamp(context.Background(), camp.ID, &env.organizer))

	active, err := env.catalog.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)

	mine, err := env.catalog.ListByOrganizer(context.Background(), env.organizer.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestCampQueries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	past := env.insertPastCamp(t, "past", day(2026, 10, 1), 5)
	today := env.createCamp(t, "Today drive", testNow, 5)
	later := env.createCamp(t, "Winter drive", day(2026, 12, 1), 5)
	soon := env.createCamp(t, "Next week", day(2026, 10, 25), 5)

	active, err := env.catalog.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 4)
	assert.Equal(t, later.ID, active[0].ID)
	assert.Equal(t, past.ID, active[3].ID)

	upcoming, err := env.catalog.ListUpcoming(ctx)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, soon.ID, upcoming[0].ID)
	assert.Equal(t, later.ID, upcoming[1].ID)

	todays, err := env.catalog.ListToday(ctx)
	require.NoError(t, err)
	require.Len(t, todays, 1)
	assert.Equal(t, today.ID, todays[0].ID)

	eligible, err := env.catalog.ListAttendanceEligible(ctx)
	require.NoError(t, err)
	require.Len(t, eligible, 3)
	assert.Equal(t, today.ID, eligible[0].ID)
	assert.Equal(t, soon.ID, eligible[1].ID)

	ok, err := env.catalog.IsEligibleForAttendanceManagement(ctx, past.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = env.catalog.IsEligibleForAttendanceManagement(ctx, today.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	canEdit, err := env.catalog.CanEdit(ctx, today.ID, &env.organizer)
	require.NoError(t, err)
	assert.True(t, canEdit)
	canEdit, err = env.catalog.CanEdit(ctx, today.ID, env.addUser(verifiedVolunteer("vol-2", "V", "Two")))
	require.NoError(t, err)
	assert.False(t, canEdit)
}

func TestSearchCamps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createCamp(t, "Riverside drive", day(2026, 10, 25), 5)
	env.createCamp(t, "Hospital appeal", day(2026, 10, 26), 5)

	results, err := env.catalog.Search(ctx, "RIVER")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Riverside drive", results[0].Name)

	results, err = env.catalog.Search(ctx, "olivia")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = env.catalog.Search(ctx, "town hall")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = env.catalog.Search(ctx, "   ")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = env.catalog.Search(ctx, "nowhere")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestListAvailableForDonor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	camp := env.createCamp(t, "Drive", day(2026, 10, 25), 3)
	env.createCamp(t, "Other drive", day(2026, 10, 26), 3)
	donor := env.addUser(verifiedDonor("donor-1", "Dana", "Donor"))

	_, err := env.registrations.Register(ctx, camp.ID, donor)
	require.NoError(t, err)

	listings, err := env.catalog.ListAvailableForDonor(ctx, donor)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.True(t, listings[0].Registered)
	assert.Equal(t, 2, listings[0].AvailableSlots)
	assert.False(t, listings[1].Registered)

	unverified := verifiedDonor("donor-2", "Ned", "New")
	unverified.Verification = nil
	_, err = env.catalog.ListAvailableForDonor(ctx, &unverified)
	assert.True(t, errors.Is(err, model.ErrNotEligibleDonor))
}

func TestCapacitySnapshot(t *testing.T) {
	env := newTestEnv(t)
	camp := env.createCamp(t, "Drive", day(2026, 10, 25), 3)
	donor := env.addUser(verifiedDonor("donor-1", "Dana", "Donor"))
	_, err := env.registrations.Register(context.Background(), camp.ID, donor)
	require.NoError(t, err)

	snap, err := env.catalog.CapacitySnapshot(context.Background(), camp.ID)
	require.NoError(t, err)
	assert.Equal(t, CapacitySnapshot{MaxDonors: 3, CurrentDonors: 1, AvailableSlots: 2}, *snap)

	_, err = env.catalog.CapacitySnapshot(context.Background(), "missing")
	assert.True(t, errors.Is(err, model.ErrCampNotFound))
}
