package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/pkg/core/model"
	"github.com/jakechorley/blood-camps/pkg/db"
)

// newTestDB connects to BLOODCAMP_TEST_DATABASE_URL and empties every table.
// Tests are skipped when the variable is unset.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("BLOODCAMP_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BLOODCAMP_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	d, err := NewDB(ctx, url, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(d.Close)

	require.NoError(t, d.RunMigrations(ctx))
	// Running twice is a no-op
	require.NoError(t, d.RunMigrations(ctx))

	_, err = d.pool.Exec(ctx, `TRUNCATE donations, attendance, registrations, camps, users`)
	require.NoError(t, err)
	return d
}

func testCamp(id string, maxDonors int) *db.Camp {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &db.Camp{
		ID:          id,
		Name:        "Camp " + id,
		Location:    "Town Hall",
		Date:        time.Date(2030, 1, 15, 0, 0, 0, 0, time.UTC),
		StartTime:   "09:00",
		EndTime:     "15:00",
		MaxDonors:   maxDonors,
		OrganizerID: "org-1",
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func register(t *testing.T, d *DB, campID, donorID string) error {
	t.Helper()
	return d.ReserveAndRegister(context.Background(), &db.Registration{
		ID:           campID + "-" + donorID + "-" + fmt.Sprint(time.Now().UnixNano()),
		CampID:       campID,
		DonorID:      donorID,
		RegisteredAt: time.Now(),
	})
}

func TestCampRoundTrip(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	camp := testCamp("c1", 10)
	require.NoError(t, d.InsertCamp(ctx, camp))

	got, err := d.GetCamp(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, camp.Date, got.Date)
	assert.Equal(t, "09:00", got.StartTime)
	assert.True(t, got.Active)

	_, err = d.GetCamp(ctx, "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)

	require.NoError(t, d.SetCampActive(ctx, "c1", false))
	got, err = d.GetCamp(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.ErrorIs(t, d.SetCampActive(ctx, "missing", false), db.ErrNotFound)
}

func TestReserveAndRegister_ConcurrentCapacity(t *testing.T) {
	d := newTestDB(t)
	require.NoError(t, d.InsertCamp(context.Background(), testCamp("busy", 3)))

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- register(t, d, "busy", fmt.Sprintf("donor-%d", i))
		}(i)
	}
	wg.Wait()
	close(results)

	ok, full := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, db.ErrCampFull):
			full++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, 17, full)

	camp, err := d.GetCamp(context.Background(), "busy")
	require.NoError(t, err)
	assert.Equal(t, 3, camp.CurrentDonors)
}

func TestRegistrationLifecycle(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, d.InsertCamp(ctx, testCamp("c1", 2)))

	require.NoError(t, register(t, d, "c1", "donor-1"))
	assert.ErrorIs(t, register(t, d, "c1", "donor-1"), db.ErrAlreadyRegistered)
	assert.ErrorIs(t, register(t, d, "missing", "donor-1"), db.ErrNotFound)

	reg, err := d.CancelRegistration(ctx, "c1", "donor-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, db.StatusCancelled, reg.Status)
	require.NotNil(t, reg.CancelledAt)

	_, err = d.CancelRegistration(ctx, "c1", "donor-1", time.Now())
	assert.ErrorIs(t, err, db.ErrNotRegistered)

	require.NoError(t, register(t, d, "c1", "donor-1"))
	regs, err := d.ListRegistrationsByCamp(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, regs, 2)

	n, err := d.ReconcileCampCounter(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Capacity cannot drop below the occupied count
	camp, err := d.GetCamp(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, register(t, d, "c1", "donor-2"))
	camp.MaxDonors = 1
	assert.ErrorIs(t, d.UpdateCamp(ctx, camp), db.ErrCapacityBelowOccupied)

	require.NoError(t, d.SetCampActive(ctx, "c1", false))
	assert.ErrorIs(t, register(t, d, "c1", "donor-3"), db.ErrCampNotAcceptingDonors)
}

func TestAttendanceAndDonations(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, d.InsertCamp(ctx, testCamp("c1", 5)))
	require.NoError(t, register(t, d, "c1", "donor-1"))

	att := &db.Attendance{ID: "att-1", CampID: "c1", DonorID: "donor-1", RecordedBy: "vol-1", AttendedAt: time.Now()}
	require.NoError(t, d.InsertAttendance(ctx, att))
	assert.ErrorIs(t, d.InsertAttendance(ctx, &db.Attendance{
		ID: "att-2", CampID: "c1", DonorID: "donor-1", RecordedBy: "vol-1", AttendedAt: time.Now(),
	}), db.ErrDuplicateAttendance)
	assert.ErrorIs(t, d.InsertAttendance(ctx, &db.Attendance{
		ID: "att-3", CampID: "c1", DonorID: "stranger", RecordedBy: "vol-1", AttendedAt: time.Now(),
	}), db.ErrNotRegistered)

	marked, already, err := d.MarkBloodDonated(ctx, "c1", "donor-1", "450ml")
	require.NoError(t, err)
	assert.False(t, already)
	assert.True(t, marked.BloodDonated)

	_, already, err = d.MarkBloodDonated(ctx, "c1", "donor-1", "again")
	require.NoError(t, err)
	assert.True(t, already)

	donation := &db.Donation{
		ID: "att-1", DonorID: "donor-1", DonationDate: time.Date(2030, 1, 15, 0, 0, 0, 0, time.UTC),
		IsCampDonation: true, CampID: "c1", RecordedBy: "vol-1", CreatedAt: time.Now(),
	}
	created, err := d.InsertDonation(ctx, donation)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = d.InsertDonation(ctx, donation)
	require.NoError(t, err)
	assert.False(t, created)

	last, err := d.LastCampDonation(ctx, "donor-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, donation.DonationDate, last.DonationDate)
	assert.Equal(t, "c1", last.CampID)

	none, err := d.LastCampDonation(ctx, "donor-2")
	require.NoError(t, err)
	assert.Nil(t, none)

	n, err := d.CountCampDonationsSince(ctx, "donor-1", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A newer ad-hoc donation is listed but never counts as the last camp donation
	regular := &db.Donation{
		ID: "regular-1", DonorID: "donor-1", DonationDate: time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt: time.Now(),
	}
	created, err = d.InsertDonation(ctx, regular)
	require.NoError(t, err)
	assert.True(t, created)

	last, err = d.LastCampDonation(ctx, "donor-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "att-1", last.ID)

	n, err = d.CountCampDonationsSince(ctx, "donor-1", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	history, err := d.ListDonationsByDonor(ctx, "donor-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "regular-1", history[0].ID)
	assert.False(t, history[0].IsCampDonation)
	assert.Empty(t, history[0].CampID)
	assert.Equal(t, "c1", history[1].CampID)
}

func TestUsers(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, d.UpsertUsers(ctx, []model.User{
		{ID: "u1", FirstName: "Dana", LastName: "Donor", Role: model.RoleDonor,
			Verification: &model.VerificationRecord{By: "admin", At: at}},
		{ID: "u2", FirstName: "Val", Role: model.RoleVolunteer},
	}))

	u, err := d.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.IsVerifiedDonor())
	assert.Equal(t, at, u.Verification.At.UTC())

	u, err = d.GetUser(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, u.VolunteerVerification)

	_, err = d.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}
