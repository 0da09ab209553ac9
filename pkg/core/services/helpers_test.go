package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/internal/config"
	"github.com/jakechorley/blood-camps/pkg/core/model"
	"github.com/jakechorley/blood-camps/pkg/db"
)

// Sunday, Oct 18, 2026 at 10:00
var testNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

var testStatsConfig = config.StatisticsConfig{
	AttendanceWeight:     0.6,
	UtilizationWeight:    0.4,
	UrgentAttendanceRate: 50,
	LowAttendanceRate:    40,
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func verifiedDonor(id, first, last string) model.User {
	return model.User{
		ID:           id,
		FirstName:    first,
		LastName:     last,
		Email:        id + "@example.com",
		Role:         model.RoleDonor,
		Verification: &model.VerificationRecord{By: "admin", At: testNow.AddDate(0, -1, 0)},
	}
}

func verifiedVolunteer(id, first, last string) model.User {
	return model.User{
		ID:                    id,
		FirstName:             first,
		LastName:              last,
		Email:                 id + "@example.com",
		Role:                  model.RoleVolunteer,
		Verification:          &model.VerificationRecord{By: "admin", At: testNow.AddDate(0, -1, 0)},
		VolunteerVerification: &model.VerificationRecord{By: "admin", At: testNow.AddDate(0, -1, 0)},
	}
}

// recordingNotifier captures published events
type recordingNotifier struct {
	mu     sync.Mutex
	events []model.Event
}

func (n *recordingNotifier) Notify(e model.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) ofType(t model.EventType) []model.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []model.Event
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// testEnv wires every component over one in-memory store with a fixed clock
type testEnv struct {
	store         *db.MemDB
	notifier      *recordingNotifier
	eligibility   *EligibilityEngine
	catalog       *CampCatalog
	registrations *RegistrationLedger
	recorder      *DonationRecorder
	attendance    *AttendanceLedger
	stats         *StatisticsViews
	donations     *DonationLedger

	organizer model.User
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithDonations(t, nil)
}

// newTestEnvWithDonations lets a test swap the donation writer used by the recorder
func newTestEnvWithDonations(t *testing.T, writer DonationWriter) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	store := db.NewMemDB()
	notifier := &recordingNotifier{}
	if writer == nil {
		writer = store
	}

	env := &testEnv{
		store:         store,
		notifier:      notifier,
		eligibility:   NewEligibilityEngine(store, DefaultCooldownMonths, logger),
		catalog:       NewCampCatalog(store, nil, logger),
		recorder:      NewDonationRecorder(writer, notifier, 3, logger),
		stats:         NewStatisticsViews(store, testStatsConfig, logger),
		organizer:     verifiedVolunteer("org-1", "Olivia", "Organizer"),
	}
	env.registrations = NewRegistrationLedger(store, env.eligibility, notifier, logger)
	env.attendance = NewAttendanceLedger(store, env.recorder, notifier, logger)
	env.donations = NewDonationLedger(store, env.eligibility, logger)

	clock := fixedClock(testNow)
	env.eligibility.now = clock
	env.catalog.now = clock
	env.registrations.now = clock
	env.recorder.now = clock
	env.attendance.now = clock
	env.stats.now = clock
	env.donations.now = clock

	store.PutUser(env.organizer)
	return env
}

func (e *testEnv) addUser(u model.User) *model.User {
	e.store.PutUser(u)
	return &u
}

func (e *testEnv) createCamp(t *testing.T, name string, date time.Time, maxDonors int) *db.Camp {
	t.Helper()
	camp, err := e.catalog.CreateCamp(context.Background(), CampDefinition{
		Name:      name,
		Location:  "Town Hall",
		Date:      date,
		StartTime: "09:00",
		EndTime:   "15:00",
		MaxDonors: maxDonors,
	}, &e.organizer)
	require.NoError(t, err)
	return camp
}

// insertPastCamp stores a camp directly, bypassing the no-past-dates rule
func (e *testEnv) insertPastCamp(t *testing.T, id string, date time.Time, maxDonors int) *db.Camp {
	t.Helper()
	camp := &db.Camp{
		ID:          id,
		Name:        "Past camp " + id,
		Location:    "Library",
		Date:        date,
		StartTime:   "09:00",
		EndTime:     "15:00",
		MaxDonors:   maxDonors,
		OrganizerID: e.organizer.ID,
		Active:      true,
	}
	require.NoError(t, e.store.InsertCamp(context.Background(), camp))
	return camp
}

func (e *testEnv) addDonation(t *testing.T, donorID string, date time.Time) {
	t.Helper()
	_, err := e.store.InsertDonation(context.Background(), &db.Donation{
		ID:             donorID + "-" + date.Format(dateLayout),
		DonorID:        donorID,
		DonationDate:   date,
		IsCampDonation: true,
	})
	require.NoError(t, err)
}

func (e *testEnv) addRegularDonation(t *testing.T, donorID string, date time.Time) {
	t.Helper()
	_, err := e.store.InsertDonation(context.Background(), &db.Donation{
		ID:           donorID + "-regular-" + date.Format(dateLayout),
		DonorID:      donorID,
		DonationDate: date,
	})
	require.NoError(t, err)
}
