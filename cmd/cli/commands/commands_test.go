package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/internal/config"
	"github.com/jakechorley/blood-camps/pkg/core/model"
	"github.com/jakechorley/blood-camps/pkg/db"
)

func newTestApp(t *testing.T) (*AppContext, *db.MemDB) {
	t.Helper()
	cfg := &config.Config{DatabaseURL: "memory"}
	config.ApplyDefaults(cfg)

	app := &AppContext{
		Env:    "test",
		Cfg:    cfg,
		Logger: zap.NewNop(),
		Ctx:    context.Background(),
	}
	store := db.NewMemDB()
	require.NoError(t, app.Wire(store, nil))

	verified := &model.VerificationRecord{By: "admin", At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store.PutUser(model.User{ID: "org-1", FirstName: "Olivia", LastName: "Organizer", Role: model.RoleVolunteer,
		Verification: verified, VolunteerVerification: verified})
	store.PutUser(model.User{ID: "donor-1", FirstName: "Dana", LastName: "Donor", Email: "dana@example.com",
		Role: model.RoleDonor, Verification: verified})
	store.PutUser(model.User{ID: "donor-2", FirstName: "Eli", LastName: "Evans", Role: model.RoleDonor})
	return app, store
}

// run executes cmd as actor and returns its output
func run(t *testing.T, app *AppContext, actor string, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	app.ActorID = actor
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	err := cmd.Execute()
	return out.String(), err
}

func createTestCamp(t *testing.T, app *AppContext, store *db.MemDB, date time.Time, maxDonors string) string {
	t.Helper()
	out, err := run(t, app, "org-1", CreateCampCmd(app),
		"--name", "Town Hall Drive", "--location", "Town Hall", "--date", date.Format(dateLayout),
		"--start", "00:00", "--end", "23:59", "--max", maxDonors)
	require.NoError(t, err)
	require.Contains(t, out, "Camp created")

	camps, err := store.ListCamps(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, camps)
	return camps[len(camps)-1].ID
}

func TestCampCommands(t *testing.T) {
	app, store := newTestApp(t)
	campID := createTestCamp(t, app, store, time.Now().AddDate(0, 0, 7), "2")

	out, err := run(t, app, "", ListCampsCmd(app), "--upcoming")
	require.NoError(t, err)
	assert.Contains(t, out, "Town Hall Drive")
	assert.Contains(t, out, "2/2")

	out, err = run(t, app, "", ListCampsCmd(app), "--search", "olivia")
	require.NoError(t, err)
	assert.Contains(t, out, campID)

	out, err = run(t, app, "org-1", ShowCampCmd(app), campID)
	require.NoError(t, err)
	assert.Contains(t, out, "Attendance:  open")
	assert.Contains(t, out, "You organise this camp.")
	assert.NotContains(t, out, "You are registered")

	out, err = run(t, app, "org-1", UpdateCampCmd(app), campID, "--max", "5", "--description", "Bring ID")
	require.NoError(t, err)
	assert.Contains(t, out, "Donors:      0/5 (5 available)")
	assert.Contains(t, out, "Description: Bring ID")
	assert.Contains(t, out, "Town Hall Drive")

	_, err = run(t, app, "donor-1", UpdateCampCmd(app), campID, "--max", "1")
	assert.ErrorIs(t, err, model.ErrNotOwner)

	out, err = run(t, app, "org-1", DeactivateCampCmd(app), campID)
	require.NoError(t, err)
	assert.Contains(t, out, "deactivated")

	out, err = run(t, app, "", ListCampsCmd(app))
	require.NoError(t, err)
	assert.Contains(t, out, "No camps found.")
}

func TestCreateCamp_Errors(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := run(t, app, "", CreateCampCmd(app), "--name", "No actor")
	assert.ErrorContains(t, err, "needs --as")

	_, err = run(t, app, "ghost", CreateCampCmd(app), "--name", "Unknown actor")
	assert.ErrorContains(t, err, `unknown user "ghost"`)

	_, err = run(t, app, "org-1", CreateCampCmd(app), "--name", "Bad date", "--date", "25/10/2026")
	assert.ErrorContains(t, err, "date must be YYYY-MM-DD")

	_, err = run(t, app, "donor-1", CreateCampCmd(app),
		"--name", "Donor camp", "--location", "Home", "--date", time.Now().AddDate(0, 0, 3).Format(dateLayout),
		"--start", "09:00", "--end", "10:00", "--max", "3")
	assert.ErrorIs(t, err, model.ErrNotAuthorized)
}

func TestRegistrationCommands(t *testing.T) {
	app, store := newTestApp(t)
	campID := createTestCamp(t, app, store, time.Now().AddDate(0, 0, 7), "1")

	out, err := run(t, app, "donor-1", PreviewCmd(app), campID)
	require.NoError(t, err)
	assert.Contains(t, out, "You can register")

	out, err = run(t, app, "donor-1", RegisterCmd(app), campID)
	require.NoError(t, err)
	assert.Contains(t, out, "Registered for camp "+campID)
	assert.Contains(t, out, "0 of 1 places left")

	out, err = run(t, app, "donor-1", ShowCampCmd(app), campID)
	require.NoError(t, err)
	assert.Contains(t, out, "You are registered for this camp.")

	_, err = run(t, app, "donor-1", RegisterCmd(app), campID)
	assert.ErrorIs(t, err, model.ErrAlreadyRegistered)

	_, err = run(t, app, "donor-2", RegisterCmd(app), campID)
	assert.ErrorIs(t, err, model.ErrNotEligibleDonor)

	out, err = run(t, app, "donor-1", ListCampsCmd(app), "--eligible")
	require.NoError(t, err)
	assert.Contains(t, out, "registered")

	out, err = run(t, app, "", RegistrationsCmd(app), campID)
	require.NoError(t, err)
	assert.Contains(t, out, "1 active / 1 max (100.0%), 0 cancelled")
	assert.Contains(t, out, "donor-1")

	out, err = run(t, app, "", RegistrationsCmd(app), campID, "--search", "dana")
	require.NoError(t, err)
	assert.Contains(t, out, "Dana Donor (donor-1)")

	out, err = run(t, app, "donor-1", CancelCmd(app), campID)
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled")

	out, err = run(t, app, "donor-1", RegistrationsCmd(app))
	require.NoError(t, err)
	assert.Contains(t, out, "CANCELLED")

	_, err = run(t, app, "donor-1", CancelCmd(app), campID)
	assert.ErrorIs(t, err, model.ErrRegistrationNotFound)
}

func TestAttendanceCommands(t *testing.T) {
	app, store := newTestApp(t)
	campID := createTestCamp(t, app, store, time.Now(), "5")

	_, err := run(t, app, "donor-1", RegisterCmd(app), campID)
	require.NoError(t, err)

	out, err := run(t, app, "org-1", AttendeesCmd(app), campID, "--pending")
	require.NoError(t, err)
	assert.Contains(t, out, "1 registered donors not yet arrived")

	out, err = run(t, app, "org-1", RecordAttendanceCmd(app), campID, "donor-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Attendance recorded for donor-1")

	_, err = run(t, app, "org-1", RecordAttendanceCmd(app), campID, "donor-1")
	assert.ErrorIs(t, err, model.ErrDuplicateAttendance)

	out, err = run(t, app, "org-1", MarkDonationCmd(app), campID, "donor-1", "--notes", "450ml")
	require.NoError(t, err)
	assert.Contains(t, out, "Donation recorded for donor-1")

	out, err = run(t, app, "org-1", MarkDonationCmd(app), campID, "donor-1")
	require.NoError(t, err)
	assert.Contains(t, out, "already recorded")

	out, err = run(t, app, "org-1", AttendeesCmd(app), campID)
	require.NoError(t, err)
	assert.Contains(t, out, "Dana Donor")
	assert.Contains(t, out, "1 attended, 1 donated (100.0%)")

	out, err = run(t, app, "org-1", AttendeesCmd(app), campID, "--donor", "donor-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Donated:  true")

	_, err = run(t, app, "org-1", AttendeesCmd(app), campID, "--donor", "donor-2")
	assert.ErrorIs(t, err, model.ErrAttendanceNotFound)

	out, err = run(t, app, "org-1", AttendeesCmd(app))
	require.NoError(t, err)
	assert.Contains(t, out, "All active camps: 1 attended, 1 donated")

	out, err = run(t, app, "", CheckEligibilityCmd(app), "donor-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "✗"), out)
	assert.Contains(t, out, "Last camp donation")
	assert.Contains(t, out, "Camp donations in the last 12 months: 1")

	_, err = run(t, app, "donor-1", RecordAttendanceCmd(app), campID, "donor-1")
	assert.ErrorIs(t, err, model.ErrNotAuthorized)
}

func TestStatisticsCommands(t *testing.T) {
	app, store := newTestApp(t)
	campID := createTestCamp(t, app, store, time.Now(), "4")
	_, err := run(t, app, "donor-1", RegisterCmd(app), campID)
	require.NoError(t, err)

	out, err := run(t, app, "", SummaryCmd(app))
	require.NoError(t, err)
	assert.Contains(t, out, "Camps:        1 (1 today")
	assert.Contains(t, out, "Capacity:     4 (1 registered, 3 available")

	out, err = run(t, app, "", CampStatsCmd(app), campID)
	require.NoError(t, err)
	assert.Contains(t, out, "TODAY")
	assert.Contains(t, out, "Registered:   1/4")

	out, err = run(t, app, "org-1", CampStatsCmd(app))
	require.NoError(t, err)
	assert.Contains(t, out, "1 camps, 1 registered, 0 attended")

	out, err = run(t, app, "", UrgentCampsCmd(app))
	require.NoError(t, err)
	assert.Contains(t, out, "Town Hall Drive")

	out, err = run(t, app, "", AttentionCmd(app))
	require.NoError(t, err)
	assert.Contains(t, out, "LOW_ATTENDANCE")

	out, err = run(t, app, "", ReconcileCmd(app))
	require.NoError(t, err)
	assert.Contains(t, out, campID+": 1 registered, 0 donation records restored")
}

func TestDonationCommands(t *testing.T) {
	app, _ := newTestApp(t)
	lastWeek := time.Now().AddDate(0, 0, -7).Format(dateLayout)

	out, err := run(t, app, "donor-1", RecordDonationCmd(app), "--date", lastWeek)
	require.NoError(t, err)
	assert.Contains(t, out, "recorded for donor-1")

	out, err = run(t, app, "org-1", RecordDonationCmd(app), "donor-1")
	require.NoError(t, err)
	assert.Contains(t, out, "recorded for donor-1")

	_, err = run(t, app, "donor-1", RecordDonationCmd(app), "donor-2")
	assert.ErrorIs(t, err, model.ErrNotAuthorized)

	_, err = run(t, app, "donor-1", RecordDonationCmd(app), "--date", time.Now().AddDate(0, 0, 2).Format(dateLayout))
	assert.ErrorIs(t, err, model.ErrInvalidDefinition)

	out, err = run(t, app, "donor-1", DonationsCmd(app))
	require.NoError(t, err)
	assert.Contains(t, out, "2 donations (0 at camps, 2 elsewhere)")
	assert.Contains(t, out, "Eligible to register")
	assert.Contains(t, out, lastWeek)
	assert.Contains(t, out, "org-1")

	out, err = run(t, app, "", DonationsCmd(app), "donor-1", "--to", lastWeek)
	require.NoError(t, err)
	assert.Contains(t, out, lastWeek)
	assert.NotContains(t, out, "org-1")

	_, err = run(t, app, "", DonationsCmd(app))
	assert.ErrorContains(t, err, "give a donor ID")
}

func TestCheckEligibility_NeedsDonor(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := run(t, app, "", CheckEligibilityCmd(app))
	assert.ErrorContains(t, err, "give a donor ID")

	out, err := run(t, app, "donor-1", CheckEligibilityCmd(app))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "✓"), out)
}

func TestSheetsClient_RequiresOAuthConfig(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := run(t, app, "", PublishReportCmd(app))
	assert.ErrorContains(t, err, "no OAuth client configuration")
}
