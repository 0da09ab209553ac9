package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/internal/config"
	"github.com/jakechorley/blood-camps/pkg/core/model"
	"github.com/jakechorley/blood-camps/pkg/db"
)

// mockRosterClient implements a test double for RosterClient
type mockRosterClient struct {
	users []model.User
	err   error
	sheet string
	tab   string
}

func (m *mockRosterClient) ListUsers(sheetID, tab string) ([]model.User, error) {
	m.sheet, m.tab = sheetID, tab
	if m.err != nil {
		return nil, m.err
	}
	return m.users, nil
}

// failingUserSync implements db.UserSync and always fails
type failingUserSync struct{}

func (failingUserSync) UpsertUsers(ctx context.Context, users []model.User) error {
	return errors.New("write failed")
}

func TestSyncUsers_Success(t *testing.T) {
	store := db.NewMemDB()
	roster := &mockRosterClient{
		users: []model.User{
			verifiedDonor("donor-1", "Dana", "Donor"),
			verifiedVolunteer("vol-1", "Val", "Volunteer"),
			{ID: "", FirstName: "No", LastName: "Id", Role: model.RoleDonor},
			{ID: "x-1", FirstName: "Bad", LastName: "Role", Role: "ASTRONAUT"},
			verifiedDonor("donor-1", "Dup", "Licate"),
		},
	}
	cfg := &config.Config{RosterSheetID: "roster-sheet", RosterTab: "Users"}

	result, err := SyncUsers(context.Background(), roster, store, cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "roster-sheet", roster.sheet)
	assert.Equal(t, "Users", roster.tab)
	assert.Equal(t, 2, result.Synced)
	require.Len(t, result.Skipped, 3)
	assert.Equal(t, "row 4: missing ID", result.Skipped[0])
	assert.Contains(t, result.Skipped[1], "unknown role")
	assert.Equal(t, "donor-1: duplicate ID", result.Skipped[2])

	u, err := store.GetUser(context.Background(), "donor-1")
	require.NoError(t, err)
	assert.Equal(t, "Dana", u.FirstName)
	assert.True(t, u.IsVerifiedDonor())

	_, err = store.GetUser(context.Background(), "x-1")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestSyncUsers_Errors(t *testing.T) {
	cfg := &config.Config{RosterSheetID: "roster-sheet", RosterTab: "Users"}

	t.Run("not configured", func(t *testing.T) {
		_, err := SyncUsers(context.Background(), &mockRosterClient{}, db.NewMemDB(), &config.Config{}, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not configured")
	})

	t.Run("roster fetch fails", func(t *testing.T) {
		roster := &mockRosterClient{err: errors.New("sheet not shared")}
		_, err := SyncUsers(context.Background(), roster, db.NewMemDB(), cfg, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to fetch roster")
	})

	t.Run("upsert fails", func(t *testing.T) {
		roster := &mockRosterClient{users: []model.User{verifiedDonor("donor-1", "Dana", "Donor")}}
		_, err := SyncUsers(context.Background(), roster, failingUserSync{}, cfg, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to upsert users")
	})
}
