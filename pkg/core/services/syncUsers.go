package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/internal/config"
	"github.com/jakechorley/blood-camps/pkg/core/model"
	"github.com/jakechorley/blood-camps/pkg/db"
)

// RosterClient reads the user roster maintained by administrators
type RosterClient interface {
	ListUsers(sheetID, tab string) ([]model.User, error)
}

// SyncResult reports what a roster sync did
type SyncResult struct {
	Synced  int
	Skipped []string // IDs or row descriptions of rejected entries
}

// SyncUsers mirrors the roster into the user directory. Rows without an ID or with an
// unknown role are skipped.
func SyncUsers(ctx context.Context, roster RosterClient, store db.UserSync, cfg *config.Config, logger *zap.Logger) (*SyncResult, error) {
	if cfg.RosterSheetID == "" {
		return nil, fmt.Errorf("roster spreadsheet ID is not configured")
	}

	logger.Debug("Fetching roster", zap.String("sheet_id", cfg.RosterSheetID), zap.String("tab", cfg.RosterTab))
	users, err := roster.ListUsers(cfg.RosterSheetID, cfg.RosterTab)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roster: %w", err)
	}

	result := &SyncResult{}
	valid := make([]model.User, 0, len(users))
	seen := make(map[string]bool, len(users))
	for i, u := range users {
		switch {
		case u.ID == "":
			result.Skipped = append(result.Skipped, fmt.Sprintf("row %d: missing ID", i+2))
		case !u.Role.IsValid():
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: unknown role %q", u.ID, u.Role))
		case seen[u.ID]:
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: duplicate ID", u.ID))
		default:
			seen[u.ID] = true
			valid = append(valid, u)
		}
	}

	for _, s := range result.Skipped {
		logger.Warn("Skipping roster entry", zap.String("reason", s))
	}

	if err := store.UpsertUsers(ctx, valid); err != nil {
		return nil, fmt.Errorf("failed to upsert users: %w", err)
	}
	result.Synced = len(valid)

	logger.Info("Roster synced", zap.Int("synced", result.Synced), zap.Int("skipped", len(result.Skipped)))
	return result, nil
}
