package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/internal/config"
	"github.com/jakechorley/blood-camps/pkg/clients/sheetsclient"
	"github.com/jakechorley/blood-camps/pkg/core/model"
	"github.com/jakechorley/blood-camps/pkg/core/services"
	"github.com/jakechorley/blood-camps/pkg/db"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Env      string
	ActorID  string
	Cfg      *config.Config
	OAuthCfg *config.OAuthClientConfig
	Database db.Database
	Logger   *zap.Logger
	Ctx      context.Context

	Catalog       *services.CampCatalog
	Eligibility   *services.EligibilityEngine
	Registrations *services.RegistrationLedger
	Attendance    *services.AttendanceLedger
	Recorder      *services.DonationRecorder
	Donations     *services.DonationLedger
	Stats         *services.StatisticsViews

	sheetsClient *sheetsclient.Client
}

// Wire builds the booking services over database. notifier may be nil.
func (a *AppContext) Wire(database db.Database, notifier services.Notifier) error {
	blackouts, err := services.CompileBlackouts(a.Cfg.ScheduleBlackouts)
	if err != nil {
		return fmt.Errorf("failed to compile schedule blackouts: %w", err)
	}

	a.Database = database
	a.Eligibility = services.NewEligibilityEngine(database, a.Cfg.CooldownMonths, a.Logger)
	a.Catalog = services.NewCampCatalog(database, blackouts, a.Logger)
	a.Recorder = services.NewDonationRecorder(database, notifier, a.Cfg.DonationRetry.MaxAttempts, a.Logger)
	a.Registrations = services.NewRegistrationLedger(database, a.Eligibility, notifier, a.Logger)
	a.Attendance = services.NewAttendanceLedger(database, a.Recorder, notifier, a.Logger)
	a.Donations = services.NewDonationLedger(database, a.Eligibility, a.Logger)
	a.Stats = services.NewStatisticsViews(database, a.Cfg.Statistics, a.Logger)
	return nil
}

// Actor returns the user named by --as
func (a *AppContext) Actor() (*model.User, error) {
	if a.ActorID == "" {
		return nil, fmt.Errorf("this command needs --as <userID>")
	}
	u, err := a.Database.GetUser(a.Ctx, a.ActorID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("unknown user %q", a.ActorID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return u, nil
}

// SheetsClient creates the Sheets client on first use so only commands that need
// Google access trigger the OAuth flow
func (a *AppContext) SheetsClient() (*sheetsclient.Client, error) {
	if a.sheetsClient != nil {
		return a.sheetsClient, nil
	}
	if a.OAuthCfg == nil {
		return nil, fmt.Errorf("no OAuth client configuration loaded for env %q", a.Env)
	}
	client, err := sheetsclient.NewClient(a.Ctx, a.OAuthCfg, a.Env, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	a.sheetsClient = client
	return client, nil
}
