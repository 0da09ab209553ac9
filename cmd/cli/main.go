package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/cmd/cli/commands"
	"github.com/jakechorley/blood-camps/internal/config"
	"github.com/jakechorley/blood-camps/pkg/clients/amqpclient"
	"github.com/jakechorley/blood-camps/pkg/clients/gmailclient"
	"github.com/jakechorley/blood-camps/pkg/core/services"
	"github.com/jakechorley/blood-camps/pkg/db"
	"github.com/jakechorley/blood-camps/pkg/notify"
	"github.com/jakechorley/blood-camps/pkg/postgres"
	"github.com/jakechorley/blood-camps/pkg/utils/logging"
)

var (
	env     string
	store   string
	verbose bool

	app     = &commands.AppContext{Ctx: context.Background()}
	closers []func()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Blood camps CLI - schedule donation camps, register donors and record donations",
		Long: `A CLI for organizing blood donation camps: camp scheduling, donor registration
with cooldown eligibility, attendance and donation recording, and camp dashboards.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			shutdown()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")
	rootCmd.PersistentFlags().StringVar(&app.ActorID, "as", "", "ID of the acting user")
	rootCmd.PersistentFlags().StringVar(&store, "store", "postgres", "Storage backend: postgres or memory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print debug logs to the console")

	rootCmd.AddCommand(
		commands.CreateCampCmd(app),
		commands.UpdateCampCmd(app),
		commands.DeactivateCampCmd(app),
		commands.ListCampsCmd(app),
		commands.ShowCampCmd(app),
		commands.CheckEligibilityCmd(app),
		commands.RegisterCmd(app),
		commands.CancelCmd(app),
		commands.PreviewCmd(app),
		commands.RegistrationsCmd(app),
		commands.RecordAttendanceCmd(app),
		commands.MarkDonationCmd(app),
		commands.AttendeesCmd(app),
		commands.RecordDonationCmd(app),
		commands.DonationsCmd(app),
		commands.CampStatsCmd(app),
		commands.SummaryCmd(app),
		commands.UrgentCampsCmd(app),
		commands.AttentionCmd(app),
		commands.PublishReportCmd(app),
		commands.ReconcileCmd(app),
		commands.SyncUsersCmd(app),
		commands.AuthorizeCmd(app),
		commands.ServeCmd(app),
		commands.InteractiveCmd(app),
	)

	if err := rootCmd.Execute(); err != nil {
		shutdown()
		os.Exit(1)
	}
}

// initApp sets up logger, config, database, notifications and services
func initApp() error {
	var err error
	app.Env = env

	app.Logger, err = logging.New(logging.Options{Env: env, Verbose: verbose})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	closers = append(closers, func() { _ = app.Logger.Sync() })
	app.Logger.Debug("Starting application", zap.String("environment", env), zap.String("store", store))

	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded")

	// Only report, roster and email features need Google credentials
	app.OAuthCfg, err = config.LoadOAuthClientWithEnv(env)
	if err != nil {
		app.Logger.Debug("No OAuth client configuration", zap.Error(err))
		app.OAuthCfg = nil
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}

	dispatcher, err := newDispatcher(database)
	if err != nil {
		return err
	}
	dispatcher.Start()
	closers = append(closers, dispatcher.Close)

	if err := app.Wire(database, dispatcher); err != nil {
		return err
	}
	app.Logger.Debug("Services initialized")
	return nil
}

func openDatabase() (db.Database, error) {
	switch store {
	case "memory":
		app.Logger.Warn("Using the in-memory store; data is lost when the process exits")
		return db.NewMemDB(), nil
	case "postgres":
		pg, err := postgres.NewDB(app.Ctx, app.Cfg.DatabaseURL, app.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		closers = append(closers, pg.Close)
		if err := pg.RunMigrations(app.Ctx); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store %q (want postgres or memory)", store)
	}
}

// newDispatcher wires the configured notification sinks
func newDispatcher(database db.Database) (*notify.Dispatcher, error) {
	cfg := app.Cfg.Notifications
	sinks := []notify.Sink{notify.NewLogSink(app.Logger)}

	if cfg.AMQPURL != "" {
		broker, err := amqpclient.NewClient(cfg.AMQPURL, cfg.Exchange, app.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to message broker: %w", err)
		}
		closers = append(closers, broker.Close)
		sinks = append(sinks, notify.NewAMQPSink(broker))
	}

	if cfg.Email {
		if app.OAuthCfg == nil {
			return nil, fmt.Errorf("email notifications need an OAuth client configuration")
		}
		gmail, err := gmailclient.NewClient(app.Ctx, app.OAuthCfg, env, cfg.EmailsPerMinute, app.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create gmail client: %w", err)
		}
		eligibility := services.NewEligibilityEngine(database, app.Cfg.CooldownMonths, app.Logger)
		sinks = append(sinks, notify.NewEmailSink(database, gmail, eligibility, app.Logger))
	}

	return notify.NewDispatcher(cfg, app.Logger, sinks...), nil
}

// shutdown releases resources in reverse order of acquisition
func shutdown() {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	closers = nil
}
