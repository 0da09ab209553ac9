package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/pkg/core/services"
)

// PublishReportCmd creates the publishReport command
func PublishReportCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publishReport",
		Short: "Write the camp dashboard to the report spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.SheetsClient()
			if err != nil {
				return err
			}

			report, err := services.PublishCampReport(app.Ctx, app.Catalog, app.Stats, client, app.Cfg.ReportSheetID, app.Logger)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Published %d camps to tab %q\n", len(report.Rows), report.TabTitle)
			return nil
		},
	}
}

// ReconcileCmd creates the reconcile command
func ReconcileCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [camp_id]",
		Short: "Reset camp donor counters and restore missing donation records (all camps by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			campIDs := args
			if len(campIDs) == 0 {
				camps, err := app.Database.ListCamps(app.Ctx)
				if err != nil {
					return fmt.Errorf("failed to list camps: %w", err)
				}
				for _, c := range camps {
					campIDs = append(campIDs, c.ID)
				}
			}

			out := cmd.OutOrStdout()
			for _, id := range campIDs {
				n, err := app.Registrations.ReconcileCapacity(app.Ctx, id)
				if err != nil {
					return err
				}
				restored, err := app.Attendance.RestoreMissingDonations(app.Ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %d registered, %d donation records restored\n", id, n, restored)
			}
			app.Logger.Info("Reconciled camp counters", zap.Int("camps", len(campIDs)))
			return nil
		},
	}
}

// SyncUsersCmd creates the syncUsers command
func SyncUsersCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "syncUsers",
		Short: "Load the user roster spreadsheet into the user directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.SheetsClient()
			if err != nil {
				return err
			}

			result, err := services.SyncUsers(app.Ctx, client, app.Database, app.Cfg, app.Logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Synced %d users\n", result.Synced)
			if len(result.Skipped) > 0 {
				fmt.Fprintf(out, "⚠️  Skipped %d entries:\n", len(result.Skipped))
				for _, s := range result.Skipped {
					fmt.Fprintf(out, "  ✗ %s\n", s)
				}
			}
			return nil
		},
	}
}

// AuthorizeCmd creates the authorize command
func AuthorizeCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "authorize",
		Short: "Run the Google OAuth flow and store the token for this environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.SheetsClient(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Authorized for env %q\n", app.Env)
			return nil
		},
	}
}
