package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// CheckEligibilityCmd creates the checkEligibility command
func CheckEligibilityCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "checkEligibility [donor_id]",
		Short: "Show whether a donor is outside the donation cooldown (defaults to --as)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			donorID := app.ActorID
			if len(args) > 0 {
				donorID = args[0]
			}
			if donorID == "" {
				return fmt.Errorf("give a donor ID or --as <userID>")
			}

			status, err := app.Eligibility.CheckEligibility(app.Ctx, donorID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if status.Eligible {
				fmt.Fprintf(out, "✓ %s\n", status.Message)
			} else {
				fmt.Fprintf(out, "✗ %s\n", status.Message)
			}
			if status.LastDonationDate != nil {
				fmt.Fprintf(out, "  Last camp donation: %s\n", status.LastDonationDate.Format(displayLayout))
			}

			since := time.Now().AddDate(-1, 0, 0)
			count, err := app.Eligibility.CampDonationsSince(app.Ctx, donorID, since)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  Camp donations in the last 12 months: %d\n", count)
			return nil
		},
	}
}

// RegisterCmd creates the register command
func RegisterCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "register <camp_id>",
		Short: "Register the acting donor for a camp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			donor, err := app.Actor()
			if err != nil {
				return err
			}

			reg, err := app.Registrations.Register(app.Ctx, args[0], donor)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Registered for camp %s (reference %s)\n", reg.CampID, reg.ID)

			snapshot, err := app.Catalog.CapacitySnapshot(app.Ctx, reg.CampID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  %d of %d places left\n", snapshot.AvailableSlots, snapshot.MaxDonors)
			return nil
		},
	}
}

// CancelCmd creates the cancel command
func CancelCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <camp_id>",
		Short: "Cancel the acting donor's registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			donor, err := app.Actor()
			if err != nil {
				return err
			}

			if _, err := app.Registrations.Cancel(app.Ctx, args[0], donor); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Registration for camp %s cancelled\n", args[0])
			return nil
		},
	}
}

// PreviewCmd creates the preview command
func PreviewCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <camp_id>",
		Short: "Check whether the acting donor could register, without registering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			donor, err := app.Actor()
			if err != nil {
				return err
			}

			preview, err := app.Registrations.EligibilityPreview(app.Ctx, args[0], donor)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if preview.Eligible {
				fmt.Fprintln(out, "✓ You can register for this camp")
				return nil
			}
			fmt.Fprintf(out, "✗ %s\n", preview.Message)
			return nil
		},
	}
}

// RegistrationsCmd creates the registrations command
func RegistrationsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registrations [camp_id]",
		Short: "List a camp's registrations, or the acting donor's when no camp is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				donor, err := app.Actor()
				if err != nil {
					return err
				}
				regs, err := app.Registrations.RegistrationsForDonor(app.Ctx, donor.ID)
				if err != nil {
					return err
				}
				tw := newTable(out)
				fmt.Fprintln(tw, "CAMP\tREGISTERED\tSTATUS")
				for _, r := range regs {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", r.CampID, r.RegisteredAt.Format(dateLayout), r.Status)
				}
				tw.Flush()
				return nil
			}

			search, _ := cmd.Flags().GetString("search")
			if search != "" {
				donors, err := app.Registrations.SearchRegisteredDonors(app.Ctx, args[0], search)
				if err != nil {
					return err
				}
				for _, d := range donors {
					fmt.Fprintf(out, "- %s (%s) %s\n", d.FullName(), d.ID, d.Email)
				}
				return nil
			}

			stats, err := app.Registrations.RegistrationStatistics(app.Ctx, args[0])
			if err != nil {
				return err
			}
			regs, err := app.Registrations.RegistrationsForCamp(app.Ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%d active / %d max (%.1f%%), %d cancelled\n\n",
				stats.Active, stats.MaxDonors, stats.RegistrationRate, stats.Cancelled)
			tw := newTable(out)
			fmt.Fprintln(tw, "DONOR\tREGISTERED\tSTATUS")
			for _, r := range regs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.DonorID, r.RegisteredAt.Format(dateLayout), r.Status)
			}
			tw.Flush()
			return nil
		},
	}
	cmd.Flags().String("search", "", "Find active registrants by name or email")
	return cmd
}
