package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// RecordDonationCmd creates the recordDonation command
func RecordDonationCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recordDonation [donor_id]",
		Short: "Record a donation made outside a camp (defaults to the acting donor)",
		Long: `Record a blood donation made outside a camp, for example at a hospital.
These donations appear in the donor's history but do not start the camp cooldown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := app.Actor()
			if err != nil {
				return err
			}
			donorID := actor.ID
			if len(args) == 1 {
				donorID = args[0]
			}

			date := time.Now()
			if cmd.Flags().Changed("date") {
				raw, _ := cmd.Flags().GetString("date")
				if date, err = parseDate(raw); err != nil {
					return err
				}
			}

			donation, err := app.Donations.RecordRegularDonation(app.Ctx, donorID, date, actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Donation on %s recorded for %s (reference %s)\n",
				donation.DonationDate.Format(displayLayout), donation.DonorID, donation.ID)
			return nil
		},
	}
	cmd.Flags().String("date", "", "Donation date (YYYY-MM-DD, default today)")
	return cmd
}

// DonationsCmd creates the donations command
func DonationsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "donations [donor_id]",
		Short: "Show a donor's donation history and totals (defaults to --as)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			donorID := app.ActorID
			if len(args) == 1 {
				donorID = args[0]
			}
			if donorID == "" {
				return fmt.Errorf("give a donor ID or --as <userID>")
			}

			donations, err := app.Donations.DonationsForDonor(app.Ctx, donorID)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("from") || cmd.Flags().Changed("to") {
				from, to := time.Time{}, time.Now()
				if raw, _ := cmd.Flags().GetString("from"); raw != "" {
					if from, err = parseDate(raw); err != nil {
						return err
					}
				}
				if raw, _ := cmd.Flags().GetString("to"); raw != "" {
					if to, err = parseDate(raw); err != nil {
						return err
					}
				}
				if donations, err = app.Donations.DonationsBetween(app.Ctx, donorID, from, to); err != nil {
					return err
				}
			}

			stats, err := app.Donations.DonationStatistics(app.Ctx, donorID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d donations (%d at camps, %d elsewhere)\n",
				stats.TotalDonations, stats.CampDonations, stats.RegularDonations)
			if stats.LastCampDonationDate != nil {
				fmt.Fprintf(out, "Last camp donation: %s\n", stats.LastCampDonationDate.Format(displayLayout))
			}
			fmt.Fprintln(out, stats.Eligibility.Message)

			if len(donations) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			tw := newTable(out)
			fmt.Fprintln(tw, "DATE\tTYPE\tCAMP\tRECORDED BY")
			for _, d := range donations {
				kind := "regular"
				if d.IsCampDonation {
					kind = "camp"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.DonationDate.Format(dateLayout), kind, d.CampID, d.RecordedBy)
			}
			tw.Flush()
			return nil
		},
	}
	cmd.Flags().String("from", "", "Only donations on or after this date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Only donations on or before this date (YYYY-MM-DD)")
	return cmd
}
