package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RecordAttendanceCmd creates the recordAttendance command
func RecordAttendanceCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recordAttendance <camp_id> <donor_id>",
		Short: "Record that a registered donor turned up",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			volunteer, err := app.Actor()
			if err != nil {
				return err
			}

			att, err := app.Attendance.RecordAttendance(app.Ctx, args[0], args[1], volunteer)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Attendance recorded for %s at %s\n", att.DonorID, att.AttendedAt.Format("15:04"))
			return nil
		},
	}
}

// MarkDonationCmd creates the markDonation command
func MarkDonationCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markDonation <camp_id> <donor_id>",
		Short: "Mark an attendee as having donated blood",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			volunteer, err := app.Actor()
			if err != nil {
				return err
			}
			notes, _ := cmd.Flags().GetString("notes")

			outcome, err := app.Attendance.MarkBloodDonation(app.Ctx, args[0], args[1], volunteer, notes)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case outcome.DonationPending:
				fmt.Fprintf(out, "⚠️  Donation marked, but donation record %s could not be written yet.\n", outcome.Donation.ID)
				fmt.Fprintf(out, "   serve and interactive retry it; otherwise run: reconcile %s\n", outcome.Attendance.CampID)
			case outcome.Donation == nil:
				fmt.Fprintln(out, "✓ Donation was already recorded; notes updated")
			default:
				fmt.Fprintf(out, "✓ Donation recorded for %s\n", outcome.Donation.DonorID)
			}
			return nil
		},
	}
	cmd.Flags().String("notes", "", "Notes to store with the attendance record")
	return cmd
}

// AttendeesCmd creates the attendees command
func AttendeesCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attendees [camp_id]",
		Short: "List a camp's attendees, or attendance totals across all camps",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			volunteer, err := app.Actor()
			if err != nil {
				return err
			}
			search, _ := cmd.Flags().GetString("search")
			pending, _ := cmd.Flags().GetBool("pending")
			donorID, _ := cmd.Flags().GetString("donor")
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				stats, err := app.Attendance.GlobalStatistics(app.Ctx, volunteer)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "All active camps: %d attended, %d donated (%.1f%%), %d registered of %d\n",
					stats.TotalAttendees, stats.BloodDonations, stats.DonationRate, stats.RegisteredDonors, stats.MaxCapacity)
				return nil
			}

			if donorID != "" {
				a, err := app.Attendance.AttendeeDetails(app.Ctx, args[0], donorID, volunteer)
				if err != nil {
					return err
				}
				name := "(unknown)"
				if a.Donor != nil {
					name = a.Donor.FullName()
				}
				fmt.Fprintf(out, "Donor:    %s (%s)\n", name, a.Attendance.DonorID)
				fmt.Fprintf(out, "Arrived:  %s\n", a.Attendance.AttendedAt.Format("15:04"))
				fmt.Fprintf(out, "Donated:  %t\n", a.Attendance.BloodDonated)
				if a.Attendance.Notes != "" {
					fmt.Fprintf(out, "Notes:    %s\n", a.Attendance.Notes)
				}
				return nil
			}

			if pending {
				donors, err := app.Attendance.PendingArrivals(app.Ctx, args[0], volunteer)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d registered donors not yet arrived:\n", len(donors))
				for _, d := range donors {
					fmt.Fprintf(out, "- %s (%s)\n", d.FullName(), d.ID)
				}
				return nil
			}

			attendees, err := app.Attendance.SearchAttendees(app.Ctx, args[0], volunteer, search)
			if err != nil {
				return err
			}

			tw := newTable(out)
			fmt.Fprintln(tw, "DONOR\tNAME\tARRIVED\tDONATED\tNOTES")
			for _, a := range attendees {
				name := "(unknown)"
				if a.Donor != nil {
					name = a.Donor.FullName()
				}
				donated := "no"
				if a.Attendance.BloodDonated {
					donated = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					a.Attendance.DonorID, name, a.Attendance.AttendedAt.Format("15:04"), donated, a.Attendance.Notes)
			}
			tw.Flush()

			stats, err := app.Attendance.CampStatistics(app.Ctx, args[0], volunteer)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d attended, %d donated (%.1f%%), %d registered of %d\n",
				stats.TotalAttendees, stats.BloodDonations, stats.DonationRate, stats.RegisteredDonors, stats.MaxCapacity)
			return nil
		},
	}
	cmd.Flags().String("search", "", "Filter by donor name or email")
	cmd.Flags().Bool("pending", false, "Show registered donors who have not arrived")
	cmd.Flags().String("donor", "", "Show one donor's attendance record")
	cmd.MarkFlagsMutuallyExclusive("search", "pending", "donor")
	return cmd
}
