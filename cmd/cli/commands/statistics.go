package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CampStatsCmd creates the campStats command
func CampStatsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "campStats [camp_id]",
		Short: "Show a camp's performance, or all camps of the acting organizer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				p, err := app.Stats.CampPerformance(app.Ctx, args[0])
				if err != nil {
					return err
				}
				printPerformance(out, p)
				return nil
			}

			organizer, err := app.Actor()
			if err != nil {
				return err
			}
			summary, err := app.Stats.OrganizerSummary(app.Ctx, organizer.ID)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%d camps, %d registered, %d attended, %d donations, average score %d\n\n",
				len(summary.Camps), summary.TotalRegistered, summary.TotalAttendees, summary.TotalDonations, summary.AverageScore)
			for i := range summary.Camps {
				printPerformance(out, &summary.Camps[i])
			}
			return nil
		},
	}
}

// SummaryCmd creates the summary command
func SummaryCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show totals across active camps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.Stats.Summary(app.Ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Camps:        %d (%d today, %d upcoming)\n", s.TotalCamps, s.TodaysCamps, s.UpcomingCamps)
			fmt.Fprintf(out, "Capacity:     %d (%d registered, %d available, %.1f%%)\n",
				s.TotalCapacity, s.TotalRegistered, s.AvailableSlots, s.RegistrationRate)
			fmt.Fprintf(out, "Attendees:    %d\n", s.TotalAttendees)
			fmt.Fprintf(out, "Donations:    %d (%.1f%% of attendees)\n", s.TotalDonations, s.DonationRate)

			if anomalies := app.Recorder.Anomalies(); len(anomalies) > 0 {
				fmt.Fprintf(out, "\n⚠️  %d donations waiting to be written:\n", len(anomalies))
				for _, a := range anomalies {
					fmt.Fprintf(out, "  %s (donor %s, %d attempts): %s\n", a.Donation.ID, a.Donation.DonorID, a.Attempts, a.LastError)
				}
			}
			return nil
		},
	}
}

// UrgentCampsCmd creates the urgentCamps command
func UrgentCampsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "urgentCamps",
		Short: "List today's camps with low attendance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			camps, err := app.Stats.UrgentCamps(app.Ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(camps) == 0 {
				fmt.Fprintln(out, "No urgent camps.")
				return nil
			}
			for i := range camps {
				printPerformance(out, &camps[i])
			}
			return nil
		},
	}
}

// AttentionCmd creates the attention command
func AttentionCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "attention",
		Short: "List today's camps that need action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := app.Stats.CampsNeedingAttention(app.Ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "Nothing needs attention.")
				return nil
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "PRIORITY\tREASON\tCAMP\tSTART\tATTENDANCE")
			for _, item := range items {
				p := item.Performance
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f%%\n", item.Priority, item.Reason, p.Camp.Name, p.Camp.StartTime, p.AttendanceRate)
			}
			tw.Flush()
			return nil
		},
	}
}
