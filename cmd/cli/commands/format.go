package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jakechorley/blood-camps/pkg/core/services"
	"github.com/jakechorley/blood-camps/pkg/db"
)

const (
	dateLayout    = "2006-01-02"
	displayLayout = "Mon Jan 02 2006"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printCamps(w io.Writer, camps []db.Camp) {
	if len(camps) == 0 {
		fmt.Fprintln(w, "No camps found.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDATE\tTIME\tNAME\tLOCATION\tSLOTS")
	for i := range camps {
		c := &camps[i]
		fmt.Fprintf(tw, "%s\t%s\t%s-%s\t%s\t%s\t%d/%d\n",
			c.ID, c.Date.Format(displayLayout), c.StartTime, c.EndTime, c.Name, c.Location,
			c.AvailableSlots(), c.MaxDonors)
	}
	tw.Flush()
}

func printCampDetails(w io.Writer, c *db.Camp) {
	fmt.Fprintf(w, "Camp:        %s (%s)\n", c.Name, c.ID)
	fmt.Fprintf(w, "Date:        %s %s-%s\n", c.Date.Format(displayLayout), c.StartTime, c.EndTime)
	fmt.Fprintf(w, "Location:    %s\n", c.Location)
	if c.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", c.Description)
	}
	fmt.Fprintf(w, "Organizer:   %s\n", c.OrganizerID)
	fmt.Fprintf(w, "Donors:      %d/%d (%d available)\n", c.CurrentDonors, c.MaxDonors, c.AvailableSlots())
	if !c.Active {
		fmt.Fprintln(w, "Status:      inactive")
	}
}

func printPerformance(w io.Writer, p *services.CampPerformance) {
	fmt.Fprintf(w, "%s (%s) - %s\n", p.Camp.Name, p.Camp.ID, p.Status)
	fmt.Fprintf(w, "  Registered:   %d/%d (%.1f%% utilization, %d slots left)\n",
		p.RegisteredCount, p.Camp.MaxDonors, p.CapacityUtilization, p.AvailableSlots)
	fmt.Fprintf(w, "  Attended:     %d (%.1f%%)\n", p.AttendeeCount, p.AttendanceRate)
	fmt.Fprintf(w, "  Donations:    %d\n", p.DonationCount)
	fmt.Fprintf(w, "  Score:        %d\n", p.Score)
	if p.Urgency != "" {
		fmt.Fprintf(w, "  Urgency:      %s\n", p.Urgency)
	}
}

// campDefinitionFlags registers the camp definition flags on cmd
func campDefinitionFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Camp name")
	cmd.Flags().String("description", "", "Free-text description")
	cmd.Flags().String("location", "", "Venue")
	cmd.Flags().String("date", "", "Camp date (YYYY-MM-DD)")
	cmd.Flags().String("start", "", "Start time (HH:MM)")
	cmd.Flags().String("end", "", "End time (HH:MM)")
	cmd.Flags().Int("max", 0, "Maximum number of donors")
}

// applyDefinitionFlags overlays the flags the user set onto base
func applyDefinitionFlags(flags *pflag.FlagSet, base services.CampDefinition) (services.CampDefinition, error) {
	def := base
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "name":
			def.Name = strings.TrimSpace(f.Value.String())
		case "description":
			def.Description = f.Value.String()
		case "location":
			def.Location = strings.TrimSpace(f.Value.String())
		case "date":
			def.Date, err = parseDate(f.Value.String())
		case "start":
			def.StartTime = f.Value.String()
		case "end":
			def.EndTime = f.Value.String()
		case "max":
			def.MaxDonors, err = flags.GetInt("max")
		}
	})
	return def, err
}

func definitionOf(c *db.Camp) services.CampDefinition {
	return services.CampDefinition{
		Name:        c.Name,
		Description: c.Description,
		Location:    c.Location,
		Date:        c.Date,
		StartTime:   c.StartTime,
		EndTime:     c.EndTime,
		MaxDonors:   c.MaxDonors,
	}
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return d, nil
}
