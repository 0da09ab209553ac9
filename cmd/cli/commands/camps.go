package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/pkg/core/services"
	"github.com/jakechorley/blood-camps/pkg/db"
)

// CreateCampCmd creates the createCamp command
func CreateCampCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "createCamp",
		Short: "Create a camp organized by the acting volunteer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			organizer, err := app.Actor()
			if err != nil {
				return err
			}

			def, err := applyDefinitionFlags(cmd.Flags(), services.CampDefinition{})
			if err != nil {
				return err
			}

			camp, err := app.Catalog.CreateCamp(app.Ctx, def, organizer)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n✓ Camp created\n\n")
			printCampDetails(out, camp)
			return nil
		},
	}
	campDefinitionFlags(cmd)
	return cmd
}

// UpdateCampCmd creates the updateCamp command
func UpdateCampCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "updateCamp <camp_id>",
		Short: "Change a camp you organize (unset flags keep their current value)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requester, err := app.Actor()
			if err != nil {
				return err
			}

			current, err := app.Catalog.GetCamp(app.Ctx, args[0])
			if err != nil {
				return err
			}

			def, err := applyDefinitionFlags(cmd.Flags(), definitionOf(current))
			if err != nil {
				return err
			}

			camp, err := app.Catalog.UpdateCamp(app.Ctx, args[0], def, requester)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n✓ Camp updated\n\n")
			printCampDetails(out, camp)
			return nil
		},
	}
	campDefinitionFlags(cmd)
	return cmd
}

// DeactivateCampCmd creates the deactivateCamp command
func DeactivateCampCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivateCamp <camp_id>",
		Short: "Stop a camp accepting registrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requester, err := app.Actor()
			if err != nil {
				return err
			}
			if err := app.Catalog.DeactivateCamp(app.Ctx, args[0], requester); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Camp %s deactivated\n", args[0])
			return nil
		},
	}
}

// ListCampsCmd creates the listCamps command
func ListCampsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listCamps",
		Short: "List active camps (use one filter flag to narrow the list)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			upcoming, _ := cmd.Flags().GetBool("upcoming")
			today, _ := cmd.Flags().GetBool("today")
			mine, _ := cmd.Flags().GetBool("mine")
			eligible, _ := cmd.Flags().GetBool("eligible")
			search, _ := cmd.Flags().GetString("search")

			out := cmd.OutOrStdout()
			var camps []db.Camp
			var err error

			switch {
			case eligible:
				donor, err := app.Actor()
				if err != nil {
					return err
				}
				listings, err := app.Catalog.ListAvailableForDonor(app.Ctx, donor)
				if err != nil {
					return err
				}
				printListings(out, listings)
				return nil
			case mine:
				organizer, err := app.Actor()
				if err != nil {
					return err
				}
				camps, err = app.Catalog.ListByOrganizer(app.Ctx, organizer.ID)
				if err != nil {
					return err
				}
			case search != "":
				camps, err = app.Catalog.Search(app.Ctx, search)
			case today:
				camps, err = app.Catalog.ListToday(app.Ctx)
			case upcoming:
				camps, err = app.Catalog.ListUpcoming(app.Ctx)
			default:
				camps, err = app.Catalog.ListActive(app.Ctx)
			}
			if err != nil {
				return err
			}

			app.Logger.Debug("Listed camps", zap.Int("count", len(camps)))
			printCamps(out, camps)
			return nil
		},
	}

	cmd.Flags().Bool("upcoming", false, "Only camps from today on")
	cmd.Flags().Bool("today", false, "Only today's camps")
	cmd.Flags().Bool("mine", false, "Camps organized by the acting user")
	cmd.Flags().Bool("eligible", false, "Camps the acting donor can register for")
	cmd.Flags().String("search", "", "Match name, location, description or organizer")
	cmd.MarkFlagsMutuallyExclusive("upcoming", "today", "mine", "eligible", "search")

	return cmd
}

func printListings(w io.Writer, listings []services.CampListing) {
	if len(listings) == 0 {
		fmt.Fprintln(w, "No camps are open for registration.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDATE\tNAME\tLOCATION\tSLOTS\t")
	for _, l := range listings {
		mark := ""
		if l.Registered {
			mark = "registered"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			l.Camp.ID, l.Camp.Date.Format(displayLayout), l.Camp.Name, l.Camp.Location, l.AvailableSlots, mark)
	}
	tw.Flush()
}

// ShowCampCmd creates the showCamp command
func ShowCampCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "showCamp <camp_id>",
		Short: "Show a camp's details and capacity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			camp, err := app.Catalog.GetCamp(app.Ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printCampDetails(out, camp)

			open, err := app.Catalog.IsEligibleForAttendanceManagement(app.Ctx, camp.ID)
			if err != nil {
				return err
			}
			if open {
				fmt.Fprintln(out, "Attendance:  open")
			}

			if app.ActorID == "" {
				return nil
			}
			user, err := app.Actor()
			if err != nil {
				return err
			}
			if canEdit, err := app.Catalog.CanEdit(app.Ctx, camp.ID, user); err != nil {
				return err
			} else if canEdit {
				fmt.Fprintln(out, "\nYou organise this camp.")
			}
			if registered, err := app.Registrations.IsRegistered(app.Ctx, camp.ID, user.ID); err != nil {
				return err
			} else if registered {
				fmt.Fprintln(out, "\nYou are registered for this camp.")
			}
			return nil
		},
	}
}
