package cli

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"attendance-kiosk/internal/holidays"
	"attendance-kiosk/internal/model"
)

var holidaysCmd = &cobra.Command{
	Use:     "holidays",
	Aliases: []string{"non-working-days"},
	Short:   "Manage non-working days",
}

var holidaysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List non-working days grouped by type",
	RunE:  runHolidaysList,
}

var holidaysAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a non-working day",
	RunE:  runHolidaysAdd,
}

var holidaysDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a non-working day",
	Args:  cobra.ExactArgs(1),
	RunE:  runHolidaysDelete,
}

func init() {
	rootCmd.AddCommand(holidaysCmd)
	holidaysCmd.AddCommand(holidaysListCmd, holidaysAddCmd, holidaysDeleteCmd)

	holidaysAddCmd.Flags().String("date", "", "Date YYYY-MM-DD")
	holidaysAddCmd.Flags().String("description", "", "Description")
	holidaysAddCmd.Flags().String("type", string(model.DayHoliday), "Type: holiday, vacation or special")
	_ = holidaysAddCmd.MarkFlagRequired("date")
	_ = holidaysAddCmd.MarkFlagRequired("description")
}

func newHolidayManager() *holidays.Manager {
	return holidays.NewManager(newAPIClient(), quietLogger())
}

func printGroups(cmd *cobra.Command, m *holidays.Manager) error {
	groups := m.Groups()
	out := cmd.OutOrStdout()
	if len(groups) == 0 {
		fmt.Fprintln(out, "No non-working days.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, g := range groups {
		fmt.Fprintf(w, "%s\n", g.Title)
		for _, d := range g.Days {
			fmt.Fprintf(w, "  %d\t%s\t%s\n", d.ID, d.Date, d.Description)
		}
	}
	return w.Flush()
}

func runHolidaysList(cmd *cobra.Command, args []string) error {
	m := newHolidayManager()
	if _, err := m.Refresh(cmd.Context()); err != nil {
		return err
	}
	return printGroups(cmd, m)
}

func runHolidaysAdd(cmd *cobra.Command, args []string) error {
	m := newHolidayManager()
	day := model.NonWorkingDay{
		Date:        mustGetString(cmd, "date"),
		Description: mustGetString(cmd, "description"),
		Type:        model.DayType(mustGetString(cmd, "type")),
	}
	if err := m.Add(cmd.Context(), day); err != nil {
		if b := m.Banner(); b.Visible() {
			return errors.New(b.Message)
		}
		return err
	}
	return printGroups(cmd, m)
}

func runHolidaysDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid id %q", args[0])
	}
	m := newHolidayManager()
	if err := m.Delete(cmd.Context(), id); err != nil {
		return err
	}
	return printGroups(cmd, m)
}
