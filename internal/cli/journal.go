package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"attendance-kiosk/internal/journal"
	"attendance-kiosk/internal/store"
)

var errNoDatabase = errors.New("DATABASE_URL is not set; the journal is disabled")

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the kiosk's local check-in journal",
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal entries, newest first",
	RunE:  runJournalList,
}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Apply or inspect journal database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(journalCmd, migrateCmd)
	journalCmd.AddCommand(journalListCmd)

	journalListCmd.Flags().String("document", "", "Only entries for this document number")
	journalListCmd.Flags().String("kind", "", "Only entries of this kind (recognized, not_recognized, ...)")
	journalListCmd.Flags().Int("limit", 50, "Maximum entries to show")
	journalListCmd.Flags().Int("offset", 0, "Entries to skip")
}

func openJournalDB(cmd *cobra.Command) (*store.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errNoDatabase
	}
	return store.NewDB(cmd.Context(), cfg.DatabaseURL)
}

func runJournalList(cmd *cobra.Command, args []string) error {
	db, err := openJournalDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := journal.NewService(journal.NewRepository(db.Client), cfg.JournalDedupWindow, quietLogger())
	entries, err := svc.List(cmd.Context(), journal.Filter{
		DocumentNumber: mustGetString(cmd, "document"),
		Kind:           mustGetString(cmd, "kind"),
		Limit:          mustGetInt(cmd, "limit"),
		Offset:         mustGetInt(cmd, "offset"),
	})
	if err != nil {
		return fmt.Errorf("list journal: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No journal entries.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tKIND\tDOCUMENT\tNAME\tREPEATS\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.OccurredAt.Local().Format(time.DateTime), e.Kind, e.DocumentNumber, e.Name, e.Repeats, e.Message)
	}
	return w.Flush()
}

func runMigrate(cmd *cobra.Command, args []string) error {
	direction := "up"
	if len(args) == 1 {
		direction = args[0]
	}
	db, err := openJournalDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(cmd.Context(), direction); err != nil {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	if direction != "status" {
		fmt.Fprintf(cmd.OutOrStdout(), "Migrations %s applied\n", direction)
	}
	return nil
}
