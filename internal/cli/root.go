package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"attendance-kiosk/internal/apiclient"
	"attendance-kiosk/internal/config"
)

var (
	cfg    config.App
	apiURL string
)

var rootCmd = &cobra.Command{
	Use:   "attendancectl",
	Short: "Operator tool for the attendance kiosk",
	Long: `attendancectl talks to the attendance API and the kiosk's local journal.
It prints attendance reports, exports absences to Excel, manages non-working
days, issues operator tokens for the kiosk's admin routes and runs journal
migrations.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if apiURL != "" {
			cfg.APIURL = apiURL
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Attendance API base URL (overrides API_URL)")
}

func newAPIClient() *apiclient.Client {
	return apiclient.New(cfg.APIURL, cfg.APITimeout)
}

// quietLogger drops log output; commands report failures through their
// returned error.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
