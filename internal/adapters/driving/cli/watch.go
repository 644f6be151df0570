package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sizhen/internal/adapters/driving/tui"
)

var watchInterval time.Duration

// watchCmd represents the watch command.
var watchCmd = &cobra.Command{
	Use:   "watch [user-id] [session-id]",
	Short: "Follow a session's progress in an interactive monitor",
	Long: `Poll a diagnosis session and show its stage checklist and overall
progress until it reaches DONE, INSUFFICIENT_DATA or FAILED.

Controls:
  r        - Refresh now
  d        - Toggle stage checklist
  q / Esc  - Quit`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", tui.DefaultInterval, "poll interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if diagnosisService == nil {
		return errors.New("diagnosis service not configured")
	}

	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	app, err := tui.NewApp(&tui.Ports{Diagnosis: diagnosisService}, args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	app.WithContext(cmd.Context()).WithInterval(watchInterval)

	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
