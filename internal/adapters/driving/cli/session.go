package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	progressJSON bool
	reportJSON   bool
)

var progressCmd = &cobra.Command{
	Use:   "progress [user-id] [session-id]",
	Short: "Show a session's diagnosis progress",
	Args:  cobra.ExactArgs(2),
	RunE:  runProgress,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect stored diagnosis reports",
}

var reportGetCmd = &cobra.Command{
	Use:   "get [report-id]",
	Short: "Show a stored report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportGet,
}

var reportListCmd = &cobra.Command{
	Use:   "list [user-id] [session-id]",
	Short: "List a session's reports, newest first",
	Args:  cobra.ExactArgs(2),
	RunE:  runReportList,
}

func init() {
	progressCmd.Flags().BoolVar(&progressJSON, "json", false, "output progress as JSON")
	rootCmd.AddCommand(progressCmd)

	reportCmd.PersistentFlags().BoolVar(&reportJSON, "json", false, "output as JSON")
	reportCmd.AddCommand(reportGetCmd)
	reportCmd.AddCommand(reportListCmd)
	rootCmd.AddCommand(reportCmd)
}

func runProgress(cmd *cobra.Command, args []string) error {
	if diagnosisService == nil {
		return errors.New("diagnosis service not configured")
	}

	progress, err := diagnosisService.GetProgress(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to get progress: %w", err)
	}

	if progressJSON {
		return writeJSON(cmd.OutOrStdout(), progress)
	}
	renderProgress(cmd.OutOrStdout(), themeFor(cmd.OutOrStdout()), progress)
	return nil
}

func runReportGet(cmd *cobra.Command, args []string) error {
	if diagnosisService == nil {
		return errors.New("diagnosis service not configured")
	}

	report, err := diagnosisService.GetReport(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get report: %w", err)
	}

	if reportJSON {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	renderReport(cmd.OutOrStdout(), themeFor(cmd.OutOrStdout()), report)
	return nil
}

func runReportList(cmd *cobra.Command, args []string) error {
	if diagnosisService == nil {
		return errors.New("diagnosis service not configured")
	}

	reports, err := diagnosisService.ListReports(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	if reportJSON {
		return writeJSON(cmd.OutOrStdout(), reports)
	}
	out := cmd.OutOrStdout()
	if len(reports) == 0 {
		fmt.Fprintln(out, "No reports found.")
		return nil
	}

	t := themeFor(out)
	for i := range reports {
		r := &reports[i]
		top := "-"
		if len(r.Syndromes) > 0 {
			top = r.Syndromes[0].Name
		}
		fmt.Fprintf(out, "%s  %s  %s  %.2f  %s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), t.status(r.Status), r.Confidence, top)
	}
	return nil
}
