package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sizhen/internal/core/domain"
)

var (
	diagnoseInput     string
	diagnoseAlgorithm string
	diagnoseJSON      bool
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Run a full diagnosis",
	Long: `Runs an end-to-end diagnosis from a JSON request file.

The request names the user, the session, the modalities to include and one
payload per modality. Every included modality is analysed, the results are
fused and differentiated, and the report is stored under the session.

Example request:
  {
    "user_id": "u-1",
    "session_id": "s-1",
    "include": {"look": true, "inquiry": true},
    "payloads": {
      "look":    {"kind": "tongue", "fields": {"pale_tongue": "0.8"}},
      "inquiry": {"fields": {"fatigue": "0.9", "shortness_of_breath": "0.7"}}
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runDiagnose,
}

func init() {
	diagnoseCmd.Flags().StringVarP(&diagnoseInput, "input", "i", "", "request JSON file (- for stdin)")
	diagnoseCmd.Flags().StringVarP(&diagnoseAlgorithm, "algorithm", "a", "", "fusion algorithm override")
	diagnoseCmd.Flags().BoolVar(&diagnoseJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(diagnoseCmd)
}

func runDiagnose(cmd *cobra.Command, _ []string) error {
	if diagnosisService == nil {
		return errors.New("diagnosis service not configured")
	}

	var req domain.DiagnosisRequest
	if err := decodeInput(cmd, diagnoseInput, &req); err != nil {
		return err
	}
	if diagnoseAlgorithm != "" {
		req.Algorithm = domain.FusionAlgorithm(diagnoseAlgorithm)
	}

	report, err := diagnosisService.GenerateReport(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("diagnosis failed: %w", err)
	}

	if diagnoseJSON {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	renderReport(cmd.OutOrStdout(), themeFor(cmd.OutOrStdout()), report)
	return nil
}
