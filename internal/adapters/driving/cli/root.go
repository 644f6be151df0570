// Package cli provides the cobra command tree for the sizhen binary.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driving"
	"github.com/custodia-labs/sizhen/internal/logger"
	"github.com/custodia-labs/sizhen/internal/resilience"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services wired by main before Execute.
var (
	diagnosisService driving.DiagnosisService
	fusionService    driving.FusionService
	reasoningService driving.ReasoningService
	settingsService  driving.SettingsService
	knowledgeBase    *domain.KnowledgeBase
	breakerRegistry  *resilience.Registry
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "sizhen",
	Short: "Multimodal TCM diagnosis core",
	Long: `Sizhen runs four-examination diagnoses: it collects look, listen,
inquiry and palpation analyses, fuses them into ranked syndrome candidates
and differentiates the result into a diagnosis report.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Services groups the driving ports the commands call.
type Services struct {
	Diagnosis driving.DiagnosisService
	Fusion    driving.FusionService
	Reasoning driving.ReasoningService
	Settings  driving.SettingsService
	Knowledge *domain.KnowledgeBase
	Breakers  *resilience.Registry
}

// SetServices injects the services used by every command.
func SetServices(s Services) {
	diagnosisService = s.Diagnosis
	fusionService = s.Fusion
	reasoningService = s.Reasoning
	settingsService = s.Settings
	knowledgeBase = s.Knowledge
	breakerRegistry = s.Breakers
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
