package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sizhen/internal/core/domain"
)

var (
	fuseInput     string
	fuseAlgorithm string
	fuseJSON      bool

	differentiateInput string
	differentiateJSON  bool
)

var fuseCmd = &cobra.Command{
	Use:   "fuse",
	Short: "Fuse modality findings",
	Long: `Fuses a JSON array of modality findings into ranked syndrome candidates.

Each finding names a feature, its modality and a confidence:
  [{"name": "pale_tongue", "modality": "look", "value": 1, "confidence": 0.8}]

Available algorithms:
  weighted    - Adjusted modality weights (default)
  attention   - Re-weights findings by rarity and key features
  ensemble    - Global run merged with one run per modality
  cross_modal - Boosts cross-modal agreement and flags conflicts`,
	Args: cobra.NoArgs,
	RunE: runFuse,
}

var differentiateCmd = &cobra.Command{
	Use:   "differentiate",
	Short: "Differentiate syndromes from evidence",
	Long: `Runs every enabled differentiation method over JSON evidence and
reconciles them into a ranked syndrome list, a constitution and a core
mechanism.

The evidence holds fused syndrome candidates, optional modality weights
and the raw findings:
  {"syndromes": [...], "modality_weights": {"look": 0.25}, "findings": [...]}`,
	Args: cobra.NoArgs,
	RunE: runDifferentiate,
}

func init() {
	fuseCmd.Flags().StringVarP(&fuseInput, "input", "i", "", "findings JSON file (- for stdin)")
	fuseCmd.Flags().StringVarP(&fuseAlgorithm, "algorithm", "a", "", "fusion algorithm (default from settings)")
	fuseCmd.Flags().BoolVar(&fuseJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(fuseCmd)

	differentiateCmd.Flags().StringVarP(&differentiateInput, "input", "i", "", "evidence JSON file (- for stdin)")
	differentiateCmd.Flags().BoolVar(&differentiateJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(differentiateCmd)
}

func runFuse(cmd *cobra.Command, _ []string) error {
	if fusionService == nil {
		return errors.New("fusion service not configured")
	}

	var findings []domain.ModalityFinding
	if err := decodeInput(cmd, fuseInput, &findings); err != nil {
		return err
	}

	result, err := fusionService.FuseFindings(cmd.Context(), findings, domain.FusionAlgorithm(fuseAlgorithm))
	if err != nil {
		return fmt.Errorf("fusion failed: %w", err)
	}

	if fuseJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	renderFusion(cmd.OutOrStdout(), themeFor(cmd.OutOrStdout()), result)
	return nil
}

func runDifferentiate(cmd *cobra.Command, _ []string) error {
	if reasoningService == nil {
		return errors.New("reasoning service not configured")
	}

	var evidence domain.ReasoningEvidence
	if err := decodeInput(cmd, differentiateInput, &evidence); err != nil {
		return err
	}

	result, err := reasoningService.DifferentiateSyndromes(cmd.Context(), evidence)
	if err != nil {
		return fmt.Errorf("differentiation failed: %w", err)
	}

	if differentiateJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	renderReasoning(cmd.OutOrStdout(), themeFor(cmd.OutOrStdout()), result)
	return nil
}
