package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sizhen/internal/adapters/driving/gateway"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the JSON HTTP API.

Routes:
  POST /v1/diagnoses
  GET  /v1/sessions/{userID}/{sessionID}/progress
  GET  /v1/sessions/{userID}/{sessionID}/reports
  GET  /v1/reports/{id}
  POST /v1/fusion
  POST /v1/differentiation
  GET  /healthz`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if diagnosisService == nil {
		return errors.New("diagnosis service not configured")
	}

	server, err := gateway.NewServer(gateway.Ports{
		Diagnosis: diagnosisService,
		Fusion:    fusionService,
		Reasoning: reasoningService,
		Breakers:  breakerRegistry,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "API listening on %s\n", serveAddr)
	return server.Run(cmd.Context(), serveAddr)
}
