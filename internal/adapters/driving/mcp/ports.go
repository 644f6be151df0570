package mcp

import (
	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Diagnosis runs diagnoses and serves progress and reports.
	Diagnosis driving.DiagnosisService

	// Fusion enables the fuse_findings tool.
	Fusion driving.FusionService

	// Reasoning enables the differentiate_syndromes tool.
	Reasoning driving.ReasoningService

	// Knowledge backs the knowledge resources.
	Knowledge *domain.KnowledgeBase
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Diagnosis == nil {
		return ErrMissingDiagnosisService
	}
	// Fusion, Reasoning and Knowledge are optional
	return nil
}
