// Package tui provides an interactive terminal monitor for diagnosis sessions.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/sizhen/internal/core/ports/driving"
)

// Ports aggregates the driving ports required by the TUI.
type Ports struct {
	// Diagnosis reads session progress.
	Diagnosis driving.DiagnosisService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Diagnosis == nil {
		return ErrMissingDiagnosisService
	}
	return nil
}
