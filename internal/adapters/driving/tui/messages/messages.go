// Package messages defines Bubbletea message types for the TUI.
package messages

import (
	"github.com/custodia-labs/sizhen/internal/core/domain"
)

// ProgressLoaded carries one poll of the session progress back to the model.
type ProgressLoaded struct {
	Progress *domain.DiagnosisProgress
	Err      error
}

// RefreshDue is sent when the poll interval elapses.
type RefreshDue struct{}
