// Package domain defines the core business entities for sizhen.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - ModalityFinding: A confidence-scored observation from one diagnostic channel
//   - AnalysisResult: A normalised back-end response for one modality
//   - SyndromeCandidate: A scored syndrome produced by fusion or reasoning
//   - FusionResult / ReasoningResult: Outputs of the two engines
//   - DiagnosisProgress / DiagnosisReport: Per-session state and terminal artifact
//   - KnowledgeBase: Immutable syndrome and constitution tables
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
