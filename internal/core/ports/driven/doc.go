// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - ModalityAnalyzer: One diagnostic back-end (look, listen, inquiry, palpation)
//   - ProgressStore: Per-session progress, updated by single-key read-modify-write
//   - ReportStore: Diagnosis report persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application falls back to built-in behaviour:
//
//   - KnowledgeSource: Loads an alternative knowledge base. Without it the
//     built-in tables from domain.DefaultKnowledgeBase are used.
//   - LLMService: Writes report summaries. Without it reports keep the
//     template summary.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
