// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The fusion and reasoning engines are pure computation over the
// read-only knowledge base. The coordinator owns all concurrency:
// it fans out to the modality analyzers and serialises progress
// writes through the ProgressStore. An optional Narrator rewrites the
// summary of completed reports.
package services
