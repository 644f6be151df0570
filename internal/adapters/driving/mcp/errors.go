// Package mcp provides an MCP (Model Context Protocol) server adapter for sizhen.
// It lets AI assistants run diagnoses and query the syndrome knowledge base.
package mcp

import "errors"

// ErrMissingDiagnosisService is returned when the diagnosis service is not provided.
var ErrMissingDiagnosisService = errors.New("mcp: diagnosis service is required")
