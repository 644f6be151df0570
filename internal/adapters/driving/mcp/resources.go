package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for sizhen resources.
	uriScheme = "sizhen://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "knowledge/syndromes",
		Name:        "syndromes",
		Description: "Syndrome definitions with weighted features and treatment principles",
		MIMEType:    "application/json",
	}, s.handleSyndromesResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "knowledge/constitutions",
		Name:        "constitutions",
		Description: "The nine constitution types with traits and recommendations",
		MIMEType:    "application/json",
	}, s.handleConstitutionsResource)

	// Template for stored reports.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "reports/{reportId}",
		Name:        "diagnosis-report",
		Description: "A stored diagnosis report",
		MIMEType:    "application/json",
	}, s.handleReportResource)
}

// handleSyndromesResource returns the syndrome knowledge base.
func (s *Server) handleSyndromesResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Knowledge == nil {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	data, err := json.MarshalIndent(s.ports.Knowledge.Syndromes(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling syndromes: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

// handleConstitutionsResource returns the constitution knowledge base.
func (s *Server) handleConstitutionsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Knowledge == nil {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	data, err := json.MarshalIndent(s.ports.Knowledge.Constitutions(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling constitutions: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

// handleReportResource returns one stored report.
func (s *Server) handleReportResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract reportId from URI: sizhen://reports/{reportId}
	reportID := extractReportID(req.Params.URI)
	if reportID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	report, err := s.ports.Diagnosis.GetReport(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling report: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

func jsonResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}

// extractReportID extracts the report ID from a URI like sizhen://reports/{reportId}.
func extractReportID(uri string) string {
	const prefix = uriScheme + "reports/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
