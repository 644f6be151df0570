package mcp

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sizhen/internal/core/domain"
)

// PayloadInput is the input for one modality.
type PayloadInput struct {
	Kind        string            `json:"kind,omitempty" jsonschema:"detail kind, e.g. tongue, face, voice, interview or pulse"`
	ContentType string            `json:"content_type,omitempty" jsonschema:"MIME type of data"`
	Data        string            `json:"data,omitempty" jsonschema:"base64 encoded media"`
	Fields      map[string]string `json:"fields,omitempty" jsonschema:"structured answers or scored features"`
}

// DiagnosisInput is the input schema for the generate_diagnosis_report tool.
type DiagnosisInput struct {
	UserID             string                  `json:"user_id" jsonschema:"the user being diagnosed"`
	SessionID          string                  `json:"session_id" jsonschema:"the diagnosis session"`
	Include            []string                `json:"include" jsonschema:"modalities to run: look, listen, inquiry, palpation"`
	Payloads           map[string]PayloadInput `json:"payloads" jsonschema:"one payload per included modality"`
	Algorithm          string                  `json:"algorithm,omitempty" jsonschema:"fusion algorithm: weighted, attention, ensemble or cross_modal"`
	ApplyPreprocessing bool                    `json:"apply_preprocessing,omitempty" jsonschema:"ask back-ends to preprocess media"`
}

// SyndromeOutput is one ranked syndrome.
type SyndromeOutput struct {
	Name       string   `json:"name"`
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	Mechanism  string   `json:"mechanism,omitempty"`
	Related    []string `json:"related,omitempty"`
}

// DiagnosisOutput is the output schema for the generate_diagnosis_report tool.
type DiagnosisOutput struct {
	ReportID        string            `json:"report_id"`
	Status          string            `json:"status"`
	StatusMessage   string            `json:"status_message"`
	Confidence      float64           `json:"confidence"`
	Syndromes       []SyndromeOutput  `json:"syndromes"`
	Constitution    string            `json:"constitution,omitempty"`
	CoreMechanism   string            `json:"core_mechanism,omitempty"`
	Recommendations []string          `json:"recommendations,omitempty"`
	ModalityErrors  map[string]string `json:"modality_errors,omitempty"`
	Skipped         []string          `json:"skipped,omitempty"`
	Summary         string            `json:"summary"`
}

// ProgressInput is the input schema for the get_diagnosis_progress tool.
type ProgressInput struct {
	UserID    string `json:"user_id" jsonschema:"the user being diagnosed"`
	SessionID string `json:"session_id" jsonschema:"the diagnosis session"`
}

// ProgressOutput is the output schema for the get_diagnosis_progress tool.
type ProgressOutput struct {
	Status          string   `json:"status"`
	StatusMessage   string   `json:"status_message"`
	OverallProgress float64  `json:"overall_progress"`
	Completed       []string `json:"completed"`
}

// FindingInput is one modality finding.
type FindingInput struct {
	Name       string  `json:"name" jsonschema:"feature name, e.g. pale_tongue"`
	Modality   string  `json:"modality" jsonschema:"look, listen, inquiry or palpation"`
	Value      float64 `json:"value,omitempty" jsonschema:"feature intensity (default 1)"`
	Confidence float64 `json:"confidence" jsonschema:"confidence between 0 and 1"`
}

// FuseInput is the input schema for the fuse_findings tool.
type FuseInput struct {
	Findings  []FindingInput `json:"findings" jsonschema:"findings to fuse"`
	Algorithm string         `json:"algorithm,omitempty" jsonschema:"fusion algorithm (default from settings)"`
}

// FuseOutput is the output schema for the fuse_findings tool.
type FuseOutput struct {
	Success           bool               `json:"success"`
	Error             string             `json:"error,omitempty"`
	Algorithm         string             `json:"algorithm"`
	Confidence        float64            `json:"confidence"`
	Syndromes         []SyndromeOutput   `json:"syndromes"`
	ModalityWeights   map[string]float64 `json:"modality_weights,omitempty"`
	ConflictsDetected bool               `json:"conflicts_detected,omitempty"`
}

// CandidateInput is one fused syndrome candidate.
type CandidateInput struct {
	Name       string  `json:"name" jsonschema:"syndrome name"`
	Score      float64 `json:"score" jsonschema:"fused score"`
	Confidence float64 `json:"confidence" jsonschema:"fused confidence"`
}

// DifferentiateInput is the input schema for the differentiate_syndromes tool.
type DifferentiateInput struct {
	Syndromes []CandidateInput `json:"syndromes" jsonschema:"fused syndrome candidates"`
	Findings  []FindingInput   `json:"findings,omitempty" jsonschema:"raw findings used as evidence"`
}

// DifferentiateOutput is the output schema for the differentiate_syndromes tool.
type DifferentiateOutput struct {
	Success             bool             `json:"success"`
	Error               string           `json:"error,omitempty"`
	Syndromes           []SyndromeOutput `json:"syndromes"`
	Constitution        string           `json:"constitution,omitempty"`
	CoreMechanism       string           `json:"core_mechanism,omitempty"`
	TreatmentPrinciples []string         `json:"treatment_principles,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "generate_diagnosis_report",
		Description: "Run a four-examination diagnosis and return the stored report",
	}, s.handleGenerateReport)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_diagnosis_progress",
		Description: "Get the progress of a diagnosis session",
	}, s.handleGetProgress)

	if s.ports.Fusion != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "fuse_findings",
			Description: "Fuse modality findings into ranked syndrome candidates",
		}, s.handleFuseFindings)
	}

	if s.ports.Reasoning != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "differentiate_syndromes",
			Description: "Differentiate fused syndromes and classify constitution",
		}, s.handleDifferentiate)
	}
}

// handleGenerateReport handles the generate_diagnosis_report tool invocation.
func (s *Server) handleGenerateReport(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DiagnosisInput,
) (*mcp.CallToolResult, DiagnosisOutput, error) {
	req, err := input.request()
	if err != nil {
		return nil, DiagnosisOutput{}, err
	}

	report, err := s.ports.Diagnosis.GenerateReport(ctx, req)
	if err != nil {
		return nil, DiagnosisOutput{}, err
	}

	output := DiagnosisOutput{
		ReportID:        report.ID,
		Status:          report.Status.String(),
		StatusMessage:   report.StatusMessage,
		Confidence:      report.Confidence,
		Syndromes:       syndromeOutputs(report.Syndromes),
		CoreMechanism:   report.CoreMechanism,
		Recommendations: report.Recommendations,
		Summary:         report.Summary,
	}
	if report.Constitution != nil {
		output.Constitution = report.Constitution.Type.String()
	}
	if len(report.ModalityErrors) > 0 {
		output.ModalityErrors = make(map[string]string, len(report.ModalityErrors))
		for m, msg := range report.ModalityErrors {
			output.ModalityErrors[m.String()] = msg
		}
	}
	for _, m := range report.SkippedModalities {
		output.Skipped = append(output.Skipped, m.String())
	}

	return nil, output, nil
}

// request converts tool input into a diagnosis request.
func (in DiagnosisInput) request() (domain.DiagnosisRequest, error) {
	req := domain.DiagnosisRequest{
		UserID:             in.UserID,
		SessionID:          in.SessionID,
		Include:            make(map[domain.Modality]bool, len(in.Include)),
		Payloads:           make(map[domain.Modality]domain.ModalityPayload, len(in.Payloads)),
		ApplyPreprocessing: in.ApplyPreprocessing,
		Algorithm:          domain.FusionAlgorithm(in.Algorithm),
	}
	for _, m := range in.Include {
		req.Include[domain.Modality(m)] = true
	}
	for m, p := range in.Payloads {
		payload := domain.ModalityPayload{
			Kind:        domain.DetailKind(p.Kind),
			ContentType: p.ContentType,
			Fields:      p.Fields,
		}
		if p.Data != "" {
			data, err := base64.StdEncoding.DecodeString(p.Data)
			if err != nil {
				return domain.DiagnosisRequest{}, fmt.Errorf("%w: %s payload data is not base64", domain.ErrInvalidInput, m)
			}
			payload.Data = data
		}
		req.Payloads[domain.Modality(m)] = payload
	}
	return req, nil
}

// handleGetProgress handles the get_diagnosis_progress tool invocation.
func (s *Server) handleGetProgress(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProgressInput,
) (*mcp.CallToolResult, ProgressOutput, error) {
	progress, err := s.ports.Diagnosis.GetProgress(ctx, input.UserID, input.SessionID)
	if err != nil {
		return nil, ProgressOutput{}, err
	}

	output := ProgressOutput{
		Status:          progress.Status.String(),
		StatusMessage:   progress.StatusMessage,
		OverallProgress: progress.OverallProgress,
		Completed:       []string{},
	}
	for _, m := range domain.AllModalities() {
		if progress.ModalityCompleted(m) {
			output.Completed = append(output.Completed, m.String())
		}
	}
	if progress.FusionCompleted {
		output.Completed = append(output.Completed, "fusion")
	}
	if progress.ReasoningCompleted {
		output.Completed = append(output.Completed, "reasoning")
	}

	return nil, output, nil
}

// handleFuseFindings handles the fuse_findings tool invocation.
func (s *Server) handleFuseFindings(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FuseInput,
) (*mcp.CallToolResult, FuseOutput, error) {
	result, err := s.ports.Fusion.FuseFindings(ctx, findings(input.Findings), domain.FusionAlgorithm(input.Algorithm))
	if err != nil {
		return nil, FuseOutput{}, err
	}

	output := FuseOutput{
		Success:           result.Success,
		Error:             result.Error,
		Algorithm:         result.Algorithm.String(),
		Confidence:        result.Confidence,
		Syndromes:         syndromeOutputs(result.Syndromes),
		ConflictsDetected: result.ModalConflictsDetected,
	}
	if len(result.ModalityWeights) > 0 {
		output.ModalityWeights = make(map[string]float64, len(result.ModalityWeights))
		for m, w := range result.ModalityWeights {
			output.ModalityWeights[m.String()] = w
		}
	}

	return nil, output, nil
}

// handleDifferentiate handles the differentiate_syndromes tool invocation.
func (s *Server) handleDifferentiate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DifferentiateInput,
) (*mcp.CallToolResult, DifferentiateOutput, error) {
	evidence := domain.ReasoningEvidence{
		Syndromes: make([]domain.SyndromeCandidate, len(input.Syndromes)),
		Findings:  findings(input.Findings),
	}
	for i, c := range input.Syndromes {
		evidence.Syndromes[i] = domain.SyndromeCandidate{Name: c.Name, Score: c.Score, Confidence: c.Confidence}
	}

	result, err := s.ports.Reasoning.DifferentiateSyndromes(ctx, evidence)
	if err != nil {
		return nil, DifferentiateOutput{}, err
	}

	output := DifferentiateOutput{
		Success:             result.Success,
		Error:               result.Error,
		Syndromes:           syndromeOutputs(result.Syndromes),
		CoreMechanism:       result.CoreMechanism,
		TreatmentPrinciples: result.TreatmentPrinciples,
	}
	if result.Constitution != nil {
		output.Constitution = result.Constitution.Type.String()
	}

	return nil, output, nil
}

func findings(in []FindingInput) []domain.ModalityFinding {
	out := make([]domain.ModalityFinding, len(in))
	for i, f := range in {
		value := f.Value
		if value == 0 {
			value = 1
		}
		out[i] = domain.ModalityFinding{
			Name:       f.Name,
			Modality:   domain.Modality(f.Modality),
			Value:      value,
			Confidence: f.Confidence,
		}
	}
	return out
}

func syndromeOutputs(candidates []domain.SyndromeCandidate) []SyndromeOutput {
	out := make([]SyndromeOutput, len(candidates))
	for i, c := range candidates {
		out[i] = SyndromeOutput{
			Name:       c.Name,
			Score:      c.Score,
			Confidence: c.Confidence,
			Mechanism:  c.Mechanism,
			Related:    c.Related,
		}
	}
	return out
}
