package gateway

import (
	"context"

	"github.com/custodia-labs/sizhen/internal/core/domain"
)

// mockDiagnosisService is a mock implementation of driving.DiagnosisService.
type mockDiagnosisService struct {
	report  *domain.DiagnosisReport
	reports []domain.DiagnosisReport
	err     error

	lastRequest domain.DiagnosisRequest
	lastUser    string
	lastSession string
}

func (m *mockDiagnosisService) GenerateReport(_ context.Context, req domain.DiagnosisRequest) (*domain.DiagnosisReport, error) {
	m.lastRequest = req
	return m.report, m.err
}

func (m *mockDiagnosisService) GetProgress(_ context.Context, userID, sessionID string) (*domain.DiagnosisProgress, error) {
	m.lastUser, m.lastSession = userID, sessionID
	if m.err != nil {
		return nil, m.err
	}
	return domain.NewDiagnosisProgress(userID, sessionID), nil
}

func (m *mockDiagnosisService) GetReport(_ context.Context, id string) (*domain.DiagnosisReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.report == nil || m.report.ID != id {
		return nil, domain.ErrNotFound
	}
	return m.report, nil
}

func (m *mockDiagnosisService) ListReports(_ context.Context, userID, sessionID string) ([]domain.DiagnosisReport, error) {
	m.lastUser, m.lastSession = userID, sessionID
	return m.reports, m.err
}

// mockFusionService is a mock implementation of driving.FusionService.
type mockFusionService struct {
	result *domain.FusionResult
	err    error

	lastFindings  []domain.ModalityFinding
	lastAlgorithm domain.FusionAlgorithm
}

func (m *mockFusionService) FuseFindings(
	_ context.Context,
	findings []domain.ModalityFinding,
	algorithm domain.FusionAlgorithm,
) (*domain.FusionResult, error) {
	m.lastFindings = findings
	m.lastAlgorithm = algorithm
	return m.result, m.err
}

func (m *mockFusionService) FuseResults(
	_ context.Context,
	_ []domain.AnalysisResult,
	_ domain.FusionAlgorithm,
) (*domain.FusionResult, error) {
	return m.result, m.err
}

// mockReasoningService is a mock implementation of driving.ReasoningService.
type mockReasoningService struct {
	result *domain.ReasoningResult
	err    error
}

func (m *mockReasoningService) DifferentiateSyndromes(
	_ context.Context,
	_ domain.ReasoningEvidence,
) (*domain.ReasoningResult, error) {
	return m.result, m.err
}

func (m *mockReasoningService) TreatmentPrinciples(_ []domain.SyndromeCandidate) []string {
	return nil
}
