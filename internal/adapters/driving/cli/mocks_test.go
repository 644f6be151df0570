package cli

import (
	"context"
	"time"

	"github.com/custodia-labs/sizhen/internal/adapters/driving/tui"
	"github.com/custodia-labs/sizhen/internal/core/domain"
)

// mockDiagnosisService is a mock implementation of driving.DiagnosisService.
type mockDiagnosisService struct {
	report   *domain.DiagnosisReport
	progress *domain.DiagnosisProgress
	reports  []domain.DiagnosisReport
	err      error

	lastRequest domain.DiagnosisRequest
}

func (m *mockDiagnosisService) GenerateReport(_ context.Context, req domain.DiagnosisRequest) (*domain.DiagnosisReport, error) {
	m.lastRequest = req
	return m.report, m.err
}

func (m *mockDiagnosisService) GetProgress(_ context.Context, userID, sessionID string) (*domain.DiagnosisProgress, error) {
	if m.progress == nil && m.err == nil {
		return domain.NewDiagnosisProgress(userID, sessionID), nil
	}
	return m.progress, m.err
}

func (m *mockDiagnosisService) GetReport(_ context.Context, _ string) (*domain.DiagnosisReport, error) {
	return m.report, m.err
}

func (m *mockDiagnosisService) ListReports(_ context.Context, _, _ string) ([]domain.DiagnosisReport, error) {
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
	algorithm domain.FusionAlgorithm,
) (*domain.FusionResult, error) {
	m.lastAlgorithm = algorithm
	return m.result, m.err
}

// mockReasoningService is a mock implementation of driving.ReasoningService.
type mockReasoningService struct {
	result *domain.ReasoningResult
	err    error

	lastEvidence domain.ReasoningEvidence
}

func (m *mockReasoningService) DifferentiateSyndromes(
	_ context.Context,
	evidence domain.ReasoningEvidence,
) (*domain.ReasoningResult, error) {
	m.lastEvidence = evidence
	return m.result, m.err
}

func (m *mockReasoningService) TreatmentPrinciples(_ []domain.SyndromeCandidate) []string {
	return nil
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings domain.AppSettings
	keys     []string
	values   map[string]string
	secrets  map[string]bool
	err      error

	setKey   string
	setValue string
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{
		settings: domain.DefaultAppSettings(),
		keys:     []string{"fusion.algorithm", "backends.api_key", "backends.look_url"},
		values: map[string]string{
			"fusion.algorithm": "weighted",
			"backends.api_key": "sk-1234567890abcdef",
		},
		secrets: map[string]bool{"backends.api_key": true},
	}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &m.settings, nil
}

func (m *mockSettingsService) Save(_ *domain.AppSettings) error {
	return m.err
}

func (m *mockSettingsService) Set(key, value string) error {
	m.setKey = key
	m.setValue = value
	return m.err
}

func (m *mockSettingsService) Keys() []string {
	return m.keys
}

func (m *mockSettingsService) IsSecret(key string) bool {
	return m.secrets[key]
}

func (m *mockSettingsService) Display(_ *domain.AppSettings, key string) string {
	return m.values[key]
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func testReport() *domain.DiagnosisReport {
	return &domain.DiagnosisReport{
		ID:            "report-1",
		UserID:        "user-1",
		SessionID:     "session-1",
		Status:        domain.StatusDone,
		StatusMessage: domain.MessageDone,
		ModalityResults: map[domain.Modality]*domain.AnalysisResult{
			domain.ModalityInquiry: {
				Modality:   domain.ModalityInquiry,
				Confidence: 0.8,
				Features:   []domain.AnalysisFeature{{Name: "fatigue", Value: 1, Confidence: 0.8}},
			},
		},
		ModalityErrors:    map[domain.Modality]string{domain.ModalityLook: "look back-end timed out"},
		SkippedModalities: []domain.Modality{domain.ModalityListen},
		Syndromes: []domain.SyndromeCandidate{
			{Name: domain.SyndromeQiDeficiency, Score: 1.4, Confidence: 0.82, Mechanism: "qi fails to propel"},
		},
		Constitution:    &domain.ConstitutionAssessment{Type: domain.ConstitutionQiDeficient, Confidence: 0.7},
		CoreMechanism:   "qi fails to propel",
		Recommendations: []string{"tonify qi"},
		Summary:         "qi deficiency",
		Confidence:      0.78,
		CreatedAt:       time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

// setupTestServices installs mocks and returns a cleanup that restores
// the previous services and resets command flags.
func setupTestServices() (*mockDiagnosisService, *mockFusionService, *mockReasoningService, *mockSettingsService, func()) {
	oldDiagnosis, oldFusion, oldReasoning, oldSettings := diagnosisService, fusionService, reasoningService, settingsService
	oldKnowledge, oldBreakers := knowledgeBase, breakerRegistry

	diagnosis := &mockDiagnosisService{report: testReport()}
	fusion := &mockFusionService{}
	reasoning := &mockReasoningService{}
	settings := newMockSettingsService()

	SetServices(Services{
		Diagnosis: diagnosis,
		Fusion:    fusion,
		Reasoning: reasoning,
		Settings:  settings,
		Knowledge: domain.DefaultKnowledgeBase(),
	})

	return diagnosis, fusion, reasoning, settings, func() {
		diagnosisService, fusionService, reasoningService, settingsService = oldDiagnosis, oldFusion, oldReasoning, oldSettings
		knowledgeBase, breakerRegistry = oldKnowledge, oldBreakers
		resetFlags()
	}
}

func resetFlags() {
	diagnoseInput, diagnoseAlgorithm, diagnoseJSON = "", "", false
	fuseInput, fuseAlgorithm, fuseJSON = "", "", false
	differentiateInput, differentiateJSON = "", false
	progressJSON, reportJSON = false, false
	settingsSecret = false
	watchInterval = tui.DefaultInterval
	rootCmd.SetArgs(nil)
	rootCmd.SetIn(nil)
}
