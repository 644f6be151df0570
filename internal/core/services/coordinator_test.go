package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sizhen/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driven"
	"github.com/custodia-labs/sizhen/internal/core/ports/driving"
	"github.com/custodia-labs/sizhen/internal/resilience"
)

// --- Test doubles ---

// concurrencyTracker records the peak number of in-flight analyzer calls.
type concurrencyTracker struct {
	current atomic.Int32
	peak    atomic.Int32
}

func (c *concurrencyTracker) enter() {
	n := c.current.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (c *concurrencyTracker) leave() {
	c.current.Add(-1)
}

// fakeAnalyzer implements driven.ModalityAnalyzer for testing.
type fakeAnalyzer struct {
	modality domain.Modality
	result   *domain.AnalysisResult
	err      error
	delay    time.Duration
	tracker  *concurrencyTracker
	calls    atomic.Int32
	lastKind atomic.Value
}

func (f *fakeAnalyzer) Modality() domain.Modality { return f.modality }

func (f *fakeAnalyzer) Analyze(
	ctx context.Context,
	payload domain.ModalityPayload,
	_ string,
	_ bool,
	_ map[string]string,
) (*domain.AnalysisResult, error) {
	f.calls.Add(1)
	f.lastKind.Store(payload.Kind)
	if f.tracker != nil {
		f.tracker.enter()
		defer f.tracker.leave()
	}
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	return &r, nil
}

// failingFusion implements driving.FusionService and always fails.
type failingFusion struct {
	calls atomic.Int32
}

func (f *failingFusion) FuseFindings(context.Context, []domain.ModalityFinding, domain.FusionAlgorithm) (*domain.FusionResult, error) {
	f.calls.Add(1)
	return nil, errors.New("fusion backend exploded")
}

func (f *failingFusion) FuseResults(context.Context, []domain.AnalysisResult, domain.FusionAlgorithm) (*domain.FusionResult, error) {
	f.calls.Add(1)
	return nil, errors.New("fusion backend exploded")
}

// failingReasoning implements driving.ReasoningService and always fails.
type failingReasoning struct{}

func (failingReasoning) DifferentiateSyndromes(context.Context, domain.ReasoningEvidence) (*domain.ReasoningResult, error) {
	return nil, errors.New("reasoning backend exploded")
}

func (failingReasoning) TreatmentPrinciples([]domain.SyndromeCandidate) []string { return nil }

// --- Fixtures ---

func analysisResult(m domain.Modality, features ...domain.AnalysisFeature) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		AnalysisID: "analysis-" + m.String(),
		Modality:   m,
		Confidence: 0.88,
		Features:   features,
		Detail:     domain.ModalityDetail{Kind: domain.DefaultDetailKind(m)},
	}
}

func feature(name string, confidence float64) domain.AnalysisFeature {
	return domain.AnalysisFeature{Name: name, Value: 1, Confidence: confidence}
}

func testAnalyzers() map[domain.Modality]*fakeAnalyzer {
	return map[domain.Modality]*fakeAnalyzer{
		domain.ModalityLook: {modality: domain.ModalityLook, result: analysisResult(domain.ModalityLook,
			feature("purple_tongue", 0.9), feature("dark_complexion", 0.85))},
		domain.ModalityListen: {modality: domain.ModalityListen, result: analysisResult(domain.ModalityListen,
			feature("low_voice", 0.8))},
		domain.ModalityInquiry: {modality: domain.ModalityInquiry, result: analysisResult(domain.ModalityInquiry,
			feature("fatigue", 0.9), feature("shortness_of_breath", 0.9), feature("spontaneous_sweating", 0.9))},
		domain.ModalityPalpation: {modality: domain.ModalityPalpation, result: analysisResult(domain.ModalityPalpation,
			feature("choppy_pulse", 0.9), feature("knotted_pulse", 0.85))},
	}
}

func testCoordinatorSettings() domain.CoordinatorSettings {
	cfg := domain.DefaultAppSettings().Coordinator
	for _, ms := range []*domain.ModalitySettings{&cfg.Look, &cfg.Listen, &cfg.Inquiry, &cfg.Palpation} {
		ms.Enabled = true
		ms.Timeout = time.Second
	}
	cfg.Breaker = domain.BreakerSettings{FailureThreshold: 3, CoolDown: time.Minute}
	cfg.Retry = domain.RetrySettings{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffMultiplier: 2, MaxBackoff: 5 * time.Millisecond}
	cfg.LongRetry = domain.RetrySettings{MaxAttempts: 2, BackoffBase: time.Millisecond, BackoffMultiplier: 2, MaxBackoff: 5 * time.Millisecond}
	return cfg
}

type coordinatorFixture struct {
	coordinator *Coordinator
	analyzers   map[domain.Modality]*fakeAnalyzer
	progress    *memory.ProgressStore
	reports     *memory.ReportStore
}

func newCoordinatorFixture(
	cfg domain.CoordinatorSettings,
	analyzers map[domain.Modality]*fakeAnalyzer,
	fusion *failingFusion,
	reasoning *failingReasoning,
) *coordinatorFixture {
	list := make([]driven.ModalityAnalyzer, 0, len(analyzers))
	for _, a := range analyzers {
		list = append(list, a)
	}
	f := &coordinatorFixture{
		analyzers: analyzers,
		progress:  memory.NewProgressStore(),
		reports:   memory.NewReportStore(),
	}

	var fusionSvc driving.FusionService = newTestFusionEngine()
	if fusion != nil {
		fusionSvc = fusion
	}
	var reasoningSvc driving.ReasoningService = newTestReasoningEngine()
	if reasoning != nil {
		reasoningSvc = reasoning
	}
	f.coordinator = NewCoordinator(list, fusionSvc, reasoningSvc, f.progress, f.reports, nil, cfg)
	return f
}

func fullRequest() domain.DiagnosisRequest {
	req := domain.DiagnosisRequest{
		UserID:    "user-1",
		SessionID: "session-1",
		Include:   make(map[domain.Modality]bool),
		Payloads:  make(map[domain.Modality]domain.ModalityPayload),
	}
	for _, m := range domain.AllModalities() {
		req.Include[m] = true
		req.Payloads[m] = domain.ModalityPayload{Data: []byte("sample " + m.String())}
	}
	return req
}

func onlyRequest(modalities ...domain.Modality) domain.DiagnosisRequest {
	req := fullRequest()
	req.Include = make(map[domain.Modality]bool)
	for _, m := range modalities {
		req.Include[m] = true
	}
	return req
}

// --- Tests ---

func TestCoordinator_GenerateReport_AllModalities(t *testing.T) {
	f := newCoordinatorFixture(testCoordinatorSettings(), testAnalyzers(), nil, nil)
	ctx := context.Background()

	report, err := f.coordinator.GenerateReport(ctx, fullRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDone, report.Status)
	assert.Equal(t, domain.MessageDone, report.StatusMessage)
	assert.NotEmpty(t, report.ID)
	assert.Len(t, report.ModalityResults, 4)
	assert.Empty(t, report.ModalityErrors)
	require.NotNil(t, report.Fusion)
	assert.True(t, report.Fusion.Success)
	assert.Equal(t, domain.FusionWeighted, report.Fusion.Algorithm)
	fused := candidateNames(report.Fusion.Syndromes)
	assert.Contains(t, fused, domain.SyndromeBloodStasis)
	assert.Contains(t, fused, domain.SyndromeQiDeficiency)
	assert.Empty(t, report.Syndromes, "split weighted confidences stay below the differentiation threshold")
	require.NotNil(t, report.Constitution)
	assert.Equal(t, domain.ConstitutionBloodStasis, report.Constitution.Type)
	assert.NotEmpty(t, report.Summary)
	assert.NotEmpty(t, report.Recommendations)
	assert.GreaterOrEqual(t, report.Confidence, 0.0)
	assert.LessOrEqual(t, report.Confidence, 1.0)

	progress, err := f.coordinator.GetProgress(ctx, "user-1", "session-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, progress.Status)
	assert.InDelta(t, 1.0, progress.OverallProgress, 1e-9)
	assert.True(t, progress.FusionCompleted)
	assert.True(t, progress.ReasoningCompleted)
	for _, m := range domain.AllModalities() {
		assert.True(t, progress.ModalityCompleted(m), m)
	}

	stored, err := f.coordinator.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.ID, stored.ID)
	assert.Equal(t, domain.StatusDone, stored.Status)
}

// TestCoordinator_GenerateReport_WeightedSplitBelowThreshold tests that the
// weighted algorithm splits confidence between two equally supported
// candidates and neither clears the differentiation threshold
func TestCoordinator_GenerateReport_WeightedSplitBelowThreshold(t *testing.T) {
	f := newCoordinatorFixture(testCoordinatorSettings(), testAnalyzers(), nil, nil)
	threshold := domain.DefaultAppSettings().Reasoning.ConfidenceThreshold

	report, err := f.coordinator.GenerateReport(context.Background(), fullRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDone, report.Status)
	require.NotNil(t, report.Fusion)
	require.Len(t, report.Fusion.Syndromes, 2)
	for _, c := range report.Fusion.Syndromes {
		assert.Less(t, c.Confidence, threshold, c.Name)
	}
	assert.Empty(t, report.Syndromes)
	assert.Contains(t, report.Summary, "no syndrome reached the differentiation threshold")
}

// TestCoordinator_GenerateReport_EnsembleAlgorithm tests the requested
// algorithm reaches fusion and its candidates survive differentiation
func TestCoordinator_GenerateReport_EnsembleAlgorithm(t *testing.T) {
	f := newCoordinatorFixture(testCoordinatorSettings(), testAnalyzers(), nil, nil)
	req := fullRequest()
	req.Algorithm = domain.FusionEnsemble

	report, err := f.coordinator.GenerateReport(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDone, report.Status)
	assert.Equal(t, domain.FusionEnsemble, report.Fusion.Algorithm)
	assert.Equal(t, []string{domain.SyndromeQiDeficiency, domain.SyndromeBloodStasis}, candidateNames(report.Syndromes))
	assert.Contains(t, report.CoreMechanism, "blood flow impeded")
	assert.Contains(t, report.Recommendations, "tonify qi")
	assert.Contains(t, report.Summary, "primary syndrome "+domain.SyndromeQiDeficiency)
}

// TestCoordinator_GenerateReport_SingleModality tests one usable modality is
// insufficient data with the raw result kept
func TestCoordinator_GenerateReport_SingleModality(t *testing.T) {
	f := newCoordinatorFixture(testCoordinatorSettings(), testAnalyzers(), nil, nil)

	report, err := f.coordinator.GenerateReport(context.Background(), onlyRequest(domain.ModalityLook))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusInsufficientData, report.Status)
	assert.Contains(t, report.StatusMessage, domain.MessageInsufficientData)
	assert.Contains(t, report.StatusMessage, "need at least 2")
	require.NotNil(t, report.ModalityResults[domain.ModalityLook])
	assert.Len(t, report.ModalityResults[domain.ModalityLook].Features, 2)
	assert.Nil(t, report.Fusion)
	assert.Empty(t, report.Syndromes)
	assert.Nil(t, report.Constitution)

	for _, m := range []domain.Modality{domain.ModalityListen, domain.ModalityInquiry, domain.ModalityPalpation} {
		assert.Zero(t, f.analyzers[m].calls.Load(), "%s not requested", m)
	}

	progress, err := f.coordinator.GetProgress(context.Background(), "user-1", "session-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInsufficientData, progress.Status)
	assert.InDelta(t, 1.0, progress.OverallProgress, 1e-9)
}

// TestCoordinator_GenerateReport_TimeoutOpensBreaker tests a slow back-end
// trips its breaker and later requests fail fast without it
func TestCoordinator_GenerateReport_TimeoutOpensBreaker(t *testing.T) {
	cfg := testCoordinatorSettings()
	cfg.Listen.Timeout = 10 * time.Millisecond
	analyzers := testAnalyzers()
	analyzers[domain.ModalityListen].delay = time.Second
	f := newCoordinatorFixture(cfg, analyzers, nil, nil)
	listen := analyzers[domain.ModalityListen]

	report, err := f.coordinator.GenerateReport(context.Background(), fullRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDone, report.Status)
	assert.Len(t, report.ModalityResults, 3)
	assert.Contains(t, report.ModalityErrors[domain.ModalityListen], domain.ErrModalityUnavailable.Error())
	assert.Equal(t, int32(3), listen.calls.Load())
	assert.Equal(t, resilience.StateOpen, f.coordinator.breakers.Get(domain.ModalityListen.String()).State())

	start := time.Now()
	second, err := f.coordinator.GenerateReport(context.Background(), fullRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDone, second.Status)
	assert.Contains(t, second.ModalityErrors[domain.ModalityListen], resilience.ErrCircuitOpen.Error())
	assert.Equal(t, int32(3), listen.calls.Load(), "open breaker skips the back-end")
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	for _, m := range []domain.Modality{domain.ModalityLook, domain.ModalityInquiry, domain.ModalityPalpation} {
		assert.NotNil(t, second.ModalityResults[m], m)
	}
}

func TestCoordinator_GenerateReport_TransientFailureRetried(t *testing.T) {
	analyzers := testAnalyzers()
	inquiry := analyzers[domain.ModalityInquiry]
	inquiry.err = errors.New("connection reset")
	f := newCoordinatorFixture(testCoordinatorSettings(), analyzers, nil, nil)

	report, err := f.coordinator.GenerateReport(context.Background(), fullRequest())
	require.NoError(t, err)

	assert.Equal(t, int32(3), inquiry.calls.Load())
	assert.Contains(t, report.ModalityErrors[domain.ModalityInquiry], "connection reset")
	assert.Equal(t, domain.StatusDone, report.Status)
}

func TestCoordinator_GenerateReport_DisabledModality(t *testing.T) {
	cfg := testCoordinatorSettings()
	cfg.Listen.Enabled = false
	f := newCoordinatorFixture(cfg, testAnalyzers(), nil, nil)

	report, err := f.coordinator.GenerateReport(context.Background(), fullRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDone, report.Status)
	assert.Equal(t, []domain.Modality{domain.ModalityListen}, report.SkippedModalities)
	assert.NotContains(t, report.ModalityResults, domain.ModalityListen)
	assert.Zero(t, f.analyzers[domain.ModalityListen].calls.Load())

	progress, _ := f.coordinator.GetProgress(context.Background(), "user-1", "session-1")
	assert.NotContains(t, progress.Expected, domain.ModalityListen)
}

func TestCoordinator_GenerateReport_AllDisabled(t *testing.T) {
	cfg := testCoordinatorSettings()
	cfg.Look.Enabled = false
	f := newCoordinatorFixture(cfg, testAnalyzers(), nil, nil)

	report, err := f.coordinator.GenerateReport(context.Background(), onlyRequest(domain.ModalityLook))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusInsufficientData, report.Status)
	assert.Equal(t, domain.MessageNoServices, report.StatusMessage)
}

func TestCoordinator_GenerateReport_MissingAnalyzer(t *testing.T) {
	analyzers := testAnalyzers()
	delete(analyzers, domain.ModalityPalpation)
	f := newCoordinatorFixture(testCoordinatorSettings(), analyzers, nil, nil)

	report, err := f.coordinator.GenerateReport(context.Background(), fullRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDone, report.Status)
	assert.Contains(t, report.ModalityErrors[domain.ModalityPalpation], "no analyzer configured")
}

func TestCoordinator_GenerateReport_EmptyResultNotUsable(t *testing.T) {
	analyzers := testAnalyzers()
	analyzers[domain.ModalityInquiry].result = analysisResult(domain.ModalityInquiry)
	f := newCoordinatorFixture(testCoordinatorSettings(), analyzers, nil, nil)

	report, err := f.coordinator.GenerateReport(context.Background(),
		onlyRequest(domain.ModalityLook, domain.ModalityInquiry))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusInsufficientData, report.Status)
	assert.NotNil(t, report.ModalityResults[domain.ModalityInquiry])
}

func TestCoordinator_GenerateReport_DefaultPayloadKind(t *testing.T) {
	f := newCoordinatorFixture(testCoordinatorSettings(), testAnalyzers(), nil, nil)

	_, err := f.coordinator.GenerateReport(context.Background(), fullRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.DetailTongue, f.analyzers[domain.ModalityLook].lastKind.Load())
	assert.Equal(t, domain.DetailPulse, f.analyzers[domain.ModalityPalpation].lastKind.Load())
}

func TestCoordinator_GenerateReport_Sequential(t *testing.T) {
	cfg := testCoordinatorSettings()
	cfg.Mode = domain.CoordinationSequential
	analyzers := testAnalyzers()
	tracker := &concurrencyTracker{}
	for _, a := range analyzers {
		a.tracker = tracker
		a.delay = 5 * time.Millisecond
	}
	f := newCoordinatorFixture(cfg, analyzers, nil, nil)

	report, err := f.coordinator.GenerateReport(context.Background(), fullRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDone, report.Status)
	assert.Equal(t, int32(1), tracker.peak.Load())
}

func TestCoordinator_GenerateReport_Parallel(t *testing.T) {
	analyzers := testAnalyzers()
	tracker := &concurrencyTracker{}
	for _, a := range analyzers {
		a.tracker = tracker
		a.delay = 50 * time.Millisecond
	}
	f := newCoordinatorFixture(testCoordinatorSettings(), analyzers, nil, nil)

	_, err := f.coordinator.GenerateReport(context.Background(), fullRequest())
	require.NoError(t, err)

	assert.Greater(t, tracker.peak.Load(), int32(1))
}

// TestCoordinator_GenerateReport_FusionFailure tests a fusion fault degrades
// the report instead of failing the call
func TestCoordinator_GenerateReport_FusionFailure(t *testing.T) {
	fusion := &failingFusion{}
	f := newCoordinatorFixture(testCoordinatorSettings(), testAnalyzers(), fusion, nil)

	report, err := f.coordinator.GenerateReport(context.Background(), fullRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, report.Status)
	assert.Equal(t, domain.MessageFusionDegraded, report.StatusMessage)
	assert.Len(t, report.ModalityResults, 4)
	assert.Nil(t, report.Fusion)
	assert.Equal(t, int32(2), fusion.calls.Load(), "long-running retry policy")

	stored, err := f.coordinator.GetReport(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
}

func TestCoordinator_GenerateReport_ReasoningFailure(t *testing.T) {
	f := newCoordinatorFixture(testCoordinatorSettings(), testAnalyzers(), nil, &failingReasoning{})

	report, err := f.coordinator.GenerateReport(context.Background(), fullRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, report.Status)
	assert.Equal(t, domain.MessageReasoningDegraded, report.StatusMessage)
	require.NotNil(t, report.Fusion)
	assert.Equal(t, report.Fusion.Syndromes, report.Syndromes)
	assert.InDelta(t, report.Fusion.Confidence, report.Confidence, 1e-9)
	assert.Nil(t, report.Constitution)

	progress, _ := f.coordinator.GetProgress(context.Background(), "user-1", "session-1")
	assert.Equal(t, domain.StatusFailed, progress.Status)
	assert.True(t, progress.FusionCompleted)
	assert.False(t, progress.ReasoningCompleted)
}

// TestCoordinator_GenerateReport_Cancelled tests cancellation returns the
// partial report and leaves nothing stored
func TestCoordinator_GenerateReport_Cancelled(t *testing.T) {
	analyzers := testAnalyzers()
	for _, a := range analyzers {
		a.delay = 5 * time.Second
	}
	f := newCoordinatorFixture(testCoordinatorSettings(), analyzers, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	report, err := f.coordinator.GenerateReport(ctx, fullRequest())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
	require.NotNil(t, report)
	assert.Equal(t, domain.StatusFailed, report.Status)
	assert.Equal(t, domain.MessageCancelled, report.StatusMessage)

	reports, err := f.coordinator.ListReports(context.Background(), "user-1", "session-1")
	require.NoError(t, err)
	assert.Empty(t, reports)

	progress, _ := f.coordinator.GetProgress(context.Background(), "user-1", "session-1")
	assert.Equal(t, domain.StatusFailed, progress.Status)
	assert.Equal(t, domain.MessageCancelled, progress.StatusMessage)

	for _, m := range domain.AllModalities() {
		assert.Equal(t, resilience.StateClosed, f.coordinator.breakers.Get(m.String()).State(), "%s breaker untouched", m)
	}
}

func TestCoordinator_GenerateReport_InvalidRequest(t *testing.T) {
	f := newCoordinatorFixture(testCoordinatorSettings(), testAnalyzers(), nil, nil)
	req := fullRequest()
	req.UserID = ""

	report, err := f.coordinator.GenerateReport(context.Background(), req)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, report)
}

func TestCoordinator_GetProgress_UnknownSession(t *testing.T) {
	f := newCoordinatorFixture(testCoordinatorSettings(), testAnalyzers(), nil, nil)

	progress, err := f.coordinator.GetProgress(context.Background(), "nobody", "nothing")

	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, progress.Status)
	assert.Zero(t, progress.OverallProgress)
	assert.Equal(t, domain.MessageWaiting, progress.StatusMessage)
}

func TestCoordinator_ListReports_NewestFirst(t *testing.T) {
	f := newCoordinatorFixture(testCoordinatorSettings(), testAnalyzers(), nil, nil)
	ctx := context.Background()

	first, err := f.coordinator.GenerateReport(ctx, fullRequest())
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := f.coordinator.GenerateReport(ctx, fullRequest())
	require.NoError(t, err)

	reports, err := f.coordinator.ListReports(ctx, "user-1", "session-1")
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, second.ID, reports[0].ID)
	assert.Equal(t, first.ID, reports[1].ID)
}
