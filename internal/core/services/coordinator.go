package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driven"
	"github.com/custodia-labs/sizhen/internal/core/ports/driving"
	"github.com/custodia-labs/sizhen/internal/logger"
	"github.com/custodia-labs/sizhen/internal/resilience"
)

// Ensure Coordinator implements the interface.
var _ driving.DiagnosisService = (*Coordinator)(nil)

// Breaker names for the non-modality stages. Modality breakers use the modality name.
const (
	breakerFusion    = "fusion"
	breakerReasoning = "reasoning"
	breakerNarrator  = "narrator"
)

// Coordinator runs end-to-end diagnoses: it fans out to the modality
// analyzers, fuses and reasons over whatever arrived, and assembles the report.
type Coordinator struct {
	analyzers map[domain.Modality]driven.ModalityAnalyzer
	fusion    driving.FusionService
	reasoning driving.ReasoningService
	progress  driven.ProgressStore
	reports   driven.ReportStore
	breakers  *resilience.Registry
	narrator  *Narrator
	cfg       domain.CoordinatorSettings
}

// CoordinatorOption configures optional coordinator behaviour.
type CoordinatorOption func(*Coordinator)

// WithNarrator has completed reports summarised by a language model.
// The template summary is kept when narration fails.
func WithNarrator(n *Narrator) CoordinatorOption {
	return func(c *Coordinator) {
		c.narrator = n
	}
}

// NewCoordinator creates a diagnosis coordinator.
// If breakers is nil a registry is built from cfg.Breaker.
func NewCoordinator(
	analyzers []driven.ModalityAnalyzer,
	fusion driving.FusionService,
	reasoning driving.ReasoningService,
	progress driven.ProgressStore,
	reports driven.ReportStore,
	breakers *resilience.Registry,
	cfg domain.CoordinatorSettings,
	opts ...CoordinatorOption,
) *Coordinator {
	byModality := make(map[domain.Modality]driven.ModalityAnalyzer, len(analyzers))
	for _, a := range analyzers {
		byModality[a.Modality()] = a
	}
	if breakers == nil {
		breakers = resilience.NewRegistry(resilience.BreakerConfig{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			CoolDown:         cfg.Breaker.CoolDown,
		})
	}
	c := &Coordinator{
		analyzers: byModality,
		fusion:    fusion,
		reasoning: reasoning,
		progress:  progress,
		reports:   reports,
		breakers:  breakers,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// modalityOutcome is the settled result of one back-end call.
type modalityOutcome struct {
	modality domain.Modality
	result   *domain.AnalysisResult
	err      error
}

// GenerateReport runs one diagnosis. Only malformed requests and
// cancellation of ctx are returned as errors; a cancelled request still
// returns the partial report.
//
//nolint:gocyclo // Orchestration function with necessary sequential stages
func (c *Coordinator) GenerateReport(ctx context.Context, req domain.DiagnosisRequest) (*domain.DiagnosisReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	report := &domain.DiagnosisReport{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		SessionID:       req.SessionID,
		Status:          domain.StatusPending,
		ModalityResults: make(map[domain.Modality]*domain.AnalysisResult),
		ModalityErrors:  make(map[domain.Modality]string),
		Syndromes:       []domain.SyndromeCandidate{},
		CreatedAt:       start,
	}
	session := domain.SessionKey(req.UserID, req.SessionID)
	logger.Section("Diagnosis " + session)

	// 1. Select modalities
	var expected []domain.Modality
	for _, m := range req.RequestedModalities() {
		if !c.cfg.Modality(m).Enabled {
			logger.Info("diagnosis %s: %s disabled, skipping", session, m)
			report.SkippedModalities = append(report.SkippedModalities, m)
			continue
		}
		expected = append(expected, m)
	}
	c.updateProgress(ctx, req, func(p *domain.DiagnosisProgress) {
		p.Reset(expected)
		p.Recalculate()
	})

	if len(expected) == 0 {
		report.Summary = domain.MessageNoServices
		return c.finish(ctx, req, report, start, domain.StatusInsufficientData, domain.MessageNoServices), nil
	}

	// 2. Fan out and collect
	for _, o := range c.fanOut(ctx, req, expected) {
		if o.err != nil {
			report.ModalityErrors[o.modality] = o.err.Error()
			continue
		}
		report.ModalityResults[o.modality] = o.result
	}
	if err := ctx.Err(); err != nil {
		return c.cancelled(ctx, req, report, start), err
	}

	var usable []domain.AnalysisResult
	for _, m := range expected {
		if r := report.ModalityResults[m]; r.IsUsable() {
			usable = append(usable, *r)
		}
	}
	if len(usable) < c.cfg.MinModalities {
		msg := domain.MessageInsufficientData + ": " + fmt.Sprintf(domain.MessageNeedTwoModalities, c.cfg.MinModalities)
		logger.Warn("diagnosis %s: %d usable results, need %d", session, len(usable), c.cfg.MinModalities)
		report.Summary = fmt.Sprintf("%s (received %d)", msg, len(usable))
		return c.finish(ctx, req, report, start, domain.StatusInsufficientData, msg), nil
	}

	// 3. Fuse
	c.updateProgress(ctx, req, func(p *domain.DiagnosisProgress) {
		p.Transition(domain.StatusFusing, domain.MessageFusing)
	})
	fusion, err := resilience.Call(ctx, c.breakers.Get(breakerFusion), retryPolicy(c.cfg.LongRetry),
		func(ctx context.Context) (*domain.FusionResult, error) {
			r, err := c.fusion.FuseResults(ctx, usable, req.Algorithm)
			if err != nil {
				if errors.Is(err, domain.ErrUnsupportedType) {
					return nil, resilience.Permanent(err)
				}
				return nil, err
			}
			if !r.Success {
				return nil, fmt.Errorf("%w: %s", domain.ErrFusionFailed, r.Error)
			}
			return r, nil
		})
	if err != nil {
		if ctx.Err() != nil {
			return c.cancelled(ctx, req, report, start), ctx.Err()
		}
		logger.Warn("diagnosis %s: fusion failed: %v", session, err)
		report.Summary = domain.MessageFusionDegraded + ": " + err.Error()
		return c.finish(ctx, req, report, start, domain.StatusFailed, domain.MessageFusionDegraded), nil
	}
	report.Fusion = fusion
	c.updateProgress(ctx, req, func(p *domain.DiagnosisProgress) {
		p.FusionCompleted = true
		p.Transition(domain.StatusReasoning, domain.MessageReasoning)
	})

	// 4. Reason
	evidence := domain.ReasoningEvidence{
		Syndromes:       fusion.Syndromes,
		ModalityWeights: fusion.ModalityWeights,
	}
	for _, r := range usable {
		evidence.Findings = append(evidence.Findings, r.Findings()...)
	}
	reasoned, err := resilience.Call(ctx, c.breakers.Get(breakerReasoning), retryPolicy(c.cfg.LongRetry),
		func(ctx context.Context) (*domain.ReasoningResult, error) {
			r, err := c.reasoning.DifferentiateSyndromes(ctx, evidence)
			if err != nil {
				return nil, err
			}
			if !r.Success {
				return nil, fmt.Errorf("%w: %s", domain.ErrReasoningFailed, r.Error)
			}
			return r, nil
		})
	if err != nil {
		if ctx.Err() != nil {
			return c.cancelled(ctx, req, report, start), ctx.Err()
		}
		logger.Warn("diagnosis %s: reasoning failed: %v", session, err)
		report.Syndromes = fusion.Syndromes
		report.Confidence = fusion.Confidence
		report.Summary = domain.MessageReasoningDegraded + ": " + fusionSummary(fusion)
		return c.finish(ctx, req, report, start, domain.StatusFailed, domain.MessageReasoningDegraded), nil
	}

	// 5. Assemble
	report.Syndromes = reasoned.Syndromes
	report.Constitution = reasoned.Constitution
	report.CoreMechanism = reasoned.CoreMechanism
	report.Recommendations = recommendations(reasoned)
	report.Confidence = reportConfidence(fusion, reasoned)
	report.Summary = reasoningSummary(reasoned)
	if c.narrator != nil {
		text, err := c.narrate(ctx, report)
		switch {
		case ctx.Err() != nil:
			return c.cancelled(ctx, req, report, start), ctx.Err()
		case err != nil:
			logger.Warn("diagnosis %s: narration failed, keeping template summary: %v", session, err)
		default:
			report.Summary = text
		}
	}
	c.updateProgress(ctx, req, func(p *domain.DiagnosisProgress) {
		p.ReasoningCompleted = true
	})
	return c.finish(ctx, req, report, start, domain.StatusDone, domain.MessageDone), nil
}

// GetProgress returns a session's progress, or a fresh zero-progress
// record if the session has none.
func (c *Coordinator) GetProgress(ctx context.Context, userID, sessionID string) (*domain.DiagnosisProgress, error) {
	p, err := c.progress.Get(ctx, userID, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewDiagnosisProgress(userID, sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return p, nil
}

// GetReport retrieves a stored report.
func (c *Coordinator) GetReport(ctx context.Context, id string) (*domain.DiagnosisReport, error) {
	return c.reports.Get(ctx, id)
}

// ListReports returns a session's stored reports, newest first.
func (c *Coordinator) ListReports(ctx context.Context, userID, sessionID string) ([]domain.DiagnosisReport, error) {
	return c.reports.ListBySession(ctx, userID, sessionID)
}

// fanOut calls every modality and waits for all of them to settle.
// Failures are collected per modality, never propagated.
func (c *Coordinator) fanOut(ctx context.Context, req domain.DiagnosisRequest, modalities []domain.Modality) []modalityOutcome {
	outcomes := make([]modalityOutcome, len(modalities))
	var g errgroup.Group
	if c.cfg.Mode == domain.CoordinationSequential {
		g.SetLimit(1)
	}

	for i, m := range modalities {
		g.Go(func() error {
			result, err := c.callModality(ctx, req, m)
			outcomes[i] = modalityOutcome{modality: m, result: result, err: err}
			if err != nil {
				logger.Warn("diagnosis %s: %s failed: %v", domain.SessionKey(req.UserID, req.SessionID), m, err)
				return nil
			}
			logger.Debug("diagnosis %s: %s returned %d features", domain.SessionKey(req.UserID, req.SessionID), m, len(result.Features))
			c.updateProgress(ctx, req, func(p *domain.DiagnosisProgress) {
				p.MarkModality(m)
				p.Recalculate()
			})
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// callModality calls one analyzer under its breaker, retry policy and timeout.
func (c *Coordinator) callModality(ctx context.Context, req domain.DiagnosisRequest, m domain.Modality) (*domain.AnalysisResult, error) {
	analyzer, ok := c.analyzers[m]
	if !ok {
		return nil, fmt.Errorf("%w: no analyzer configured for %s", domain.ErrModalityUnavailable, m)
	}
	payload := req.Payloads[m]
	if payload.Kind == "" {
		payload.Kind = domain.DefaultDetailKind(m)
	}

	result, err := resilience.Call(ctx, c.breakers.Get(m.String()), retryPolicy(c.cfg.Retry),
		func(ctx context.Context) (*domain.AnalysisResult, error) {
			r, err := analyzer.Analyze(ctx, payload, req.UserID, req.ApplyPreprocessing, req.Metadata)
			if err != nil {
				return nil, err
			}
			if r == nil {
				return nil, fmt.Errorf("%s returned no result", m)
			}
			return r, nil
		},
		resilience.WithAttemptTimeout(c.cfg.Modality(m).Timeout),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrModalityUnavailable, err)
	}
	if result.Modality == "" {
		result.Modality = m
	}
	return result, nil
}

// narrate makes one attempt under the narrator breaker.
func (c *Coordinator) narrate(ctx context.Context, report *domain.DiagnosisReport) (string, error) {
	return resilience.Call(ctx, c.breakers.Get(breakerNarrator), resilience.RetryPolicy{MaxAttempts: 1},
		func(ctx context.Context) (string, error) {
			return c.narrator.Narrate(ctx, report)
		},
		resilience.WithAttemptTimeout(c.narrator.Timeout()),
	)
}

// finish records the terminal status, persists the report and returns it.
func (c *Coordinator) finish(
	ctx context.Context,
	req domain.DiagnosisRequest,
	report *domain.DiagnosisReport,
	start time.Time,
	status domain.DiagnosisStatus,
	message string,
) *domain.DiagnosisReport {
	report.Status = status
	report.StatusMessage = message
	report.Confidence = domain.ClampConfidence(report.Confidence)
	report.Duration = time.Since(start)

	c.updateProgress(ctx, req, func(p *domain.DiagnosisProgress) {
		p.Transition(status, message)
	})
	if err := c.reports.Save(context.WithoutCancel(ctx), *report); err != nil {
		logger.Error("saving report %s: %v", report.ID, err)
	}
	logger.Info("diagnosis %s: %s in %v", domain.SessionKey(req.UserID, req.SessionID), status, report.Duration)
	return report
}

// cancelled records what completed before cancellation. The report is not stored.
func (c *Coordinator) cancelled(
	ctx context.Context,
	req domain.DiagnosisRequest,
	report *domain.DiagnosisReport,
	start time.Time,
) *domain.DiagnosisReport {
	report.Status = domain.StatusFailed
	report.StatusMessage = domain.MessageCancelled
	report.Summary = domain.MessageCancelled
	report.Duration = time.Since(start)
	c.updateProgress(ctx, req, func(p *domain.DiagnosisProgress) {
		p.Transition(domain.StatusFailed, domain.MessageCancelled)
	})
	logger.Warn("diagnosis %s: cancelled after %v", domain.SessionKey(req.UserID, req.SessionID), report.Duration)
	return report
}

// updateProgress applies fn to the session's progress record. Writes
// survive cancellation of ctx and failures are only logged.
func (c *Coordinator) updateProgress(ctx context.Context, req domain.DiagnosisRequest, fn func(*domain.DiagnosisProgress)) {
	if _, err := c.progress.Update(context.WithoutCancel(ctx), req.UserID, req.SessionID, fn); err != nil {
		logger.Warn("diagnosis %s: progress update failed: %v", domain.SessionKey(req.UserID, req.SessionID), err)
	}
}

func retryPolicy(s domain.RetrySettings) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:       s.MaxAttempts,
		BackoffBase:       s.BackoffBase,
		BackoffMultiplier: s.BackoffMultiplier,
		MaxBackoff:        s.MaxBackoff,
	}
}

// recommendations lists treatment principles, then constitution advice.
func recommendations(r *domain.ReasoningResult) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(items []string) {
		for _, s := range items {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	add(r.TreatmentPrinciples)
	if r.Constitution != nil {
		add(r.Constitution.Recommendations)
	}
	return out
}

// reportConfidence averages fusion confidence with the top reasoned syndrome's.
func reportConfidence(f *domain.FusionResult, r *domain.ReasoningResult) float64 {
	values := []float64{f.Confidence}
	if len(r.Syndromes) > 0 {
		values = append(values, r.Syndromes[0].Confidence)
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return domain.ClampConfidence(mean)
}

func reasoningSummary(r *domain.ReasoningResult) string {
	var b strings.Builder
	if len(r.Syndromes) == 0 {
		b.WriteString("no syndrome reached the differentiation threshold")
	} else {
		names := make([]string, 0, len(r.Syndromes))
		for _, s := range r.Syndromes {
			names = append(names, s.Name)
		}
		fmt.Fprintf(&b, "primary syndrome %s (confidence %.2f)", r.Syndromes[0].Name, r.Syndromes[0].Confidence)
		if len(names) > 1 {
			fmt.Fprintf(&b, ", also %s", strings.Join(names[1:], ", "))
		}
	}
	if r.Constitution != nil {
		fmt.Fprintf(&b, "; constitution %s", r.Constitution.Type)
	}
	if r.CoreMechanism != "" {
		fmt.Fprintf(&b, "; mechanism: %s", r.CoreMechanism)
	}
	return b.String()
}

func fusionSummary(f *domain.FusionResult) string {
	top := f.Top()
	if top == nil {
		return "no fused syndrome candidates"
	}
	return fmt.Sprintf("top fused candidate %s (score %.2f)", top.Name, top.Score)
}
