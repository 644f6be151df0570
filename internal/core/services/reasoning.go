package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driving"
	"github.com/custodia-labs/sizhen/internal/logger"
)

// Ensure ReasoningEngine implements the interface.
var _ driving.ReasoningService = (*ReasoningEngine)(nil)

// Constitution scoring constants.
const (
	constitutionFeatureShare     = 0.7
	constitutionSyndromeShare    = 0.3
	constitutionSyndromeFactor   = 0.2
	constitutionConfidenceSlope  = 0.6
	constitutionConfidenceOffset = 0.3
)

// mechanismSeparator joins the mechanisms of the top syndromes.
const mechanismSeparator = "; "

// ReasoningEngine differentiates syndromes with several independent
// methods and reconciles their outputs. It is safe for concurrent use.
type ReasoningEngine struct {
	kb  *domain.KnowledgeBase
	cfg domain.ReasoningSettings
}

// NewReasoningEngine creates a reasoning engine over a knowledge base.
func NewReasoningEngine(kb *domain.KnowledgeBase, cfg domain.ReasoningSettings) *ReasoningEngine {
	return &ReasoningEngine{kb: kb, cfg: cfg}
}

// DifferentiateSyndromes runs every enabled method and reconciles them.
func (e *ReasoningEngine) DifferentiateSyndromes(
	ctx context.Context,
	evidence domain.ReasoningEvidence,
) (*domain.ReasoningResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &domain.ReasoningResult{
		Methods:   []domain.MethodResult{},
		Syndromes: []domain.SyndromeCandidate{},
	}
	defer func() {
		result.Duration = time.Since(start)
	}()

	if evidence.IsEmpty() {
		result.Error = "no evidence to differentiate"
		return result, nil
	}

	fused := make(map[string]domain.SyndromeCandidate, len(evidence.Syndromes))
	for _, c := range evidence.Syndromes {
		if prev, ok := fused[c.Name]; !ok || c.Score > prev.Score {
			fused[c.Name] = c
		}
	}
	findings := e.evidenceFindings(evidence)

	for _, method := range e.cfg.Methods {
		if !method.IsValid() {
			logger.Warn("reasoning: skipping unknown method %q", method)
			continue
		}
		result.Methods = append(result.Methods, domain.MethodResult{
			Method:    method,
			Syndromes: e.runMethod(method, fused, findings),
		})
	}

	result.Syndromes = e.reconcile(result.Methods)
	result.CoreMechanism = e.coreMechanism(result.Syndromes)
	result.TreatmentPrinciples = e.TreatmentPrinciples(result.Syndromes)
	result.Constitution = e.assessConstitution(findings, evidence.Syndromes, result.Syndromes)
	result.Success = true

	logger.Debug("reasoning: %d methods, %d reconciled syndromes, constitution %s",
		len(result.Methods), len(result.Syndromes), result.Constitution.Type)
	return result, nil
}

// TreatmentPrinciples collects the principles of the given syndromes in
// order, without duplicates.
func (e *ReasoningEngine) TreatmentPrinciples(syndromes []domain.SyndromeCandidate) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, c := range syndromes {
		def, ok := e.kb.Syndrome(c.Name)
		if !ok {
			continue
		}
		for _, p := range def.TreatmentPrinciples {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// evidenceFindings merges the supporting findings of the fused candidates
// with the raw findings, keeping the heaviest copy of each (name, modality).
// Raw findings without a weight take their modality's weight, or 1.
func (e *ReasoningEngine) evidenceFindings(evidence domain.ReasoningEvidence) []domain.ModalityFinding {
	type key struct {
		name     string
		modality domain.Modality
	}
	index := make(map[key]int)
	var out []domain.ModalityFinding

	add := func(f domain.ModalityFinding) {
		if f.Weight <= 0 {
			f.Weight = 1.0
			if w, ok := evidence.ModalityWeights[f.Modality]; ok && w > 0 {
				f.Weight = w
			}
		}
		k := key{f.Name, f.Modality}
		if i, ok := index[k]; ok {
			if f.Weight > out[i].Weight {
				out[i] = f
			}
			return
		}
		index[k] = len(out)
		out = append(out, f)
	}

	for _, c := range evidence.Syndromes {
		for _, f := range c.Supporting {
			add(f)
		}
	}
	for _, f := range evidence.Findings {
		add(f)
	}
	return out
}

// runMethod scores every syndrome of the method's category.
func (e *ReasoningEngine) runMethod(
	method domain.DifferentiationMethod,
	fused map[string]domain.SyndromeCandidate,
	findings []domain.ModalityFinding,
) []domain.SyndromeCandidate {
	out := []domain.SyndromeCandidate{}
	for _, def := range e.kb.SyndromesByCategory(method.Category()) {
		candidate, ok := fused[def.Name]
		if ok {
			candidate.Category = def.Category
			if candidate.Mechanism == "" {
				candidate.Mechanism = def.Mechanism
			}
		} else {
			candidate, ok = e.scoreEvidence(def, findings)
			if !ok {
				continue
			}
		}
		if candidate.Score < e.cfg.MinScore || candidate.Confidence < e.cfg.ConfidenceThreshold {
			continue
		}
		out = append(out, candidate)
	}
	sortCandidates(out)
	return out
}

// scoreEvidence scores a syndrome from scratch against the evidence findings.
func (e *ReasoningEngine) scoreEvidence(
	def domain.SyndromeDefinition,
	findings []domain.ModalityFinding,
) (domain.SyndromeCandidate, bool) {
	matched := make(map[string]struct{})
	var weight float64
	var confs []float64
	var supporting []domain.ModalityFinding
	for _, f := range findings {
		pw, ok := def.PatternWeight(f.Name)
		if !ok {
			continue
		}
		weight += f.Weight * pw
		confs = append(confs, f.Confidence)
		supporting = append(supporting, f)
		matched[f.Name] = struct{}{}
	}
	if len(matched) == 0 {
		return domain.SyndromeCandidate{}, false
	}

	ratio := float64(len(matched)) / float64(len(def.Features))
	avg, _ := stats.Mean(confs)
	return domain.SyndromeCandidate{
		Name:       def.Name,
		Score:      weight * ratio,
		Confidence: domain.ClampConfidence(avg * ratio),
		Category:   def.Category,
		Supporting: supporting,
		Mechanism:  def.Mechanism,
	}, true
}

// reconcile de-duplicates the method outputs by name, drops syndromes
// opposed by a higher-scoring one and annotates related syndromes.
func (e *ReasoningEngine) reconcile(methods []domain.MethodResult) []domain.SyndromeCandidate {
	best := make(map[string]domain.SyndromeCandidate)
	for _, mr := range methods {
		for _, c := range mr.Syndromes {
			if prev, ok := best[c.Name]; ok && prev.Score >= c.Score {
				continue
			}
			best[c.Name] = c
		}
	}

	ranked := make([]domain.SyndromeCandidate, 0, len(best))
	for _, c := range best {
		ranked = append(ranked, c)
	}
	sortCandidates(ranked)

	excluded := make(map[string]bool)
	kept := make([]domain.SyndromeCandidate, 0, len(ranked))
	for i, c := range ranked {
		if excluded[c.Name] {
			continue
		}
		for _, other := range ranked[i+1:] {
			if excluded[other.Name] || !e.kb.Opposes(c.Name, other.Name) {
				continue
			}
			excluded[other.Name] = true
			c.Confidence = domain.ClampConfidence(c.Confidence - e.cfg.OpposingPenalty)
			logger.Debug("reasoning: %s excludes opposing %s", c.Name, other.Name)
		}
		kept = append(kept, c)
	}

	present := make(map[string]struct{}, len(kept))
	for _, c := range kept {
		present[c.Name] = struct{}{}
	}
	for i := range kept {
		kept[i].Related = e.relatedPresent(kept[i].Name, present)
		kept[i].Supporting = heaviestFindings(kept[i].Supporting, e.cfg.EvidenceLimit)
	}
	return kept
}

// relatedPresent lists the knowledge-graph neighbours of name that are
// also in the reconciled result.
func (e *ReasoningEngine) relatedPresent(name string, present map[string]struct{}) []string {
	def, ok := e.kb.Syndrome(name)
	if !ok {
		return nil
	}
	var out []string
	for _, r := range def.Related {
		if _, ok := present[r]; ok && r != name {
			out = append(out, r)
		}
	}
	return out
}

// heaviestFindings returns up to limit findings by weight descending.
func heaviestFindings(findings []domain.ModalityFinding, limit int) []domain.ModalityFinding {
	sorted := append([]domain.ModalityFinding(nil), findings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Weight != sorted[j].Weight {
			return sorted[i].Weight > sorted[j].Weight
		}
		return sorted[i].Name < sorted[j].Name
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// coreMechanism joins the mechanisms of the top reconciled syndromes.
func (e *ReasoningEngine) coreMechanism(syndromes []domain.SyndromeCandidate) string {
	var parts []string
	for _, c := range syndromes {
		if len(parts) == e.cfg.MechanismCount {
			break
		}
		if c.Mechanism != "" {
			parts = append(parts, c.Mechanism)
		}
	}
	return strings.Join(parts, mechanismSeparator)
}

// assessConstitution selects the primary constitution from feature matches
// and correlated syndromes, falling back to balanced.
func (e *ReasoningEngine) assessConstitution(
	findings []domain.ModalityFinding,
	fused, reconciled []domain.SyndromeCandidate,
) *domain.ConstitutionAssessment {
	present := make(map[string]struct{}, len(findings))
	for _, f := range findings {
		present[f.Name] = struct{}{}
	}
	identified := make(map[string]float64)
	for _, list := range [][]domain.SyndromeCandidate{fused, reconciled} {
		for _, c := range list {
			if c.Score > identified[c.Name] {
				identified[c.Name] = c.Score
			}
		}
	}

	var best *domain.ConstitutionAssessment
	for _, def := range e.kb.Constitutions() {
		var matched []string
		for _, feature := range def.Features {
			if _, ok := present[feature]; ok {
				matched = append(matched, feature)
			}
		}
		ratio := 0.0
		if len(def.Features) > 0 {
			ratio = float64(len(matched)) / float64(len(def.Features))
		}
		var correlated float64
		for _, s := range def.CorrelatedSyndromes {
			correlated += constitutionSyndromeFactor * identified[s]
		}

		score := constitutionFeatureShare*ratio + constitutionSyndromeShare*correlated
		if score < e.cfg.ConstitutionFloor {
			continue
		}
		if best != nil && score <= best.Score {
			continue
		}
		best = &domain.ConstitutionAssessment{
			Type:            def.Type,
			Score:           score,
			Confidence:      domain.ClampConfidence(constitutionConfidenceSlope*ratio + constitutionConfidenceOffset),
			MatchedFeatures: matched,
			Traits:          def.Traits,
			Recommendations: def.Recommendations,
		}
	}
	if best != nil {
		return best
	}

	balanced, _ := e.kb.Constitution(domain.ConstitutionBalanced)
	return &domain.ConstitutionAssessment{
		Type:            domain.ConstitutionBalanced,
		Score:           e.cfg.DefaultConstitutionConfidence,
		Confidence:      e.cfg.DefaultConstitutionConfidence,
		Traits:          balanced.Traits,
		Recommendations: balanced.Recommendations,
	}
}
