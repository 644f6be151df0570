package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"

	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driving"
	"github.com/custodia-labs/sizhen/internal/logger"
)

// Ensure FusionEngine implements the interface.
var _ driving.FusionService = (*FusionEngine)(nil)

// Weights used for the off-modality entries of an isolated ensemble run.
const (
	isolatedModalityWeight = 1.0
	isolatedOtherWeight    = 0.1
)

// FusionEngine combines modality findings into ranked syndrome candidates.
// It holds no mutable state and is safe for concurrent use.
type FusionEngine struct {
	kb  *domain.KnowledgeBase
	cfg domain.FusionSettings
}

// NewFusionEngine creates a fusion engine over a knowledge base.
func NewFusionEngine(kb *domain.KnowledgeBase, cfg domain.FusionSettings) *FusionEngine {
	return &FusionEngine{kb: kb, cfg: cfg}
}

// contribution is one finding's share of a syndrome score.
type contribution struct {
	finding domain.ModalityFinding
	value   float64
}

// syndromeScore is the pre-refinement score of one matched syndrome.
type syndromeScore struct {
	def        domain.SyndromeDefinition
	score      float64
	confidence float64
	supporting []contribution
}

// FuseFindings fuses raw findings. Modality confidence is the mean
// confidence of each modality's findings.
func (e *FusionEngine) FuseFindings(
	ctx context.Context,
	findings []domain.ModalityFinding,
	algorithm domain.FusionAlgorithm,
) (*domain.FusionResult, error) {
	alg, err := e.resolveAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.fuse(findings, nil, alg), nil
}

// FuseResults fuses normalised back-end results. Each result's own
// confidence is used as its modality confidence.
func (e *FusionEngine) FuseResults(
	ctx context.Context,
	results []domain.AnalysisResult,
	algorithm domain.FusionAlgorithm,
) (*domain.FusionResult, error) {
	alg, err := e.resolveAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var findings []domain.ModalityFinding
	reported := make(map[domain.Modality][]float64)
	for _, r := range results {
		findings = append(findings, r.Findings()...)
		reported[r.Modality] = append(reported[r.Modality], r.Confidence)
	}
	modalityConfidence := make(map[domain.Modality]float64, len(reported))
	for m, confs := range reported {
		mean, err := stats.Mean(confs)
		if err != nil {
			continue
		}
		modalityConfidence[m] = mean
	}

	return e.fuse(findings, modalityConfidence, alg), nil
}

func (e *FusionEngine) resolveAlgorithm(a domain.FusionAlgorithm) (domain.FusionAlgorithm, error) {
	if a == "" {
		a = e.cfg.Algorithm
	}
	if !a.IsValid() {
		return "", fmt.Errorf("%w: fusion algorithm %q", domain.ErrUnsupportedType, a)
	}
	return a, nil
}

// fuse runs the extraction, weighting, scoring and refinement pipeline.
func (e *FusionEngine) fuse(
	findings []domain.ModalityFinding,
	modalityConfidence map[domain.Modality]float64,
	alg domain.FusionAlgorithm,
) *domain.FusionResult {
	start := time.Now()
	result := &domain.FusionResult{
		Algorithm: alg,
		Syndromes: []domain.SyndromeCandidate{},
	}
	defer func() {
		result.Duration = time.Since(start)
	}()

	if len(findings) == 0 {
		result.Error = "no findings to fuse"
		return result
	}

	extracted := e.extract(findings)
	weights := e.modalityWeights(extracted, modalityConfidence)
	result.ModalityWeights = weights

	switch alg {
	case domain.FusionAttention:
		result.Syndromes, result.Confidence = e.attention(extracted, weights)
	case domain.FusionEnsemble:
		result.Syndromes, result.Confidence = e.ensemble(extracted, weights)
	case domain.FusionCrossModal:
		result.Syndromes, result.Confidence, result.ModalConflictsDetected = e.crossModal(extracted, weights)
	default:
		result.Syndromes, result.Confidence, _ = e.weighted(extracted, weights)
	}
	result.Success = true

	logger.Debug("fusion %s: %d findings, %d extracted, %d candidates, confidence %.3f",
		alg, len(findings), len(extracted), len(result.Syndromes), result.Confidence)
	return result
}

// extract keeps findings at or above the confidence threshold and copies
// them with their modality's prior as base weight.
func (e *FusionEngine) extract(findings []domain.ModalityFinding) []domain.ModalityFinding {
	priors := e.cfg.Priors()
	out := make([]domain.ModalityFinding, 0, len(findings))
	for _, f := range findings {
		if f.Confidence < e.cfg.ConfidenceThreshold || !f.Modality.IsValid() {
			continue
		}
		f.Confidence = domain.ClampConfidence(f.Confidence)
		f.Weight = priors[f.Modality]
		out = append(out, f)
	}
	return out
}

// modalityWeights adjusts each reporting modality's prior by its confidence
// and finding count, then normalises all four to sum to 1.
func (e *FusionEngine) modalityWeights(
	findings []domain.ModalityFinding,
	modalityConfidence map[domain.Modality]float64,
) map[domain.Modality]float64 {
	counts := make(map[domain.Modality]int)
	confs := make(map[domain.Modality][]float64)
	for _, f := range findings {
		counts[f.Modality]++
		confs[f.Modality] = append(confs[f.Modality], f.Confidence)
	}

	priors := e.cfg.Priors()
	weights := make(map[domain.Modality]float64, len(priors))
	for _, m := range domain.AllModalities() {
		w := priors[m]
		conf, reported := modalityConfidence[m]
		if !reported && counts[m] > 0 {
			conf, _ = stats.Mean(confs[m])
			reported = true
		}
		if reported {
			switch {
			case conf > e.cfg.HighConfidence:
				w *= e.cfg.HighConfidenceBoost
			case conf < e.cfg.LowConfidence:
				w *= e.cfg.LowConfidencePenalty
			}
			if counts[m] < e.cfg.MinFindingsPerModality {
				w *= e.cfg.SparsePenalty
			}
		}
		weights[m] = w
	}
	return normalizeModalityWeights(weights)
}

// normalizeModalityWeights scales the weights to sum to 1.
func normalizeModalityWeights(weights map[domain.Modality]float64) map[domain.Modality]float64 {
	modalities := domain.AllModalities()
	vals := make([]float64, len(modalities))
	for i, m := range modalities {
		vals[i] = weights[m]
	}
	total := floats.Sum(vals)
	if total <= 0 {
		return weights
	}
	floats.Scale(1/total, vals)
	out := make(map[domain.Modality]float64, len(modalities))
	for i, m := range modalities {
		out[m] = vals[i]
	}
	return out
}

// score matches findings against every syndrome in the knowledge base.
func (e *FusionEngine) score(
	findings []domain.ModalityFinding,
	weights map[domain.Modality]float64,
) []syndromeScore {
	var out []syndromeScore
	for _, def := range e.kb.Syndromes() {
		matched := make(map[string]struct{})
		var sum float64
		var confs []float64
		var supporting []contribution
		for _, f := range findings {
			pw, ok := def.PatternWeight(f.Name)
			if !ok {
				continue
			}
			c := f.Weight * weights[f.Modality] * pw
			sum += c
			confs = append(confs, f.Confidence)
			supporting = append(supporting, contribution{finding: f, value: c})
			matched[f.Name] = struct{}{}
		}
		if len(matched) == 0 {
			continue
		}

		ratio := float64(len(matched)) / float64(len(def.Features))
		avg, _ := stats.Mean(confs)
		out = append(out, syndromeScore{
			def:        def,
			score:      sum * ratio,
			confidence: domain.ClampConfidence(avg * ratio),
			supporting: supporting,
		})
	}
	return out
}

// weighted scores findings, keeps candidates at or above the score floor and
// normalises their confidences to sum to 1. The raw scores are returned for
// algorithms that inspect them further.
func (e *FusionEngine) weighted(
	findings []domain.ModalityFinding,
	weights map[domain.Modality]float64,
) ([]domain.SyndromeCandidate, float64, []syndromeScore) {
	scored := e.score(findings, weights)

	var kept []syndromeScore
	var total float64
	for _, s := range scored {
		if s.score >= e.cfg.MinScore {
			kept = append(kept, s)
			total += s.confidence
		}
	}

	candidates := make([]domain.SyndromeCandidate, 0, len(kept))
	for _, s := range kept {
		conf := s.confidence
		if total > 0 {
			conf /= total
		}
		candidates = append(candidates, domain.SyndromeCandidate{
			Name:       s.def.Name,
			Score:      s.score,
			Confidence: domain.ClampConfidence(conf),
			Category:   s.def.Category,
			Supporting: topSupporting(s.supporting, e.cfg.SupportingLimit),
			Mechanism:  s.def.Mechanism,
		})
	}
	sortCandidates(candidates)
	return candidates, overallConfidence(candidates), scored
}

// attention re-weights each finding by confidence, rarity and key-feature
// status before weighted fusion, then blends in a coherence score.
func (e *FusionEngine) attention(
	findings []domain.ModalityFinding,
	weights map[domain.Modality]float64,
) ([]domain.SyndromeCandidate, float64) {
	if len(findings) == 0 {
		candidates, conf, _ := e.weighted(findings, weights)
		return candidates, conf
	}

	counts := make(map[string]int)
	maxCount := 0
	for _, f := range findings {
		counts[f.Name]++
		if counts[f.Name] > maxCount {
			maxCount = counts[f.Name]
		}
	}

	att := make([]float64, len(findings))
	for i, f := range findings {
		rarity := 1 - float64(counts[f.Name])/float64(maxCount)*0.5
		a := f.Confidence * (1 + rarity)
		if e.kb.IsKeyFeature(f.Name) {
			a *= e.cfg.KeyFeatureBoost
		}
		att[i] = a
	}
	if total := floats.Sum(att); total > 0 {
		floats.Scale(1/total, att)
	}

	reweighted := make([]domain.ModalityFinding, len(findings))
	for i, f := range findings {
		f.Weight *= 0.5 + att[i]
		reweighted[i] = f
	}

	candidates, conf, _ := e.weighted(reweighted, weights)
	if len(candidates) == 0 {
		return candidates, conf
	}
	return candidates, domain.ClampConfidence((conf + e.coherence(candidates)) / 2)
}

// coherence scores how strongly the top two candidates read as one pattern.
func (e *FusionEngine) coherence(candidates []domain.SyndromeCandidate) float64 {
	if len(candidates) < 2 {
		return 1.0
	}
	first, second := candidates[0], candidates[1]
	if e.kb.Coherent(first.Name, second.Name) {
		return 0.9
	}
	if first.Score <= 0 {
		return 0.7
	}
	switch ratio := second.Score / first.Score; {
	case ratio < 0.5:
		return 0.95
	case ratio < 0.8:
		return 0.8
	default:
		return 0.7
	}
}

// ensembleEntry accumulates one syndrome across ensemble runs.
type ensembleEntry struct {
	candidate  domain.SyndromeCandidate
	score      float64
	confidence float64
	votes      int
}

// ensemble merges a global weighted run with one isolated run per modality.
func (e *FusionEngine) ensemble(
	findings []domain.ModalityFinding,
	weights map[domain.Modality]float64,
) ([]domain.SyndromeCandidate, float64) {
	entries := make(map[string]*ensembleEntry)
	var order []string
	add := func(candidates []domain.SyndromeCandidate, factor float64) {
		for _, c := range candidates {
			entry, ok := entries[c.Name]
			if !ok {
				entry = &ensembleEntry{candidate: c}
				entries[c.Name] = entry
				order = append(order, c.Name)
			}
			entry.score += c.Score * factor
			entry.confidence = math.Max(entry.confidence, c.Confidence)
			entry.votes++
		}
	}

	global, _, _ := e.weighted(findings, weights)
	add(global, e.cfg.EnsembleGlobalWeight)

	byModality := make(map[domain.Modality][]domain.ModalityFinding)
	for _, f := range findings {
		byModality[f.Modality] = append(byModality[f.Modality], f)
	}
	for _, m := range domain.AllModalities() {
		subset := byModality[m]
		if len(subset) == 0 {
			continue
		}
		isolated, _, _ := e.weighted(subset, isolatedWeights(m))
		add(isolated, 1)
	}

	candidates := make([]domain.SyndromeCandidate, 0, len(order))
	for _, name := range order {
		entry := entries[name]
		votes := entry.votes
		if votes > e.cfg.EnsembleMaxVotes {
			votes = e.cfg.EnsembleMaxVotes
		}
		c := entry.candidate
		c.Score = entry.score * (1 + e.cfg.EnsembleVoteBoost*float64(votes))
		c.Confidence = domain.ClampConfidence(entry.confidence)
		candidates = append(candidates, c)
	}
	sortCandidates(candidates)
	return candidates, overallConfidence(candidates)
}

// isolatedWeights favours one modality for an ensemble run.
func isolatedWeights(focus domain.Modality) map[domain.Modality]float64 {
	weights := make(map[domain.Modality]float64)
	for _, m := range domain.AllModalities() {
		weights[m] = isolatedOtherWeight
	}
	weights[focus] = isolatedModalityWeight
	return normalizeModalityWeights(weights)
}

// crossModal boosts findings corroborated by other modalities and flags
// modalities whose preferred syndrome disagrees with the overall winner.
func (e *FusionEngine) crossModal(
	findings []domain.ModalityFinding,
	weights map[domain.Modality]float64,
) ([]domain.SyndromeCandidate, float64, bool) {
	boosted := make([]domain.ModalityFinding, len(findings))
	for i, f := range findings {
		var corr float64
		n := 0
		for _, g := range findings {
			if g.Modality == f.Modality || !e.kb.SupportSameSyndrome(f.Name, g.Name) {
				continue
			}
			corr += e.kb.Correlation(f.Modality, g.Modality)
			n++
		}
		if n > 0 {
			f.Weight *= 1 + corr/float64(n)*e.cfg.CrossModalBoost
		}
		boosted[i] = f
	}

	candidates, conf, scored := e.weighted(boosted, weights)
	if len(candidates) == 0 {
		return candidates, conf, false
	}

	top := candidates[0].Name
	conflict := false
	for _, m := range domain.AllModalities() {
		preferred, ok := preferredSyndrome(scored, m, top)
		if ok && preferred != top {
			conflict = true
			logger.Debug("fusion cross_modal: %s prefers %s over %s", m, preferred, top)
			break
		}
	}
	if conflict {
		conf = math.Max(0, conf-e.cfg.ConflictPenalty)
	}
	return candidates, conf, conflict
}

// preferredSyndrome returns the syndrome a modality's findings support most.
// Ties resolve in favour of top.
func preferredSyndrome(scored []syndromeScore, m domain.Modality, top string) (string, bool) {
	best := ""
	bestValue := 0.0
	for _, s := range scored {
		var v float64
		for _, c := range s.supporting {
			if c.finding.Modality == m {
				v += c.value
			}
		}
		if v <= 0 {
			continue
		}
		if v > bestValue || (v == bestValue && s.def.Name == top) {
			best, bestValue = s.def.Name, v
		}
	}
	return best, best != ""
}

// topSupporting returns the findings with the largest contributions.
func topSupporting(contribs []contribution, limit int) []domain.ModalityFinding {
	sorted := append([]contribution(nil), contribs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].value != sorted[j].value {
			return sorted[i].value > sorted[j].value
		}
		return sorted[i].finding.Name < sorted[j].finding.Name
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]domain.ModalityFinding, len(sorted))
	for i, c := range sorted {
		out[i] = c.finding
	}
	return out
}

// sortCandidates orders by score descending, then name.
func sortCandidates(candidates []domain.SyndromeCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Name < candidates[j].Name
	})
}

// overallConfidence is the mean confidence of the top three candidates.
func overallConfidence(candidates []domain.SyndromeCandidate) float64 {
	n := len(candidates)
	if n > 3 {
		n = 3
	}
	confs := make([]float64, n)
	for i := 0; i < n; i++ {
		confs[i] = candidates[i].Confidence
	}
	mean, err := stats.Mean(confs)
	if err != nil {
		return 0
	}
	return domain.ClampConfidence(mean)
}
