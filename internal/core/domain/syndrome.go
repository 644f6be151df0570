package domain

import "time"

// SyndromeCategory is the knowledge-base classification of a syndrome.
type SyndromeCategory string

// Syndrome categories, one per differentiation method.
const (
	CategoryEightPrinciples SyndromeCategory = "eight-principles"
	CategoryVisceraBowel    SyndromeCategory = "viscera-and-bowel"
	CategoryQiBloodFluid    SyndromeCategory = "qi-blood-fluid"
	CategoryMeridian        SyndromeCategory = "meridian"
	CategorySixMeridians    SyndromeCategory = "six-meridians"
	CategoryTripleEnergizer SyndromeCategory = "triple-energizer"
	CategoryWeiQiYingBlood  SyndromeCategory = "wei-qi-ying-blood"
)

// IsValid returns true if the category is recognised.
func (c SyndromeCategory) IsValid() bool {
	for _, m := range AllDifferentiationMethods() {
		if m.Category() == c {
			return true
		}
	}
	return false
}

// String returns the string representation.
func (c SyndromeCategory) String() string {
	return string(c)
}

// DifferentiationMethod is one independent classification framework.
type DifferentiationMethod string

// Available differentiation methods.
const (
	MethodEightPrinciples DifferentiationMethod = "eight_principles"
	MethodZangFu          DifferentiationMethod = "zang_fu"
	MethodQiBloodFluid    DifferentiationMethod = "qi_blood_fluid"
	MethodMeridian        DifferentiationMethod = "meridian"
	MethodSixMeridians    DifferentiationMethod = "six_meridians"
	MethodTripleEnergizer DifferentiationMethod = "triple_energizer"
	MethodWeiQiYingBlood  DifferentiationMethod = "wei_qi_ying_blood"
)

// AllDifferentiationMethods returns every method in canonical order.
func AllDifferentiationMethods() []DifferentiationMethod {
	return []DifferentiationMethod{
		MethodEightPrinciples,
		MethodZangFu,
		MethodQiBloodFluid,
		MethodMeridian,
		MethodSixMeridians,
		MethodTripleEnergizer,
		MethodWeiQiYingBlood,
	}
}

// DefaultDifferentiationMethods returns the methods enabled out of the box.
func DefaultDifferentiationMethods() []DifferentiationMethod {
	return []DifferentiationMethod{MethodEightPrinciples, MethodZangFu, MethodQiBloodFluid}
}

// Category returns the syndrome category this method classifies against.
func (m DifferentiationMethod) Category() SyndromeCategory {
	switch m {
	case MethodEightPrinciples:
		return CategoryEightPrinciples
	case MethodZangFu:
		return CategoryVisceraBowel
	case MethodQiBloodFluid:
		return CategoryQiBloodFluid
	case MethodMeridian:
		return CategoryMeridian
	case MethodSixMeridians:
		return CategorySixMeridians
	case MethodTripleEnergizer:
		return CategoryTripleEnergizer
	case MethodWeiQiYingBlood:
		return CategoryWeiQiYingBlood
	default:
		return ""
	}
}

// IsValid returns true if the method is recognised.
func (m DifferentiationMethod) IsValid() bool {
	return m.Category() != ""
}

// String returns the string representation.
func (m DifferentiationMethod) String() string {
	return string(m)
}

// Description returns a human-readable description of the method.
func (m DifferentiationMethod) Description() string {
	switch m {
	case MethodEightPrinciples:
		return "Eight principles (cold/heat, deficiency/excess)"
	case MethodZangFu:
		return "Viscera and bowels"
	case MethodQiBloodFluid:
		return "Qi, blood and body fluids"
	case MethodMeridian:
		return "Meridians and collaterals"
	case MethodSixMeridians:
		return "Six meridians"
	case MethodTripleEnergizer:
		return "Triple energizer"
	case MethodWeiQiYingBlood:
		return "Wei, qi, ying and blood levels"
	default:
		return unknownDescription
	}
}

// SyndromeCandidate is a scored syndrome from fusion or reasoning.
// Candidates are replaced wholesale, never mutated in place once returned.
type SyndromeCandidate struct {
	Name       string            `json:"name"`
	Score      float64           `json:"score"`
	Confidence float64           `json:"confidence"`
	Category   SyndromeCategory  `json:"category,omitempty"`
	Supporting []ModalityFinding `json:"supporting,omitempty"`
	Mechanism  string            `json:"mechanism,omitempty"`
	Related    []string          `json:"related,omitempty"`
}

// FusionAlgorithm selects how findings are combined.
type FusionAlgorithm string

// Available fusion algorithms.
const (
	// FusionWeighted scores findings with adjusted modality weights.
	FusionWeighted FusionAlgorithm = "weighted"

	// FusionAttention re-weights findings by rarity and key-feature status first.
	FusionAttention FusionAlgorithm = "attention"

	// FusionEnsemble merges a global run with one run per modality.
	FusionEnsemble FusionAlgorithm = "ensemble"

	// FusionCrossModal boosts cross-modal agreement and flags conflicts.
	FusionCrossModal FusionAlgorithm = "cross_modal"
)

// AllFusionAlgorithms returns every algorithm.
func AllFusionAlgorithms() []FusionAlgorithm {
	return []FusionAlgorithm{FusionWeighted, FusionAttention, FusionEnsemble, FusionCrossModal}
}

// IsValid returns true if the algorithm is recognised.
func (a FusionAlgorithm) IsValid() bool {
	switch a {
	case FusionWeighted, FusionAttention, FusionEnsemble, FusionCrossModal:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (a FusionAlgorithm) String() string {
	return string(a)
}

// Description returns a human-readable description of the algorithm.
func (a FusionAlgorithm) Description() string {
	switch a {
	case FusionWeighted:
		return "Weighted (modality priors)"
	case FusionAttention:
		return "Attention (rarity and key features)"
	case FusionEnsemble:
		return "Ensemble (global plus per-modality votes)"
	case FusionCrossModal:
		return "Cross-modal (correlation and conflict detection)"
	default:
		return unknownDescription
	}
}

// FusionResult is the output of one fusion invocation.
type FusionResult struct {
	Success                bool                 `json:"success"`
	Error                  string               `json:"error,omitempty"`
	Algorithm              FusionAlgorithm      `json:"algorithm"`
	Syndromes              []SyndromeCandidate  `json:"syndromes"`
	Confidence             float64              `json:"confidence"`
	ModalityWeights        map[Modality]float64 `json:"modality_weights,omitempty"`
	ModalConflictsDetected bool                 `json:"modal_conflicts_detected,omitempty"`
	Duration               time.Duration        `json:"duration"`
}

// Top returns the highest-ranked candidate, or nil when there is none.
func (r *FusionResult) Top() *SyndromeCandidate {
	if r == nil || len(r.Syndromes) == 0 {
		return nil
	}
	return &r.Syndromes[0]
}
