package domain

import "time"

// ConstitutionType is one of the nine canonical body constitutions.
type ConstitutionType string

// Available constitution types.
const (
	ConstitutionBalanced      ConstitutionType = "balanced"
	ConstitutionQiDeficient   ConstitutionType = "qi_deficient"
	ConstitutionYangDeficient ConstitutionType = "yang_deficient"
	ConstitutionYinDeficient  ConstitutionType = "yin_deficient"
	ConstitutionPhlegmDamp    ConstitutionType = "phlegm_damp"
	ConstitutionDampHeat      ConstitutionType = "damp_heat"
	ConstitutionBloodStasis   ConstitutionType = "blood_stasis"
	ConstitutionQiStagnation  ConstitutionType = "qi_stagnation"
	ConstitutionSpecial       ConstitutionType = "special"
)

// AllConstitutionTypes returns the nine constitutions in canonical order.
func AllConstitutionTypes() []ConstitutionType {
	return []ConstitutionType{
		ConstitutionBalanced,
		ConstitutionQiDeficient,
		ConstitutionYangDeficient,
		ConstitutionYinDeficient,
		ConstitutionPhlegmDamp,
		ConstitutionDampHeat,
		ConstitutionBloodStasis,
		ConstitutionQiStagnation,
		ConstitutionSpecial,
	}
}

// IsValid returns true if the constitution type is recognised.
func (c ConstitutionType) IsValid() bool {
	for _, t := range AllConstitutionTypes() {
		if t == c {
			return true
		}
	}
	return false
}

// String returns the string representation.
func (c ConstitutionType) String() string {
	return string(c)
}

// ConstitutionAssessment is the primary constitution selected for a session.
type ConstitutionAssessment struct {
	Type            ConstitutionType `json:"type"`
	Score           float64          `json:"score"`
	Confidence      float64          `json:"confidence"`
	MatchedFeatures []string         `json:"matched_features,omitempty"`
	Traits          []string         `json:"traits,omitempty"`
	Recommendations []string         `json:"recommendations,omitempty"`
}

// ReasoningEvidence is the input to differentiation.
// Syndromes are usually the fused candidates; Findings may carry raw
// per-modality evidence in addition to or instead of them.
type ReasoningEvidence struct {
	Syndromes       []SyndromeCandidate  `json:"syndromes"`
	ModalityWeights map[Modality]float64 `json:"modality_weights,omitempty"`
	Findings        []ModalityFinding    `json:"findings,omitempty"`
}

// IsEmpty returns true if there is nothing to reason over.
func (e ReasoningEvidence) IsEmpty() bool {
	return len(e.Syndromes) == 0 && len(e.Findings) == 0
}

// MethodResult is the raw output of one differentiation method.
type MethodResult struct {
	Method    DifferentiationMethod `json:"method"`
	Syndromes []SyndromeCandidate   `json:"syndromes"`
}

// ReasoningResult is the reconciled output of all enabled methods.
type ReasoningResult struct {
	Success             bool                    `json:"success"`
	Error               string                  `json:"error,omitempty"`
	Methods             []MethodResult          `json:"methods"`
	Syndromes           []SyndromeCandidate     `json:"syndromes"`
	Constitution        *ConstitutionAssessment `json:"constitution,omitempty"`
	CoreMechanism       string                  `json:"core_mechanism,omitempty"`
	TreatmentPrinciples []string                `json:"treatment_principles,omitempty"`
	Duration            time.Duration           `json:"duration"`
}
