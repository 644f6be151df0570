package domain

import (
	"fmt"
	"sort"
)

// PatternFeature is one defining feature of a syndrome with its pattern weight.
type PatternFeature struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// SyndromeDefinition is a knowledge-base entry for one syndrome.
type SyndromeDefinition struct {
	Name                string           `json:"name"`
	Category            SyndromeCategory `json:"category"`
	Features            []PatternFeature `json:"features"`
	Mechanism           string           `json:"mechanism,omitempty"`
	Opposing            []string         `json:"opposing,omitempty"`
	Related             []string         `json:"related,omitempty"`
	TreatmentPrinciples []string         `json:"treatment_principles,omitempty"`
}

// PatternWeight returns the weight of a defining feature.
func (d SyndromeDefinition) PatternWeight(feature string) (float64, bool) {
	for _, f := range d.Features {
		if f.Name == feature {
			return f.Weight, true
		}
	}
	return 0, false
}

// ConstitutionDefinition is a knowledge-base entry for one constitution type.
type ConstitutionDefinition struct {
	Type                ConstitutionType `json:"type"`
	Traits              []string         `json:"traits"`
	Features            []string         `json:"features"`
	Recommendations     []string         `json:"recommendations"`
	CorrelatedSyndromes []string         `json:"correlated_syndromes,omitempty"`
}

// ModalityCorrelation is one off-diagonal entry of the correlation table.
type ModalityCorrelation struct {
	A     Modality `json:"a"`
	B     Modality `json:"b"`
	Value float64  `json:"value"`
}

// DefaultCorrelation applies to any off-diagonal modality pair not listed.
const DefaultCorrelation = 0.5

// KnowledgeBase holds the immutable tables shared by fusion and reasoning.
// Build it with NewKnowledgeBase; it is safe for concurrent reads.
type KnowledgeBase struct {
	syndromes     []SyndromeDefinition
	constitutions []ConstitutionDefinition
	keyFeatures   map[string]struct{}
	coherent      map[[2]string]struct{}
	correlations  map[[2]Modality]float64

	byName           map[string]int
	byConstitution   map[ConstitutionType]int
	featureSyndromes map[string]map[string]struct{}
}

// NewKnowledgeBase validates and indexes the given tables.
// Dangling opposing/related/correlated references and unknown categories
// are reported as ErrInvalidInput.
func NewKnowledgeBase(
	syndromes []SyndromeDefinition,
	constitutions []ConstitutionDefinition,
	keyFeatures []string,
	coherentPairs [][2]string,
	correlations []ModalityCorrelation,
) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{
		syndromes:        append([]SyndromeDefinition(nil), syndromes...),
		constitutions:    append([]ConstitutionDefinition(nil), constitutions...),
		keyFeatures:      make(map[string]struct{}, len(keyFeatures)),
		coherent:         make(map[[2]string]struct{}, len(coherentPairs)),
		correlations:     make(map[[2]Modality]float64, len(correlations)*2),
		byName:           make(map[string]int, len(syndromes)),
		byConstitution:   make(map[ConstitutionType]int, len(constitutions)),
		featureSyndromes: make(map[string]map[string]struct{}),
	}

	for i, s := range kb.syndromes {
		if s.Name == "" {
			return nil, fmt.Errorf("%w: syndrome %d has no name", ErrInvalidInput, i)
		}
		if _, dup := kb.byName[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate syndrome %q", ErrInvalidInput, s.Name)
		}
		if !s.Category.IsValid() {
			return nil, fmt.Errorf("%w: syndrome %q has unknown category %q", ErrInvalidInput, s.Name, s.Category)
		}
		if len(s.Features) == 0 {
			return nil, fmt.Errorf("%w: syndrome %q has no features", ErrInvalidInput, s.Name)
		}
		kb.byName[s.Name] = i
		for _, f := range s.Features {
			if f.Weight <= 0 {
				return nil, fmt.Errorf("%w: syndrome %q feature %q needs a positive weight", ErrInvalidInput, s.Name, f.Name)
			}
			if kb.featureSyndromes[f.Name] == nil {
				kb.featureSyndromes[f.Name] = make(map[string]struct{})
			}
			kb.featureSyndromes[f.Name][s.Name] = struct{}{}
		}
	}

	for _, s := range kb.syndromes {
		for _, ref := range append(append([]string(nil), s.Opposing...), s.Related...) {
			if _, ok := kb.byName[ref]; !ok {
				return nil, fmt.Errorf("%w: syndrome %q references unknown syndrome %q", ErrInvalidInput, s.Name, ref)
			}
		}
	}

	for i, c := range kb.constitutions {
		if !c.Type.IsValid() {
			return nil, fmt.Errorf("%w: unknown constitution type %q", ErrInvalidInput, c.Type)
		}
		if _, dup := kb.byConstitution[c.Type]; dup {
			return nil, fmt.Errorf("%w: duplicate constitution %q", ErrInvalidInput, c.Type)
		}
		for _, ref := range c.CorrelatedSyndromes {
			if _, ok := kb.byName[ref]; !ok {
				return nil, fmt.Errorf("%w: constitution %q references unknown syndrome %q", ErrInvalidInput, c.Type, ref)
			}
		}
		kb.byConstitution[c.Type] = i
	}
	if _, ok := kb.byConstitution[ConstitutionBalanced]; !ok {
		return nil, fmt.Errorf("%w: the balanced constitution is required", ErrInvalidInput)
	}

	for _, f := range keyFeatures {
		kb.keyFeatures[f] = struct{}{}
	}
	for _, p := range coherentPairs {
		kb.coherent[pairKey(p[0], p[1])] = struct{}{}
	}
	for _, c := range correlations {
		if !c.A.IsValid() || !c.B.IsValid() {
			return nil, fmt.Errorf("%w: correlation between %q and %q", ErrInvalidInput, c.A, c.B)
		}
		if c.Value < 0 || c.Value > 1 {
			return nil, fmt.Errorf("%w: correlation %s/%s must be within [0,1]", ErrInvalidInput, c.A, c.B)
		}
		kb.correlations[[2]Modality{c.A, c.B}] = c.Value
		kb.correlations[[2]Modality{c.B, c.A}] = c.Value
	}

	return kb, nil
}

// Syndromes returns every syndrome definition in table order.
func (kb *KnowledgeBase) Syndromes() []SyndromeDefinition {
	return kb.syndromes
}

// Syndrome looks up a syndrome by name.
func (kb *KnowledgeBase) Syndrome(name string) (SyndromeDefinition, bool) {
	i, ok := kb.byName[name]
	if !ok {
		return SyndromeDefinition{}, false
	}
	return kb.syndromes[i], true
}

// SyndromesByCategory returns the syndromes tagged with a category.
func (kb *KnowledgeBase) SyndromesByCategory(c SyndromeCategory) []SyndromeDefinition {
	var out []SyndromeDefinition
	for _, s := range kb.syndromes {
		if s.Category == c {
			out = append(out, s)
		}
	}
	return out
}

// Constitutions returns every constitution definition in table order.
func (kb *KnowledgeBase) Constitutions() []ConstitutionDefinition {
	return kb.constitutions
}

// Constitution looks up a constitution definition by type.
func (kb *KnowledgeBase) Constitution(t ConstitutionType) (ConstitutionDefinition, bool) {
	i, ok := kb.byConstitution[t]
	if !ok {
		return ConstitutionDefinition{}, false
	}
	return kb.constitutions[i], true
}

// IsKeyFeature reports whether a feature is on the key diagnostic list.
func (kb *KnowledgeBase) IsKeyFeature(name string) bool {
	_, ok := kb.keyFeatures[name]
	return ok
}

// KeyFeatures returns the key diagnostic features, sorted.
func (kb *KnowledgeBase) KeyFeatures() []string {
	out := make([]string, 0, len(kb.keyFeatures))
	for f := range kb.keyFeatures {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Coherent reports whether two syndromes are known to co-occur as one pattern.
func (kb *KnowledgeBase) Coherent(a, b string) bool {
	_, ok := kb.coherent[pairKey(a, b)]
	return ok
}

// Opposes reports whether the knowledge graph marks a and b as opposing.
func (kb *KnowledgeBase) Opposes(a, b string) bool {
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		def, ok := kb.Syndrome(pair[0])
		if !ok {
			continue
		}
		for _, o := range def.Opposing {
			if o == pair[1] {
				return true
			}
		}
	}
	return false
}

// Correlation returns the modality-pair correlation.
// The diagonal is 1; unlisted pairs use DefaultCorrelation.
func (kb *KnowledgeBase) Correlation(a, b Modality) float64 {
	if a == b {
		return 1.0
	}
	if v, ok := kb.correlations[[2]Modality{a, b}]; ok {
		return v
	}
	return DefaultCorrelation
}

// SupportSameSyndrome reports whether two features both define some syndrome.
func (kb *KnowledgeBase) SupportSameSyndrome(f1, f2 string) bool {
	s1, s2 := kb.featureSyndromes[f1], kb.featureSyndromes[f2]
	for name := range s1 {
		if _, ok := s2[name]; ok {
			return true
		}
	}
	return false
}

// pairKey returns an order-independent key for a syndrome pair.
func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}
