package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driven"
)

// Ensure KnowledgeStore implements the interface.
var _ driven.KnowledgeSource = (*KnowledgeStore)(nil)

// KnowledgeFileName is the knowledge base file created in the sizhen home.
const KnowledgeFileName = "knowledge.toml"

// KnowledgeStore loads the knowledge base from a TOML file.
// A missing file is created from the built-in tables so it can be edited.
// An empty path always yields the built-in knowledge base.
type KnowledgeStore struct {
	path string

	once sync.Once
	kb   *domain.KnowledgeBase
	err  error
}

// NewKnowledgeStore creates a knowledge store reading from path.
func NewKnowledgeStore(path string) *KnowledgeStore {
	return &KnowledgeStore{path: path}
}

// Path returns the knowledge file path.
func (s *KnowledgeStore) Path() string {
	return s.path
}

// Load reads and validates the knowledge base. The result is cached.
func (s *KnowledgeStore) Load() (*domain.KnowledgeBase, error) {
	s.once.Do(func() {
		s.kb, s.err = s.load()
	})
	return s.kb, s.err
}

func (s *KnowledgeStore) load() (*domain.KnowledgeBase, error) {
	if s.path == "" {
		return domain.DefaultKnowledgeBase(), nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := WriteDefaultKnowledge(s.path); err != nil {
			return nil, err
		}
		return domain.DefaultKnowledgeBase(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}

	var doc knowledgeDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidInput, s.path, err)
	}
	return doc.toKnowledgeBase()
}

// WriteDefaultKnowledge writes the built-in knowledge base to path as TOML.
func WriteDefaultKnowledge(path string) error {
	data, err := toml.Marshal(defaultKnowledgeDocument())
	if err != nil {
		return fmt.Errorf("encode knowledge base: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

type knowledgeDocument struct {
	KeyFeatures   []string            `toml:"key_features"`
	CoherentPairs [][]string          `toml:"coherent_pairs"`
	Correlations  []correlationEntry  `toml:"correlation"`
	Syndromes     []syndromeEntry     `toml:"syndrome"`
	Constitutions []constitutionEntry `toml:"constitution"`
}

type syndromeEntry struct {
	Name                string             `toml:"name"`
	Category            string             `toml:"category"`
	Mechanism           string             `toml:"mechanism,omitempty"`
	Opposing            []string           `toml:"opposing,omitempty"`
	Related             []string           `toml:"related,omitempty"`
	TreatmentPrinciples []string           `toml:"treatment_principles,omitempty"`
	Features            map[string]float64 `toml:"features"`
	FeatureOrder        []string           `toml:"feature_order,omitempty"`
}

type constitutionEntry struct {
	Type                string   `toml:"type"`
	Traits              []string `toml:"traits"`
	Features            []string `toml:"features"`
	Recommendations     []string `toml:"recommendations"`
	CorrelatedSyndromes []string `toml:"correlated_syndromes,omitempty"`
}

type correlationEntry struct {
	A     string  `toml:"a"`
	B     string  `toml:"b"`
	Value float64 `toml:"value"`
}

func defaultKnowledgeDocument() knowledgeDocument {
	doc := knowledgeDocument{KeyFeatures: domain.DefaultKeyFeatures()}
	for _, p := range domain.DefaultCoherentPairs() {
		doc.CoherentPairs = append(doc.CoherentPairs, []string{p[0], p[1]})
	}
	for _, c := range domain.DefaultCorrelations() {
		doc.Correlations = append(doc.Correlations, correlationEntry{A: string(c.A), B: string(c.B), Value: c.Value})
	}
	for _, s := range domain.DefaultSyndromes() {
		entry := syndromeEntry{
			Name:                s.Name,
			Category:            string(s.Category),
			Mechanism:           s.Mechanism,
			Opposing:            s.Opposing,
			Related:             s.Related,
			TreatmentPrinciples: s.TreatmentPrinciples,
			Features:            make(map[string]float64, len(s.Features)),
		}
		for _, f := range s.Features {
			entry.Features[f.Name] = f.Weight
			entry.FeatureOrder = append(entry.FeatureOrder, f.Name)
		}
		doc.Syndromes = append(doc.Syndromes, entry)
	}
	for _, c := range domain.DefaultConstitutions() {
		doc.Constitutions = append(doc.Constitutions, constitutionEntry{
			Type:                string(c.Type),
			Traits:              c.Traits,
			Features:            c.Features,
			Recommendations:     c.Recommendations,
			CorrelatedSyndromes: c.CorrelatedSyndromes,
		})
	}
	return doc
}

func (d knowledgeDocument) toKnowledgeBase() (*domain.KnowledgeBase, error) {
	pairs := make([][2]string, 0, len(d.CoherentPairs))
	for i, p := range d.CoherentPairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("%w: coherent pair %d needs exactly two syndromes", domain.ErrInvalidInput, i)
		}
		pairs = append(pairs, [2]string{p[0], p[1]})
	}

	correlations := make([]domain.ModalityCorrelation, 0, len(d.Correlations))
	for _, c := range d.Correlations {
		a, b := domain.Modality(c.A), domain.Modality(c.B)
		if !a.IsValid() || !b.IsValid() {
			return nil, fmt.Errorf("%w: correlation %s/%s names an unknown modality", domain.ErrInvalidInput, c.A, c.B)
		}
		correlations = append(correlations, domain.ModalityCorrelation{A: a, B: b, Value: c.Value})
	}

	syndromes := make([]domain.SyndromeDefinition, 0, len(d.Syndromes))
	for _, s := range d.Syndromes {
		syndromes = append(syndromes, domain.SyndromeDefinition{
			Name:                s.Name,
			Category:            domain.SyndromeCategory(s.Category),
			Features:            s.patternFeatures(),
			Mechanism:           s.Mechanism,
			Opposing:            s.Opposing,
			Related:             s.Related,
			TreatmentPrinciples: s.TreatmentPrinciples,
		})
	}

	constitutions := make([]domain.ConstitutionDefinition, 0, len(d.Constitutions))
	for _, c := range d.Constitutions {
		constitutions = append(constitutions, domain.ConstitutionDefinition{
			Type:                domain.ConstitutionType(c.Type),
			Traits:              c.Traits,
			Features:            c.Features,
			Recommendations:     c.Recommendations,
			CorrelatedSyndromes: c.CorrelatedSyndromes,
		})
	}

	return domain.NewKnowledgeBase(syndromes, constitutions, d.KeyFeatures, pairs, correlations)
}

// patternFeatures keeps feature_order first so hand edits that drop it
// still load; features missing from the order follow in name order.
func (s syndromeEntry) patternFeatures() []domain.PatternFeature {
	out := make([]domain.PatternFeature, 0, len(s.Features))
	seen := make(map[string]bool, len(s.Features))
	for _, name := range s.FeatureOrder {
		if w, ok := s.Features[name]; ok && !seen[name] {
			out = append(out, domain.PatternFeature{Name: name, Weight: w})
			seen[name] = true
		}
	}
	rest := make([]string, 0, len(s.Features))
	for name := range s.Features {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, domain.PatternFeature{Name: name, Weight: s.Features[name]})
	}
	return out
}
