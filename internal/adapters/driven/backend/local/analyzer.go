// Package local provides an offline ModalityAnalyzer for payloads that
// already carry scored features, such as questionnaires scored upstream or
// recorded back-end responses replayed in tests.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driven"
	"github.com/custodia-labs/sizhen/internal/resilience"
)

// Ensure Analyzer implements the interface.
var _ driven.ModalityAnalyzer = (*Analyzer)(nil)

// ContentTypeJSON marks a payload whose Data is a recorded analysis result.
const ContentTypeJSON = "application/json"

// Analyzer reads features straight from the payload.
//
// Fields map a feature name to its confidence ("pale_tongue" = "0.8").
// A JSON payload is decoded as an analysis result; its features come first
// and fields are appended.
type Analyzer struct {
	modality domain.Modality
}

// NewAnalyzer creates a local analyzer for one modality.
func NewAnalyzer(m domain.Modality) (*Analyzer, error) {
	if !m.IsValid() {
		return nil, fmt.Errorf("%w: modality %q", domain.ErrUnsupportedType, m)
	}
	return &Analyzer{modality: m}, nil
}

// Modality returns the channel this analyzer serves.
func (a *Analyzer) Modality() domain.Modality {
	return a.modality
}

// recorded is the JSON shape accepted in payload data.
type recorded struct {
	AnalysisID string                   `json:"analysis_id"`
	Summary    string                   `json:"summary"`
	Confidence float64                  `json:"confidence"`
	Features   []domain.AnalysisFeature `json:"features"`
	Detail     domain.ModalityDetail    `json:"detail"`
}

// Analyze converts the payload into an analysis result.
// Malformed payloads are permanent errors.
func (a *Analyzer) Analyze(
	ctx context.Context,
	payload domain.ModalityPayload,
	_ string,
	_ bool,
	_ map[string]string,
) (*domain.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kind := payload.Kind
	if kind == "" {
		kind = domain.DefaultDetailKind(a.modality)
	}
	if kind.Modality() != a.modality {
		return nil, invalid("%s payload sent to %s analyzer", kind, a.modality)
	}

	var rec recorded
	if len(payload.Data) > 0 {
		if !isJSON(payload.ContentType) {
			return nil, invalid("%s analyzer cannot read %q data offline", a.modality, payload.ContentType)
		}
		if err := json.Unmarshal(payload.Data, &rec); err != nil {
			return nil, invalid("decode %s payload: %v", a.modality, err)
		}
	}

	fromFields, err := fieldFeatures(payload.Fields)
	if err != nil {
		return nil, err
	}
	features := append(rec.Features, fromFields...)
	for _, f := range features {
		if f.Name == "" || math.IsNaN(f.Confidence) || f.Confidence < 0 || f.Confidence > 1 {
			return nil, invalid("feature %q has confidence %v", f.Name, f.Confidence)
		}
	}

	id := rec.AnalysisID
	if id == "" {
		id = uuid.NewString()
	}
	detail := rec.Detail
	if detail.Kind == "" {
		detail.Kind = kind
	}
	confidence := rec.Confidence
	if confidence == 0 {
		confidence = meanConfidence(features)
	}

	return &domain.AnalysisResult{
		AnalysisID: id,
		Modality:   a.modality,
		Summary:    rec.Summary,
		Confidence: confidence,
		Features:   features,
		Detail:     detail,
	}, nil
}

// fieldFeatures parses name=confidence fields in name order.
func fieldFeatures(fields map[string]string) ([]domain.AnalysisFeature, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]domain.AnalysisFeature, 0, len(names))
	for _, name := range names {
		conf, err := strconv.ParseFloat(strings.TrimSpace(fields[name]), 64)
		if err != nil {
			return nil, invalid("field %q: %q is not a confidence", name, fields[name])
		}
		out = append(out, domain.AnalysisFeature{Name: name, Value: 1, Confidence: conf})
	}
	return out, nil
}

func meanConfidence(features []domain.AnalysisFeature) float64 {
	data := make(stats.Float64Data, 0, len(features))
	for _, f := range features {
		data = append(data, f.Confidence)
	}
	mean, err := data.Mean()
	if err != nil {
		return 0
	}
	return mean
}

func isJSON(contentType string) bool {
	return contentType == "" || strings.HasPrefix(contentType, ContentTypeJSON)
}

func invalid(format string, args ...any) error {
	return resilience.Permanent(fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...)))
}
