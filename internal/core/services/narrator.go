package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driven"
)

const narratorSystem = `You are an assistant to a Traditional Chinese Medicine practitioner.
Write a short diagnostic summary for the practitioner from the structured findings.
Use plain prose in at most four sentences. Do not invent findings that are not listed.
Do not give dosages.`

// Narrator asks a language model to write a report's summary.
type Narrator struct {
	llm driven.LLMService
	cfg domain.NarratorSettings
}

// NewNarrator creates a narrator. cfg.MaxTokens bounds the reply.
func NewNarrator(llm driven.LLMService, cfg domain.NarratorSettings) *Narrator {
	return &Narrator{llm: llm, cfg: cfg}
}

// Timeout returns the per-request bound, zero when unset.
func (n *Narrator) Timeout() time.Duration {
	return n.cfg.Timeout
}

// Narrate returns a prose summary of a finished report.
func (n *Narrator) Narrate(ctx context.Context, report *domain.DiagnosisReport) (string, error) {
	if n == nil || n.llm == nil {
		return "", errors.New("narrator not configured")
	}
	text, err := n.llm.Generate(ctx, narrationPrompt(report), driven.GenerateOptions{
		System:      narratorSystem,
		MaxTokens:   n.cfg.MaxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", n.llm.ModelName(), err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s returned an empty summary", n.llm.ModelName())
	}
	return text, nil
}

// narrationPrompt lists the report's findings one per line.
func narrationPrompt(r *domain.DiagnosisReport) string {
	var b strings.Builder

	b.WriteString("Modality findings:\n")
	for _, m := range domain.AllModalities() {
		res, ok := r.ModalityResults[m]
		if !ok || res == nil {
			continue
		}
		fmt.Fprintf(&b, "- %s (confidence %.2f): %s\n", m, res.Confidence, res.Summary)
	}

	if len(r.Syndromes) > 0 {
		b.WriteString("Syndromes:\n")
		for _, s := range r.Syndromes {
			fmt.Fprintf(&b, "- %s (confidence %.2f)\n", s.Name, s.Confidence)
		}
	}
	if r.Constitution != nil {
		fmt.Fprintf(&b, "Constitution: %s\n", r.Constitution.Type)
	}
	if r.CoreMechanism != "" {
		fmt.Fprintf(&b, "Core mechanism: %s\n", r.CoreMechanism)
	}
	if len(r.Recommendations) > 0 {
		fmt.Fprintf(&b, "Recommendations: %s\n", strings.Join(r.Recommendations, "; "))
	}
	fmt.Fprintf(&b, "Draft summary: %s\n", r.Summary)

	return b.String()
}
