package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/custodia-labs/sizhen/internal/core/domain"
)

// theme holds the styles used for terminal output.
type theme struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// plainTheme renders text unchanged.
func plainTheme() theme {
	s := lipgloss.NewStyle()
	return theme{Title: s, Label: s, Muted: s, Success: s, Warning: s, Error: s}
}

func styledTheme() theme {
	return theme{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		Label:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
	}
}

// themeFor returns a coloured theme when w is a terminal.
func themeFor(w io.Writer) theme {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return styledTheme()
	}
	return plainTheme()
}

func (t theme) status(s domain.DiagnosisStatus) string {
	switch s {
	case domain.StatusDone:
		return t.Success.Render(s.String())
	case domain.StatusFailed:
		return t.Error.Render(s.String())
	case domain.StatusInsufficientData:
		return t.Warning.Render(s.String())
	default:
		return s.String()
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func renderCandidates(w io.Writer, t theme, candidates []domain.SyndromeCandidate) {
	if len(candidates) == 0 {
		fmt.Fprintln(w, t.Muted.Render("  (none)"))
		return
	}
	for i, c := range candidates {
		fmt.Fprintf(w, "  [%d] %s  score %.2f  confidence %.2f\n", i+1, c.Name, c.Score, c.Confidence)
		if c.Mechanism != "" {
			fmt.Fprintf(w, "      %s\n", t.Muted.Render(c.Mechanism))
		}
		if len(c.Related) > 0 {
			fmt.Fprintf(w, "      related: %s\n", strings.Join(c.Related, ", "))
		}
	}
}

func renderReport(w io.Writer, t theme, r *domain.DiagnosisReport) {
	fmt.Fprintln(w, t.Title.Render("Diagnosis Report"))
	fmt.Fprintf(w, "%s %s\n", t.Label.Render("ID:"), r.ID)
	fmt.Fprintf(w, "%s %s / %s\n", t.Label.Render("Session:"), r.UserID, r.SessionID)
	fmt.Fprintf(w, "%s %s (%s)\n", t.Label.Render("Status:"), t.status(r.Status), r.StatusMessage)
	fmt.Fprintf(w, "%s %.2f\n", t.Label.Render("Confidence:"), r.Confidence)
	fmt.Fprintln(w)

	fmt.Fprintln(w, t.Label.Render("Modalities:"))
	for _, m := range domain.AllModalities() {
		switch {
		case r.ModalityResults[m] != nil:
			res := r.ModalityResults[m]
			fmt.Fprintf(w, "  %-10s %s  %d features, confidence %.2f\n",
				m, t.Success.Render("ok"), len(res.Features), res.Confidence)
		case r.ModalityErrors[m] != "":
			fmt.Fprintf(w, "  %-10s %s  %s\n", m, t.Error.Render("error"), r.ModalityErrors[m])
		case containsModality(r.SkippedModalities, m):
			fmt.Fprintf(w, "  %-10s %s\n", m, t.Muted.Render("skipped"))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, t.Label.Render("Syndromes:"))
	renderCandidates(w, t, r.Syndromes)

	if r.Constitution != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s (confidence %.2f)\n", t.Label.Render("Constitution:"),
			r.Constitution.Type, r.Constitution.Confidence)
	}
	if r.CoreMechanism != "" {
		fmt.Fprintf(w, "%s %s\n", t.Label.Render("Core mechanism:"), r.CoreMechanism)
	}
	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, t.Label.Render("Recommendations:"))
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}
	if r.Summary != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, r.Summary)
	}
}

func renderFusion(w io.Writer, t theme, f *domain.FusionResult) {
	fmt.Fprintf(w, "%s %s\n", t.Title.Render("Fusion"), t.Muted.Render(f.Algorithm.String()))
	if !f.Success {
		fmt.Fprintf(w, "%s %s\n", t.Error.Render("failed:"), f.Error)
		return
	}
	fmt.Fprintf(w, "%s %.2f\n", t.Label.Render("Confidence:"), f.Confidence)
	if f.ModalConflictsDetected {
		fmt.Fprintln(w, t.Warning.Render("Modal conflicts detected"))
	}
	for _, m := range domain.AllModalities() {
		if weight, ok := f.ModalityWeights[m]; ok {
			fmt.Fprintf(w, "  %-10s weight %.3f\n", m, weight)
		}
	}
	fmt.Fprintln(w, t.Label.Render("Syndromes:"))
	renderCandidates(w, t, f.Syndromes)
}

func renderReasoning(w io.Writer, t theme, r *domain.ReasoningResult) {
	fmt.Fprintln(w, t.Title.Render("Differentiation"))
	if !r.Success {
		fmt.Fprintf(w, "%s %s\n", t.Error.Render("failed:"), r.Error)
		return
	}
	for _, m := range r.Methods {
		fmt.Fprintf(w, "%s %d syndromes\n", t.Label.Render(m.Method.String()+":"), len(m.Syndromes))
	}
	fmt.Fprintln(w, t.Label.Render("Syndromes:"))
	renderCandidates(w, t, r.Syndromes)
	if r.Constitution != nil {
		fmt.Fprintf(w, "%s %s (confidence %.2f)\n", t.Label.Render("Constitution:"),
			r.Constitution.Type, r.Constitution.Confidence)
	}
	if r.CoreMechanism != "" {
		fmt.Fprintf(w, "%s %s\n", t.Label.Render("Core mechanism:"), r.CoreMechanism)
	}
	if len(r.TreatmentPrinciples) > 0 {
		fmt.Fprintf(w, "%s %s\n", t.Label.Render("Treatment:"), strings.Join(r.TreatmentPrinciples, ", "))
	}
}

func renderProgress(w io.Writer, t theme, p *domain.DiagnosisProgress) {
	fmt.Fprintf(w, "%s %s / %s\n", t.Title.Render("Progress"), p.UserID, p.SessionID)
	fmt.Fprintf(w, "%s %s (%s)\n", t.Label.Render("Status:"), t.status(p.Status), p.StatusMessage)
	fmt.Fprintf(w, "%s %.0f%%\n", t.Label.Render("Overall:"), p.OverallProgress*100)
	for _, m := range domain.AllModalities() {
		fmt.Fprintf(w, "  %-10s %s\n", m, checkmark(t, p.ModalityCompleted(m)))
	}
	fmt.Fprintf(w, "  %-10s %s\n", "fusion", checkmark(t, p.FusionCompleted))
	fmt.Fprintf(w, "  %-10s %s\n", "reasoning", checkmark(t, p.ReasoningCompleted))
}

func checkmark(t theme, done bool) string {
	if done {
		return t.Success.Render("done")
	}
	return t.Muted.Render("pending")
}

func containsModality(list []domain.Modality, m domain.Modality) bool {
	for _, v := range list {
		if v == m {
			return true
		}
	}
	return false
}
