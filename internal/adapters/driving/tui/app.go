package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sizhen/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sizhen/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sizhen/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sizhen/internal/core/domain"
)

// DefaultInterval is the poll interval when none is configured.
const DefaultInterval = time.Second

// maxBarWidth caps the progress bar on wide terminals.
const maxBarWidth = 60

// App polls one diagnosis session and renders its progress.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	styles  *styles.Styles
	keys    *keymap.KeyMap
	spinner spinner.Model
	bar     progress.Model

	userID    string
	sessionID string
	interval  time.Duration

	// progress is the last successful poll.
	progress *domain.DiagnosisProgress

	// err holds the last poll error. A later success clears it.
	err error

	showStages bool
	width      int
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a progress monitor for one session.
func NewApp(ports *Ports, userID, sessionID string) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}
	if userID == "" || sessionID == "" {
		return nil, fmt.Errorf("creating app: %w", ErrMissingSession)
	}

	s := styles.DefaultStyles()
	theme := s.Theme()

	return &App{
		ports:  ports,
		ctx:    context.Background(),
		styles: s,
		keys:   keymap.DefaultKeyMap(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(s.Title),
		),
		bar: progress.New(
			progress.WithGradient(string(theme.Primary), string(theme.Secondary)),
			progress.WithWidth(maxBarWidth),
		),
		userID:     userID,
		sessionID:  sessionID,
		interval:   DefaultInterval,
		showStages: true,
	}, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// WithInterval sets the poll interval. Non-positive values are ignored.
func (a *App) WithInterval(d time.Duration) *App {
	if d > 0 {
		a.interval = d
	}
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("sizhen - "+a.sessionID),
		a.spinner.Tick,
		a.fetch(),
	)
}

// fetch polls the session once.
func (a *App) fetch() tea.Cmd {
	ctx, diagnosis := a.ctx, a.ports.Diagnosis
	userID, sessionID := a.userID, a.sessionID
	return func() tea.Msg {
		p, err := diagnosis.GetProgress(ctx, userID, sessionID)
		return messages.ProgressLoaded{Progress: p, Err: err}
	}
}

// schedule requests the next poll after the interval.
func (a *App) schedule() tea.Cmd {
	return tea.Tick(a.interval, func(time.Time) tea.Msg {
		return messages.RefreshDue{}
	})
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.bar.Width = min(maxBarWidth, max(10, msg.Width-8))
		return a, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.Refresh):
			return a, a.fetch()
		case key.Matches(msg, a.keys.Details):
			a.showStages = !a.showStages
		}
		return a, nil

	case messages.ProgressLoaded:
		if msg.Err != nil {
			a.err = msg.Err
			return a, a.schedule()
		}
		a.err = nil
		a.progress = msg.Progress
		if a.Finished() {
			return a, nil
		}
		return a, a.schedule()

	case messages.RefreshDue:
		if a.Finished() {
			return a, nil
		}
		return a, a.fetch()

	case spinner.TickMsg:
		if a.Finished() {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

// View implements tea.Model.
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(a.styles.Title.Render("Diagnosis session"))
	b.WriteString(" ")
	b.WriteString(a.styles.Muted.Render(a.userID + " / " + a.sessionID))
	b.WriteString("\n\n")

	if a.progress == nil {
		if a.err != nil {
			b.WriteString(a.styles.Error.Render("Error: " + a.err.Error()))
		} else {
			b.WriteString(a.spinner.View() + " Loading...")
		}
		b.WriteString("\n\n")
		b.WriteString(a.help())
		return b.String()
	}

	status := a.progress.Status
	if !status.IsTerminal() {
		b.WriteString(a.spinner.View())
		b.WriteString(" ")
	}
	b.WriteString(a.styles.Status(status).Render(status.String()))
	b.WriteString("  ")
	b.WriteString(a.styles.Normal.Render(a.progress.StatusMessage))
	b.WriteString("\n\n")

	b.WriteString(a.bar.ViewAs(a.progress.OverallProgress))
	b.WriteString("\n")

	if a.showStages {
		b.WriteString("\n")
		for _, stage := range a.stages() {
			b.WriteString(a.renderStage(stage.name, stage.done))
		}
	}

	if a.err != nil {
		b.WriteString("\n")
		b.WriteString(a.styles.Error.Render("Last poll failed: " + a.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(a.help())
	return b.String()
}

type stage struct {
	name string
	done bool
}

// stages lists the expected modalities followed by fusion and reasoning.
// Records without an expected set show every modality.
func (a *App) stages() []stage {
	modalities := a.progress.Expected
	if len(modalities) == 0 {
		modalities = domain.AllModalities()
	}
	out := make([]stage, 0, len(modalities)+2)
	for _, m := range modalities {
		out = append(out, stage{name: m.String(), done: a.progress.ModalityCompleted(m)})
	}
	out = append(out,
		stage{name: "fusion", done: a.progress.FusionCompleted},
		stage{name: "reasoning", done: a.progress.ReasoningCompleted},
	)
	return out
}

func (a *App) renderStage(name string, done bool) string {
	if done {
		return fmt.Sprintf("  %s %s\n", a.styles.Success.Render("✓"), name)
	}
	return fmt.Sprintf("  %s %s\n", a.styles.Muted.Render("·"), a.styles.Muted.Render(name))
}

func (a *App) help() string {
	parts := make([]string, 0, len(a.keys.ShortHelp()))
	for _, binding := range a.keys.ShortHelp() {
		h := binding.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return a.styles.Help.Render(strings.Join(parts, " • "))
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// Progress returns the last polled progress record.
func (a *App) Progress() *domain.DiagnosisProgress {
	return a.progress
}

// Err returns the last poll error.
func (a *App) Err() error {
	return a.err
}

// Finished reports whether the session reached a terminal status.
func (a *App) Finished() bool {
	return a.progress != nil && a.progress.Status.IsTerminal()
}

// ShowStages reports whether the stage checklist is visible.
func (a *App) ShowStages() bool {
	return a.showStages
}
