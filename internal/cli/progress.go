package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/raphaelgruber/refcheck/internal/service"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// progressMsg reports how many reference databases have been classified.
type progressMsg struct {
	done  int
	total int
}

// finishedMsg is sent once the comparison returns.
type finishedMsg struct {
	err error
}

// progressModel is the bubbletea model for comparison progress.
type progressModel struct {
	progress progress.Model
	theme    Theme
	done     int
	total    int
	finished bool
	quitting bool
	err      error
}

func newProgressModel() progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return progressModel{
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command.
func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case progressMsg:
		// Workers report out of order when running concurrently
		m.done, m.total = max(m.done, msg.done), msg.total
		return m, nil

	case finishedMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.quitting {
		return m.theme.hintStyle().Render("Comparison cancelled.\n")
	}
	if m.finished {
		if m.err != nil {
			return m.theme.errorStyle().Render(fmt.Sprintf("✗ Comparison failed: %s\n", m.err))
		}
		return m.theme.completedStyle().Render(fmt.Sprintf("✓ Compared %d reference databases\n", m.total))
	}
	if m.total == 0 {
		return m.theme.statusStyle().Render("Loading catalogs...") + "\n"
	}

	pct := float64(m.done) / float64(m.total)
	status := m.theme.statusStyle().Render("[comparing]")
	counts := fmt.Sprintf("%d/%d reference databases", m.done, m.total)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")
	return fmt.Sprintf("%s %s %s\n%s\n", status, m.progress.ViewAs(pct), counts, hint)
}

// compareFunc runs a comparison, reporting progress through onProgress.
type compareFunc func(ctx context.Context, onProgress func(done, total int)) (service.ComparisonResult, error)

// runWithProgress runs compare while drawing a progress bar on out.
// Quitting the UI cancels the comparison.
func runWithProgress(ctx context.Context, out io.Writer, compare compareFunc) (service.ComparisonResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(), tea.WithOutput(out))

	var (
		result service.ComparisonResult
		runErr error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		result, runErr = compare(ctx, func(done, total int) {
			p.Send(progressMsg{done: done, total: total})
		})
		p.Send(finishedMsg{err: runErr})
	}()

	final, err := p.Run()
	if m, ok := final.(progressModel); ok && m.quitting {
		cancel()
	}
	<-finished

	if err != nil {
		fmt.Fprintf(out, "Warning: progress UI error: %v\n", err)
	}
	return result, runErr
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
