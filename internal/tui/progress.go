// Package tui renders install progress in the terminal. It consumes the
// events an installer emits and never touches the project on its own.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/barysiuk/skillsource/internal/core"
)

// EventMsg carries one installer event into the program.
type EventMsg core.Event

// DoneMsg ends the program with the installer's outcome.
type DoneMsg struct {
	Result *core.InstallResult
	Err    error
}

// sourceLine is the progress of one declared source.
type sourceLine struct {
	repo     string
	commit   string
	resolved bool
	queried  bool
	listed   int
	fetched  int
	reused   int
	err      error
}

// ProgressModel is a bubbletea model showing one install run.
type ProgressModel struct {
	width int

	state   core.State
	sources []*sourceLine
	byRepo  map[string]*sourceLine

	fetched int
	reused  int
	skipped int

	spinner spinner.Model
	toast   toastModel

	cancel     context.CancelFunc
	cancelling bool

	done   bool
	result *core.InstallResult
	err    error
}

// NewProgressModel creates a model listing repos in declaration order.
// cancel is called when the user interrupts the run.
func NewProgressModel(repos []string, cancel context.CancelFunc) ProgressModel {
	m := ProgressModel{
		byRepo: make(map[string]*sourceLine, len(repos)),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(spinnerStyle),
		),
		toast:  newToastModel(),
		cancel: cancel,
	}
	for _, repo := range repos {
		line := &sourceLine{repo: repo}
		m.sources = append(m.sources, line)
		m.byRepo[repo] = line
	}
	return m
}

// Outcome returns what DoneMsg reported.
func (m ProgressModel) Outcome() (*core.InstallResult, error) {
	return m.result, m.err
}

func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Cancel) && !m.cancelling && !m.done {
			m.cancelling = true
			if m.cancel != nil {
				m.cancel()
			}
			var cmd tea.Cmd
			m.toast, cmd = m.toast.show("cancelling, nothing will be written", toastWarning)
			return m, cmd
		}
		return m, nil

	case EventMsg:
		return m.apply(core.Event(msg))

	case DoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		if msg.Result != nil {
			m.state = msg.Result.State
		}
		m.toast = m.toast.dismiss()
		return m, tea.Quit

	case toastDismissMsg:
		m.toast = m.toast.update(msg)
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ProgressModel) apply(e core.Event) (tea.Model, tea.Cmd) {
	line := m.line(e.Source)
	var cmd tea.Cmd

	switch e.Kind {
	case core.EventStateChanged:
		m.state = e.State
	case core.EventRefResolved:
		line.commit = e.Commit
		line.resolved = true
		line.queried = e.Queried
	case core.EventSkillsListed:
		line.listed = e.Count
	case core.EventSkillSkipped:
		m.skipped++
		if e.Reason == core.SkipLocal {
			m.toast, cmd = m.toast.show(fmt.Sprintf("%s: local skill wins over %s", e.Skill, e.Source), toastWarning)
		}
	case core.EventSkillReused:
		m.reused++
		line.reused++
	case core.EventSkillFetched:
		m.fetched++
		line.fetched++
		m.toast, cmd = m.toast.show("fetched "+e.Skill, toastSuccess)
	case core.EventSourceFailed:
		line.err = e.Err
		m.toast, cmd = m.toast.show(e.Source+" failed", toastError)
	}
	return m, cmd
}

// line returns the row for repo, adding one for sources not known upfront.
func (m *ProgressModel) line(repo string) *sourceLine {
	if l, ok := m.byRepo[repo]; ok {
		return l
	}
	l := &sourceLine{repo: repo}
	if repo != "" {
		m.sources = append(m.sources, l)
		m.byRepo[repo] = l
	}
	return l
}

func (m ProgressModel) View() string {
	var b strings.Builder

	status := m.state.String()
	if !m.done {
		status = m.spinner.View() + status
	} else if m.err != nil {
		status = errorStyle.Render("✗ " + status)
	} else {
		status = successStyle.Render("✓ " + status)
	}
	b.WriteString(m.truncate(logoStyle.Render("skillsource")+stateStyle.Render(status)) + "\n\n")

	if len(m.sources) > 0 {
		b.WriteString(m.truncate(renderSectionHeader("SOURCES")) + "\n")
		for _, l := range m.sources {
			b.WriteString(m.truncate(renderSourceLine(l)) + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.truncate(fmt.Sprintf("  %s fetched  %s reused  %s skipped",
		badgeStyle.Render(fmt.Sprint(m.fetched)),
		badgeStyle.Render(fmt.Sprint(m.reused)),
		badgeStyle.Render(fmt.Sprint(m.skipped)))) + "\n")

	if t := m.toast.view(); t != "" {
		b.WriteString(m.truncate(t) + "\n")
	}
	if !m.done {
		b.WriteString(m.truncate(helpStyle.Render("  "+keys.Cancel.Help().Key+" "+keys.Cancel.Help().Desc)) + "\n")
	}
	return b.String()
}

func renderSourceLine(l *sourceLine) string {
	if l.err != nil {
		return "  " + sourceStyle.Render(l.repo) + "  " + errorStyle.Render(firstLine(l.err.Error()))
	}
	if !l.resolved {
		return "  " + sourceStyle.Render(l.repo) + "  " + mutedStyle.Render("resolving")
	}

	origin := "locked"
	if l.queried {
		origin = "resolved"
	}
	parts := []string{
		sourceStyle.Render(l.repo),
		badgeStyle.Render(core.TruncateCommit(l.commit)),
		mutedStyle.Render(origin),
	}
	if l.listed > 0 {
		parts = append(parts, mutedStyle.Render(fmt.Sprintf("%d listed", l.listed)))
	}
	if l.fetched > 0 {
		parts = append(parts, successStyle.Render(fmt.Sprintf("%d fetched", l.fetched)))
	}
	if l.reused > 0 {
		parts = append(parts, mutedStyle.Render(fmt.Sprintf("%d reused", l.reused)))
	}
	return "  " + strings.Join(parts, "  ")
}

func (m ProgressModel) truncate(s string) string {
	if m.width <= 0 {
		return s
	}
	return ansi.Truncate(s, m.width, "…")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// InstallFunc runs an install, reporting progress to observer.
type InstallFunc func(ctx context.Context, observer core.Observer) (*core.InstallResult, error)

// RunProgress runs install while rendering its progress to out. Interrupting
// the view cancels the context passed to install; RunProgress still waits for
// install to return.
func RunProgress(ctx context.Context, in io.Reader, out io.Writer, repos []string, install InstallFunc) (*core.InstallResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgressModel(repos, cancel), tea.WithInput(in), tea.WithOutput(out))

	outcome := make(chan DoneMsg, 1)
	go func() {
		res, err := install(ctx, func(e core.Event) { p.Send(EventMsg(e)) })
		done := DoneMsg{Result: res, Err: err}
		outcome <- done
		p.Send(done)
	}()

	if _, err := p.Run(); err != nil {
		// The view died; stop the run and report what it got to.
		cancel()
	}
	done := <-outcome
	return done.Result, done.Err
}
