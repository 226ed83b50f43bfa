package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// toastType defines the visual style of a toast notification.
type toastType int

const (
	toastSuccess toastType = iota
	toastError
	toastWarning
)

// toastAutoDismiss is how long a toast stays visible.
const toastAutoDismiss = 3 * time.Second

// toastModel shows one transient notification under the progress lines.
// Showing a new toast replaces the previous one.
type toastModel struct {
	active  bool
	message string
	kind    toastType
	id      int // Monotonic ID to ignore stale dismiss messages.

	nextID int
}

// toastDismissMsg is sent by the auto-dismiss timer.
type toastDismissMsg struct {
	id int
}

func newToastModel() toastModel {
	return toastModel{}
}

// show displays a new toast and schedules its dismissal.
func (m toastModel) show(message string, kind toastType) (toastModel, tea.Cmd) {
	m.active = true
	m.message = message
	m.kind = kind
	m.id = m.nextID
	m.nextID++

	id := m.id
	return m, tea.Tick(toastAutoDismiss, func(_ time.Time) tea.Msg {
		return toastDismissMsg{id: id}
	})
}

// dismiss hides the toast immediately.
func (m toastModel) dismiss() toastModel {
	m.active = false
	m.message = ""
	return m
}

func (m toastModel) update(msg tea.Msg) toastModel {
	if msg, ok := msg.(toastDismissMsg); ok && msg.id == m.id {
		// Older timers must not hide a newer toast.
		return m.dismiss()
	}
	return m
}

// view renders the toast with a 1 char indent, or "" when inactive.
func (m toastModel) view() string {
	if !m.active {
		return ""
	}

	var style lipgloss.Style
	prefix := ""
	switch m.kind {
	case toastSuccess:
		style, prefix = successStyle, "✓ "
	case toastError:
		style, prefix = errorStyle, "✗ "
	case toastWarning:
		style, prefix = warningStyle, "⚠ "
	}
	return " " + style.Render(prefix+m.message)
}
