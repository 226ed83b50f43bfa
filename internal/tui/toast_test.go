package tui

import (
	"strings"
	"testing"
)

func TestNewToastModel(t *testing.T) {
	m := newToastModel()
	if m.active {
		t.Error("new toast should not be active")
	}
	if m.view() != "" {
		t.Errorf("view() = %q, want empty", m.view())
	}
}

func TestToastShow(t *testing.T) {
	tests := []struct {
		kind   toastType
		prefix string
	}{
		{toastSuccess, "✓ "},
		{toastError, "✗ "},
		{toastWarning, "⚠ "},
	}
	for _, tt := range tests {
		m, cmd := newToastModel().show("fetched review", tt.kind)
		if !m.active || m.kind != tt.kind {
			t.Errorf("kind %d: toast = %+v", tt.kind, m)
		}
		if cmd == nil {
			t.Errorf("kind %d: show should schedule a dismiss", tt.kind)
		}
		if !strings.Contains(m.view(), tt.prefix+"fetched review") {
			t.Errorf("kind %d: view() = %q", tt.kind, m.view())
		}
	}
}

func TestToastDismiss_IgnoresStaleTimer(t *testing.T) {
	m := newToastModel()
	m, _ = m.show("first", toastSuccess)
	first := m.id
	m, _ = m.show("second", toastError)

	m = m.update(toastDismissMsg{id: first})
	if !m.active || m.message != "second" {
		t.Errorf("stale dismiss hid the newer toast: %+v", m)
	}

	m = m.update(toastDismissMsg{id: m.id})
	if m.active {
		t.Error("toast should be dismissed")
	}
}
