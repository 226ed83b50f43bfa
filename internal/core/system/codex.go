package system

// Codex implements the System interface for Codex.
type Codex struct {
	BaseSystem
}

// NewCodex creates a configured Codex system.
func NewCodex() *Codex {
	return &Codex{BaseSystem{
		name:          "codex",
		displayName:   "Codex",
		skillsDir:     ".codex/skills",
		configSignals: []string{"AGENTS.md", ".codex"},
	}}
}

// AGENTS.md is shared with other tools; its presence alone is enough to
// treat Codex as active.

func init() { Register(NewCodex()) }
