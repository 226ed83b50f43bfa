package system

// ClaudeCode implements the System interface for Claude Code.
type ClaudeCode struct {
	BaseSystem
}

// NewClaudeCode creates a configured Claude Code system.
func NewClaudeCode() *ClaudeCode {
	return &ClaudeCode{BaseSystem{
		name:          "claude-code",
		displayName:   "Claude Code",
		skillsDir:     ".claude/skills",
		configSignals: []string{"CLAUDE.md", ".claude"},
	}}
}

func init() { Register(NewClaudeCode()) }
