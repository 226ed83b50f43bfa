package system

// GitHubCopilot implements the System interface for GitHub Copilot.
type GitHubCopilot struct {
	BaseSystem
}

// NewGitHubCopilot creates a configured GitHub Copilot system.
func NewGitHubCopilot() *GitHubCopilot {
	return &GitHubCopilot{BaseSystem{
		name:          "github-copilot",
		displayName:   "GitHub Copilot",
		skillsDir:     ".github/skills",
		configSignals: []string{".github/copilot-instructions.md"},
	}}
}

// Copilot picks up repository skills next to its instructions file under
// .github, so no separate config directory is required.

func init() { Register(NewGitHubCopilot()) }
