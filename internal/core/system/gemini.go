package system

// Gemini implements the System interface for Gemini CLI.
type Gemini struct {
	BaseSystem
}

// NewGemini creates a configured Gemini CLI system.
func NewGemini() *Gemini {
	return &Gemini{BaseSystem{
		name:          "gemini-cli",
		displayName:   "Gemini CLI",
		skillsDir:     ".gemini/skills",
		configSignals: []string{"GEMINI.md", ".gemini"},
	}}
}

func init() { Register(NewGemini()) }
