package system

// OpenCode implements the System interface for OpenCode.
type OpenCode struct {
	BaseSystem
}

// NewOpenCode creates a configured OpenCode system.
func NewOpenCode() *OpenCode {
	return &OpenCode{BaseSystem{
		name:          "opencode",
		displayName:   "OpenCode",
		skillsDir:     ".opencode/skills",
		configSignals: []string{"opencode.json", "opencode.jsonc", ".opencode"},
	}}
}

func init() { Register(NewOpenCode()) }
