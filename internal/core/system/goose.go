package system

// Goose implements the System interface for Goose.
type Goose struct {
	BaseSystem
}

// NewGoose creates a configured Goose system.
func NewGoose() *Goose {
	return &Goose{BaseSystem{
		name:          "goose",
		displayName:   "Goose",
		skillsDir:     ".goose/skills",
		configSignals: []string{".goose", ".goosehints"},
	}}
}

func init() { Register(NewGoose()) }
