package system

// Cursor implements the System interface for Cursor.
type Cursor struct {
	BaseSystem
}

// NewCursor creates a configured Cursor system.
func NewCursor() *Cursor {
	return &Cursor{BaseSystem{
		name:          "cursor",
		displayName:   "Cursor",
		skillsDir:     ".cursor/skills",
		configSignals: []string{".cursor"},
	}}
}

func init() { Register(NewCursor()) }
