// Package system distributes installed skills into the skill directories of
// AI coding tools (Claude Code, OpenCode, GitHub Copilot, etc.).
//
// A System knows its own project-relative skill directory and the files that
// show it is in use. Systems are self-contained Go structs registered at init.
package system

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/barysiuk/skillsource/internal/core"
)

// System defines how an AI coding tool receives skills.
type System interface {
	// Identity
	Name() string        // machine name: "claude-code", "opencode"
	DisplayName() string // human name: "Claude Code", "OpenCode"

	// Detection
	IsActiveInFolder(projectDir string) bool
	DetectionSignals() []string

	// SkillsDir is the project-relative directory the tool reads skills from.
	SkillsDir() string

	// Link makes exactly skills visible in the tool's skill directory.
	// Entries it created earlier and that are no longer wanted are removed;
	// entries it did not create are left alone.
	Link(projectDir string, skills []core.EffectiveSkill) (*LinkResult, error)
}

// LinkResult reports what Link changed for one system.
type LinkResult struct {
	System    string
	Linked    []string // symlinked
	Copied    []string // copied because symlinks failed
	Unchanged []string
	Removed   []string // stale entries from a previous run
	Conflicts []string // names occupied by content skillsource does not manage
}

// --- Registry ---

var systems []System

// Register adds a system to the global registry.
func Register(s System) { systems = append(systems, s) }

// All returns all registered systems sorted by name.
func All() []System {
	out := append([]System(nil), systems...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ByName returns the system with the given machine name, if registered.
func ByName(name string) (System, bool) {
	for _, s := range systems {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// ByNames resolves a list of system names to System values.
// Returns an error if any name is unknown.
func ByNames(names []string) ([]System, error) {
	result := make([]System, 0, len(names))
	for _, name := range names {
		s, ok := ByName(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown system %q; available: %s",
				name, strings.Join(Names(All()), ", "))
		}
		result = append(result, s)
	}
	return result, nil
}

// DetectInFolder returns systems that are active in the given project folder.
func DetectInFolder(projectDir string) []System {
	var detected []System
	for _, s := range All() {
		if s.IsActiveInFolder(projectDir) {
			detected = append(detected, s)
		}
	}
	return detected
}

// Names returns the machine names of the given systems.
func Names(systems []System) []string {
	names := make([]string, len(systems))
	for i, s := range systems {
		names[i] = s.Name()
	}
	return names
}

// DisplayNames returns the display names of the given systems.
func DisplayNames(systems []System) []string {
	names := make([]string, len(systems))
	for i, s := range systems {
		names[i] = s.DisplayName()
	}
	return names
}

// Distribute links skills into every system. A failing system does not stop
// the others; all failures are returned together.
func Distribute(projectDir string, targets []System, skills []core.EffectiveSkill) ([]*LinkResult, error) {
	var results []*LinkResult
	var errs *multierror.Error
	for _, s := range targets {
		res, err := s.Link(projectDir, skills)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", s.DisplayName(), err))
			continue
		}
		results = append(results, res)
	}
	return results, errs.ErrorOrNil()
}
