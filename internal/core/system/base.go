package system

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/barysiuk/skillsource/internal/core"
)

// managedFile lists, one per line, the entries of a skill directory that
// skillsource created.
const managedFile = ".skillsource-managed"

// BaseSystem provides default implementations for common system patterns.
// Individual systems embed this and override methods as needed.
type BaseSystem struct {
	name          string
	displayName   string
	skillsDir     string   // project-relative skill directory
	configSignals []string // project files indicating active use
}

func (b *BaseSystem) Name() string               { return b.name }
func (b *BaseSystem) DisplayName() string        { return b.displayName }
func (b *BaseSystem) SkillsDir() string          { return b.skillsDir }
func (b *BaseSystem) DetectionSignals() []string { return b.configSignals }

func (b *BaseSystem) IsActiveInFolder(folderPath string) bool {
	for _, sig := range b.configSignals {
		if pathExists(filepath.Join(folderPath, sig)) {
			return true
		}
	}
	// A skill directory we populated before also counts.
	return pathExists(filepath.Join(folderPath, b.skillsDir, managedFile))
}

// Link creates a relative symlink per skill in the system's skill directory,
// falling back to a full copy if the symlink fails.
func (b *BaseSystem) Link(projectDir string, skills []core.EffectiveSkill) (*LinkResult, error) {
	res := &LinkResult{System: b.name}
	skillDir := filepath.Join(projectDir, b.skillsDir)

	previous, err := readManaged(skillDir)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(skills))
	managed := make(map[string]bool, len(skills))
	for _, s := range skills {
		wanted[s.Name] = true
		linkPath := filepath.Join(skillDir, s.Name)

		if pathExists(linkPath) && !previous[s.Name] {
			res.Conflicts = append(res.Conflicts, s.Name)
			continue
		}
		managed[s.Name] = true

		if err := os.MkdirAll(skillDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating skill dir for %s: %w", b.displayName, err)
		}
		rel, err := filepath.Rel(skillDir, s.Path)
		if err != nil {
			return nil, fmt.Errorf("computing relative path for %s: %w", b.displayName, err)
		}
		if target, err := os.Readlink(linkPath); err == nil && target == rel {
			res.Unchanged = append(res.Unchanged, s.Name)
			continue
		}

		// Remove existing link/dir if present.
		_ = os.RemoveAll(linkPath)

		if err := os.Symlink(rel, linkPath); err != nil {
			if copyErr := core.CopyDir(s.Path, linkPath); copyErr != nil {
				return nil, fmt.Errorf("symlink and copy both failed for %s in %s: symlink: %w, copy: %v",
					s.Name, b.displayName, err, copyErr)
			}
			res.Copied = append(res.Copied, s.Name)
			continue
		}
		res.Linked = append(res.Linked, s.Name)
	}

	for name := range previous {
		if wanted[name] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(skillDir, name)); err != nil {
			return nil, fmt.Errorf("removing %s skill for %s: %w", name, b.displayName, err)
		}
		res.Removed = append(res.Removed, name)
	}
	sort.Strings(res.Removed)

	if err := writeManaged(skillDir, managed); err != nil {
		return nil, err
	}
	if len(managed) == 0 {
		// Clean up empty skills directory, then its parent (e.g. .claude/skills/ → .claude/).
		cleanupEmptyDir(skillDir)
		cleanupEmptyDir(filepath.Dir(skillDir))
	}
	return res, nil
}

func readManaged(skillDir string) (map[string]bool, error) {
	f, err := os.Open(filepath.Join(skillDir, managedFile))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", managedFile, err)
	}
	defer func() { _ = f.Close() }()

	names := map[string]bool{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		// Never follow an entry out of the skill directory.
		if name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
			continue
		}
		names[name] = true
	}
	return names, scanner.Err()
}

func writeManaged(skillDir string, managed map[string]bool) error {
	path := filepath.Join(skillDir, managedFile)
	if len(managed) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", managedFile, err)
		}
		return nil
	}

	names := make([]string, 0, len(managed))
	for name := range managed {
		names = append(names, name)
	}
	sort.Strings(names)
	content := strings.Join(names, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", managedFile, err)
	}
	return nil
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// cleanupEmptyDir removes dir if it is empty.
func cleanupEmptyDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	_ = os.Remove(dir)
}
