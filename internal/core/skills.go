package core

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SkillMetadata is the YAML frontmatter parsed from a SKILL.md file.
type SkillMetadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	License     string `yaml:"license,omitempty"`
}

// ParseSkillMd reads and parses the YAML frontmatter from a SKILL.md file.
func ParseSkillMd(path string) (*SkillMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	if !scanner.Scan() {
		return nil, fmt.Errorf("empty file: %s", path)
	}
	if strings.TrimSpace(scanner.Text()) != "---" {
		return nil, fmt.Errorf("no frontmatter in %s", path)
	}

	var frontmatter strings.Builder
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			closed = true
			break
		}
		frontmatter.WriteString(line)
		frontmatter.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !closed {
		return nil, fmt.Errorf("unterminated frontmatter in %s", path)
	}

	var metadata SkillMetadata
	if err := yaml.Unmarshal([]byte(frontmatter.String()), &metadata); err != nil {
		return nil, fmt.Errorf("parsing frontmatter in %s: %w", path, err)
	}
	if metadata.Name == "" {
		return nil, fmt.Errorf("SKILL.md missing name field: %s", path)
	}
	return &metadata, nil
}

// ScanLocalSkills returns the skills authored in the project's local skill
// directory, sorted by name. A local skill is any non-hidden subdirectory
// holding a SKILL.md; its name is the directory name. The curated directory
// is never reported even when it lives inside the local one.
func ScanLocalSkills(projectDir string, cfg *Config) ([]LocalSkill, error) {
	localDir := filepath.Join(projectDir, cfg.LocalDir)
	curatedDir := filepath.Clean(filepath.Join(projectDir, cfg.CuratedDir))

	entries, err := os.ReadDir(localDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading local skills directory: %w", err)
	}

	var skills []LocalSkill
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		skillPath := filepath.Join(localDir, name)
		if filepath.Clean(skillPath) == curatedDir {
			continue
		}
		info, err := os.Stat(skillPath)
		if err != nil || !info.IsDir() {
			continue
		}
		if !fileExists(filepath.Join(skillPath, skillFileName)) {
			continue
		}
		skills = append(skills, LocalSkill{Name: name, Path: skillPath})
	}

	sort.Slice(skills, func(i, j int) bool { return skills[i].Name < skills[j].Name })
	return skills, nil
}

// ScanCuratedSkills returns the names of skill directories currently in
// curated storage, sorted.
func ScanCuratedSkills(projectDir string, cfg *Config) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(projectDir, cfg.CuratedDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading curated skills directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// EffectiveSkills lists what agents should see after an install: every local
// skill plus each curated skill that is recorded in lf and not shadowed by a
// local skill of the same name. Sorted by name.
func EffectiveSkills(projectDir string, cfg *Config, lf *LockFile) ([]EffectiveSkill, error) {
	local, err := ScanLocalSkills(projectDir, cfg)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(local))
	var out []EffectiveSkill
	for _, s := range local {
		seen[s.Name] = true
		out = append(out, EffectiveSkill{Name: s.Name, Path: s.Path})
	}

	if lf != nil {
		curatedDir := filepath.Join(projectDir, cfg.CuratedDir)
		for repo, entry := range lf.Sources {
			for name := range entry.Skills {
				if seen[name] {
					continue
				}
				path := filepath.Join(curatedDir, name)
				if !dirExists(path) {
					continue
				}
				seen[name] = true
				out = append(out, EffectiveSkill{Name: name, Path: path, Curated: true, Source: repo})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
