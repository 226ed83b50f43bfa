package system

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/barysiuk/skillsource/internal/core"
)

func TestSystemRegistry(t *testing.T) {
	all := All()
	if len(all) != 7 {
		t.Fatalf("expected 7 systems, got %d", len(all))
	}

	expected := []string{"claude-code", "codex", "cursor", "gemini-cli", "github-copilot", "goose", "opencode"}
	for i, name := range expected {
		if all[i].Name() != name {
			t.Errorf("All()[%d] = %q, want %q", i, all[i].Name(), name)
		}
	}
}

func TestByName(t *testing.T) {
	s, ok := ByName("github-copilot")
	if !ok {
		t.Fatal("ByName(github-copilot) not found")
	}
	if s.DisplayName() != "GitHub Copilot" {
		t.Errorf("DisplayName() = %q", s.DisplayName())
	}
	if s.SkillsDir() != ".github/skills" {
		t.Errorf("SkillsDir() = %q", s.SkillsDir())
	}
}

func TestByNames_Unknown(t *testing.T) {
	if _, err := ByNames([]string{"claude-code", "nonexistent"}); err == nil {
		t.Fatal("expected error for unknown system name")
	}
	systems, err := ByNames([]string{"claude-code", " opencode"})
	if err != nil {
		t.Fatalf("ByNames() error: %v", err)
	}
	if len(systems) != 2 {
		t.Fatalf("expected 2, got %d", len(systems))
	}
}

func TestDetectInFolder(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "CLAUDE.md"), []byte("# project"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, ".cursor"), 0o755); err != nil {
		t.Fatal(err)
	}

	got := Names(DetectInFolder(dir))
	if len(got) != 2 || got[0] != "claude-code" || got[1] != "cursor" {
		t.Errorf("detected = %v", got)
	}
}

func makeSkill(t *testing.T, dir, name string) core.EffectiveSkill {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, "SKILL.md"), []byte("---\nname: "+name+"\n---\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return core.EffectiveSkill{Name: name, Path: path}
}

func TestLink_CreatesRelativeSymlinks(t *testing.T) {
	dir := t.TempDir()
	review := makeSkill(t, filepath.Join(dir, ".rulesync/skills/.curated"), "review")
	lint := makeSkill(t, filepath.Join(dir, ".rulesync/skills"), "lint")

	s := NewClaudeCode()
	res, err := s.Link(dir, []core.EffectiveSkill{review, lint})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Linked)+len(res.Copied) != 2 {
		t.Fatalf("result = %+v", res)
	}

	linkPath := filepath.Join(dir, ".claude/skills/review")
	if target, err := os.Readlink(linkPath); err == nil {
		if filepath.IsAbs(target) {
			t.Errorf("symlink target %q should be relative", target)
		}
	}
	if _, err := os.Stat(filepath.Join(linkPath, "SKILL.md")); err != nil {
		t.Errorf("SKILL.md not reachable through link: %v", err)
	}

	// Linking again is a no-op.
	res, err = s.Link(dir, []core.EffectiveSkill{review, lint})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Linked) != 0 || len(res.Removed) != 0 {
		t.Errorf("second link changed things: %+v", res)
	}
}

func TestLink_RemovesStaleAndKeepsForeign(t *testing.T) {
	dir := t.TempDir()
	curated := filepath.Join(dir, ".rulesync/skills/.curated")
	review := makeSkill(t, curated, "review")
	lint := makeSkill(t, curated, "lint")

	// A skill the user put there by hand.
	makeSkill(t, filepath.Join(dir, ".claude/skills"), "handmade")
	foreign := makeSkill(t, curated, "handmade")

	s := NewClaudeCode()
	res, err := s.Link(dir, []core.EffectiveSkill{review, lint, foreign})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Conflicts) != 1 || res.Conflicts[0] != "handmade" {
		t.Errorf("conflicts = %v", res.Conflicts)
	}

	res, err = s.Link(dir, []core.EffectiveSkill{review})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Removed) != 1 || res.Removed[0] != "lint" {
		t.Errorf("removed = %v", res.Removed)
	}
	if pathExists(filepath.Join(dir, ".claude/skills/lint")) {
		t.Error("stale lint link left behind")
	}
	if !pathExists(filepath.Join(dir, ".claude/skills/handmade/SKILL.md")) {
		t.Error("hand-made skill was touched")
	}
}

func TestLink_EmptyCleansUp(t *testing.T) {
	dir := t.TempDir()
	review := makeSkill(t, filepath.Join(dir, "skills"), "review")

	s := NewGemini()
	if _, err := s.Link(dir, []core.EffectiveSkill{review}); err != nil {
		t.Fatal(err)
	}
	if !s.IsActiveInFolder(dir) {
		t.Error("a managed skill dir should mark the system active")
	}
	if _, err := s.Link(dir, nil); err != nil {
		t.Fatal(err)
	}
	if pathExists(filepath.Join(dir, ".gemini")) {
		t.Error(".gemini should be removed once empty")
	}
}

func TestDistribute(t *testing.T) {
	dir := t.TempDir()
	review := makeSkill(t, filepath.Join(dir, "skills"), "review")

	targets, err := ByNames([]string{"opencode", "codex"})
	if err != nil {
		t.Fatal(err)
	}
	results, err := Distribute(dir, targets, []core.EffectiveSkill{review})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	for _, rel := range []string{".opencode/skills/review/SKILL.md", ".codex/skills/review/SKILL.md"} {
		if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
			t.Errorf("%s: %v", rel, err)
		}
	}
}
