package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseSkillMd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "SKILL.md")
	content := "---\nname: review\ndescription: Reviews pull requests\nlicense: MIT\n---\n\n# Review\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	md, err := ParseSkillMd(path)
	if err != nil {
		t.Fatal(err)
	}
	if md.Name != "review" || md.Description != "Reviews pull requests" || md.License != "MIT" {
		t.Errorf("metadata = %+v", md)
	}
}

func TestParseSkillMd_Invalid(t *testing.T) {
	for name, content := range map[string]string{
		"empty":          "",
		"no frontmatter": "# Title\n",
		"unterminated":   "---\nname: x\n",
		"no name":        "---\ndescription: y\n---\n",
		"bad yaml":       "---\nname: [x\n---\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "SKILL.md")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := ParseSkillMd(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestScanLocalSkills(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	local := filepath.Join(dir, cfg.LocalDir)
	writeSkill(t, local, "zeta")
	writeSkill(t, local, "alpha")
	writeSkill(t, local, ".hidden")
	writeSkill(t, filepath.Join(dir, cfg.CuratedDir), "curated")
	if err := os.MkdirAll(filepath.Join(local, "no-skill-md"), 0o755); err != nil {
		t.Fatal(err)
	}

	skills, err := ScanLocalSkills(dir, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(skills) != 2 || skills[0].Name != "alpha" || skills[1].Name != "zeta" {
		t.Errorf("skills = %+v", skills)
	}
}

func TestScanLocalSkills_MissingDir(t *testing.T) {
	skills, err := ScanLocalSkills(t.TempDir(), testConfig())
	if err != nil || skills != nil {
		t.Errorf("skills=%v err=%v", skills, err)
	}
}

func TestEffectiveSkills(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	writeSkill(t, filepath.Join(dir, cfg.LocalDir), "shared")
	writeSkill(t, filepath.Join(dir, cfg.CuratedDir), "shared")
	writeSkill(t, filepath.Join(dir, cfg.CuratedDir), "review")
	writeSkill(t, filepath.Join(dir, cfg.CuratedDir), "orphan")

	lf := NewLockFile()
	lf.Sources["acme/skills"] = &LockedSource{Skills: map[string]LockedSkill{
		"shared": {Integrity: "sha256-a"},
		"review": {Integrity: "sha256-b"},
	}}

	skills, err := EffectiveSkills(dir, cfg, lf)
	if err != nil {
		t.Fatal(err)
	}
	if len(skills) != 2 {
		t.Fatalf("skills = %+v", skills)
	}
	if skills[0].Name != "review" || !skills[0].Curated || skills[0].Source != "acme/skills" {
		t.Errorf("review = %+v", skills[0])
	}
	if skills[1].Name != "shared" || skills[1].Curated {
		t.Errorf("shared should be the local copy: %+v", skills[1])
	}
}
