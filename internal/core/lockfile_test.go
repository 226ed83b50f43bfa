package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReadLockFile_NotExists(t *testing.T) {
	lf, err := ReadLockFile(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lf != nil {
		t.Fatalf("expected nil lock file, got %+v", lf)
	}
}

func TestReadLockFile_Valid(t *testing.T) {
	dir := t.TempDir()
	content := `{
  "lockfileVersion": 1,
  "sources": {
    "acme/skills": {
      "requestedRef": "main",
      "resolvedRef": "` + sha(1) + `",
      "resolvedAt": "2026-01-02T03:04:05Z",
      "skills": {
        "review": {"integrity": "sha256-abc="}
      }
    },
    "other/skills": {
      "requestedRef": "HEAD",
      "resolvedRef": "` + sha(2) + `",
      "resolvedAt": "2026-01-02T03:04:05Z"
    }
  }
}`
	if err := os.WriteFile(filepath.Join(dir, LockFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	lf, err := ReadLockFile(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lf.LockfileVersion != 1 {
		t.Errorf("lockfileVersion = %d, want 1", lf.LockfileVersion)
	}
	if got := lf.Integrity("acme/skills", "review"); got != "sha256-abc=" {
		t.Errorf("integrity = %q", got)
	}
	if lf.Entry("other/skills").Skills == nil {
		t.Error("missing skills map should be normalized to empty")
	}
	if lf.Integrity("missing/repo", "review") != "" {
		t.Error("unknown repo should have no integrity")
	}
}

func TestReadLockFile_Invalid(t *testing.T) {
	for name, content := range map[string]string{
		"json":    "not json",
		"version": `{"lockfileVersion": 2, "sources": {}}`,
		"null":    `{"lockfileVersion": 1, "sources": {"a/b": null}}`,
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, LockFileName), []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := ReadLockFile(dir); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestWriteLockFile_DeterministicBytes(t *testing.T) {
	dir := t.TempDir()
	lf := NewLockFile()
	lf.Sources["z/last"] = &LockedSource{
		RequestedRef: "HEAD",
		ResolvedRef:  sha(2),
		ResolvedAt:   formatResolvedAt(time.Date(2026, 1, 2, 3, 4, 5, 999, time.UTC)),
		Skills:       map[string]LockedSkill{},
	}
	lf.Sources["a/first"] = &LockedSource{
		RequestedRef: "v1",
		ResolvedRef:  sha(1),
		ResolvedAt:   "2026-01-02T03:04:05Z",
		Skills: map[string]LockedSkill{
			"zeta":  {Integrity: "sha256-z"},
			"alpha": {Integrity: "sha256-a"},
		},
	}

	if err := WriteLockFile(dir, lf); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(LockFilePath(dir))
	if err != nil {
		t.Fatal(err)
	}

	want := `{
  "lockfileVersion": 1,
  "sources": {
    "a/first": {
      "requestedRef": "v1",
      "resolvedRef": "` + sha(1) + `",
      "resolvedAt": "2026-01-02T03:04:05Z",
      "skills": {
        "alpha": {
          "integrity": "sha256-a"
        },
        "zeta": {
          "integrity": "sha256-z"
        }
      }
    },
    "z/last": {
      "requestedRef": "HEAD",
      "resolvedRef": "` + sha(2) + `",
      "resolvedAt": "2026-01-02T03:04:05Z",
      "skills": {}
    }
  }
}
`
	if string(data) != want {
		t.Errorf("lockfile =\n%s\nwant\n%s", data, want)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want only the lockfile", len(entries))
	}
}

func TestParseResolvedAt(t *testing.T) {
	at, ok := parseResolvedAt("2026-01-02T03:04:05Z")
	if !ok || formatResolvedAt(at) != "2026-01-02T03:04:05Z" {
		t.Errorf("round trip failed: %v %v", at, ok)
	}
	if _, ok := parseResolvedAt("yesterday"); ok {
		t.Error("expected parse failure")
	}
}

func TestTruncateCommit(t *testing.T) {
	if got := TruncateCommit(sha(1)); got != "0000000" {
		t.Errorf("got %q", got)
	}
	if got := TruncateCommit("abc"); got != "abc" {
		t.Errorf("got %q", got)
	}
}
