package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	LockFileName       = "skillsource.lock.json"
	currentLockVersion = 1
)

// LockFilePath returns the full path to the lock file in the given directory.
func LockFilePath(dir string) string {
	return filepath.Join(dir, LockFileName)
}

// NewLockFile returns an empty lock file at the current version.
func NewLockFile() *LockFile {
	return &LockFile{
		LockfileVersion: currentLockVersion,
		Sources:         map[string]*LockedSource{},
	}
}

// ReadLockFile reads and parses the lock file from the given directory.
// Returns nil, nil if the file does not exist.
func ReadLockFile(dir string) (*LockFile, error) {
	data, err := os.ReadFile(LockFilePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading lock file: %w", err)
	}

	var lf LockFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parsing lock file: %w", err)
	}
	if lf.LockfileVersion > currentLockVersion {
		return nil, fmt.Errorf("lock file version %d is newer than supported version %d", lf.LockfileVersion, currentLockVersion)
	}
	if lf.Sources == nil {
		lf.Sources = map[string]*LockedSource{}
	}
	for repo, entry := range lf.Sources {
		if entry == nil {
			return nil, fmt.Errorf("parsing lock file: source %s has no entry", repo)
		}
		if entry.Skills == nil {
			entry.Skills = map[string]LockedSkill{}
		}
	}
	return &lf, nil
}

// MarshalLockFile renders the lock file exactly as it is written to disk:
// two-space indentation, keys sorted, trailing newline. Identical content
// always produces identical bytes.
func MarshalLockFile(lf *LockFile) ([]byte, error) {
	out := *lf
	if out.LockfileVersion == 0 {
		out.LockfileVersion = currentLockVersion
	}
	if out.Sources == nil {
		out.Sources = map[string]*LockedSource{}
	}
	// encoding/json sorts map keys, which makes sources and skills ordered.
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling lock file: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteLockFile writes the lock file to the given directory atomically.
func WriteLockFile(dir string, lf *LockFile) error {
	data, err := MarshalLockFile(lf)
	if err != nil {
		return err
	}
	return writeFileAtomic(LockFilePath(dir), data)
}

// Entry returns the lock entry for repo, or nil.
func (lf *LockFile) Entry(repo string) *LockedSource {
	if lf == nil {
		return nil
	}
	return lf.Sources[repo]
}

// Integrity returns the locked integrity of skill under repo, or "".
func (lf *LockFile) Integrity(repo, skill string) string {
	entry := lf.Entry(repo)
	if entry == nil {
		return ""
	}
	return entry.Skills[skill].Integrity
}

// formatResolvedAt renders a resolution time the way it is stored.
func formatResolvedAt(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// parseResolvedAt parses a stored resolution time. Unparseable values yield
// the zero time and false.
func parseResolvedAt(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// TruncateCommit returns the first 7 characters of a commit hash,
// or the full string if it's shorter.
func TruncateCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
