package core

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

const integrityPrefix = "sha256-"

// ComputeIntegrity digests a skill directory. Files are visited in lexical
// order of their slash-separated relative paths; each contributes its path,
// a NUL, its content and another NUL. Directories and .git are ignored, so
// the digest depends only on file names and bytes.
func ComputeIntegrity(dir string) (string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if excludedFiles[d.Name()] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("computing integrity of %s: %w", dir, err)
	}
	sort.Strings(files)

	h := sha256.New()
	for _, rel := range files {
		_, _ = io.WriteString(h, rel)
		_, _ = h.Write([]byte{0})
		if err := hashFile(h, filepath.Join(dir, filepath.FromSlash(rel))); err != nil {
			return "", fmt.Errorf("computing integrity of %s: %w", dir, err)
		}
		_, _ = h.Write([]byte{0})
	}
	return integrityPrefix + base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// VerifyIntegrity returns an IntegrityMismatch SourceError when the digest of
// dir differs from want.
func VerifyIntegrity(dir, want, repo, skill string) (string, error) {
	got, err := ComputeIntegrity(dir)
	if err != nil {
		return "", err
	}
	if got != want {
		se := NewSourceError(ErrIntegrityMismatch, repo,
			fmt.Errorf("locked %s, fetched %s", want, got))
		se.Skill = skill
		return got, se
	}
	return got, nil
}
