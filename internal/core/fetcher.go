package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Fetcher retrieves skill content at a resolved commit and digests it.
type Fetcher struct {
	remote Remote
	policy callPolicy
}

// NewFetcher creates a Fetcher using cfg's timeout and retry settings.
func NewFetcher(remote Remote, cfg *Config) *Fetcher {
	return &Fetcher{remote: remote, policy: policyFromConfig(cfg)}
}

// Fetch writes skill from rs into stageDir/<skill> and returns its record.
// The staged copy must carry a SKILL.md with valid frontmatter. When expected
// is non-empty the digest must match it, otherwise the result is an
// IntegrityMismatch error and the staged copy is removed.
func (f *Fetcher) Fetch(ctx context.Context, rs *ResolvedSource, skill, stageDir, expected string) (*SkillRecord, error) {
	dest := filepath.Join(stageDir, skill)

	err := f.policy.call(ctx, "fetch", rs.Repo, skill, ErrFetchFailed, func(ctx context.Context) error {
		// A failed attempt may have left a partial copy behind.
		if err := os.RemoveAll(dest); err != nil {
			return err
		}
		return f.remote.FetchSkill(ctx, rs, skill, dest)
	})
	if err != nil {
		_ = os.RemoveAll(dest)
		return nil, err
	}

	if _, err := ParseSkillMd(filepath.Join(dest, skillFileName)); err != nil {
		_ = os.RemoveAll(dest)
		se := NewSourceError(ErrFetchFailed, rs.Repo, fmt.Errorf("invalid skill: %w", err))
		se.Skill = skill
		return nil, se
	}

	var integrity string
	if expected != "" {
		integrity, err = VerifyIntegrity(dest, expected, rs.Repo, skill)
	} else {
		integrity, err = ComputeIntegrity(dest)
	}
	if err != nil {
		_ = os.RemoveAll(dest)
		return nil, asSourceError(err, rs.Repo, skill, ErrFetchFailed)
	}

	return &SkillRecord{Name: skill, Integrity: integrity, Source: rs}, nil
}
