// Package core provides the business logic for skillsource: resolving skill
// sources to commits, choosing which skills to fetch, fetching them and
// recording the result in a lockfile. It has zero UI dependencies.
package core

import "time"

// SourceSpec is a single source declaration as written in the project config.
type SourceSpec struct {
	Source string   `json:"source"`
	Skills []string `json:"skills,omitempty"`
}

// Source is a parsed SourceSpec.
type Source struct {
	Repo     string   // "owner/repo"; the identity of the source
	Owner    string   // Repository owner
	Name     string   // Repository name
	Ref      string   // Requested branch/tag/commit; empty means the default branch
	Path     string   // Directory holding the skills (default "skills")
	Skills   []string // Allow-list of skill names or glob patterns; empty admits everything
	Index    int      // Position in the config list; lower wins
	CloneURL string   // Git URL used by the transport
}

// RequestedRef returns the ref recorded in the lockfile for this source.
// An omitted ref is recorded as HEAD, the remote's default branch.
func (s Source) RequestedRef() string {
	if s.Ref == "" {
		return defaultRef
	}
	return s.Ref
}

// ResolvedSource is a Source bound to a commit for one install run.
type ResolvedSource struct {
	Source
	Commit     string
	ResolvedAt time.Time
}

// SkillRecord is a skill that ended up in curated storage during a run.
type SkillRecord struct {
	Name      string
	Integrity string
	Source    *ResolvedSource
}

// LockFile is the parsed skillsource.lock.json.
type LockFile struct {
	LockfileVersion int                      `json:"lockfileVersion"`
	Sources         map[string]*LockedSource `json:"sources"`
}

// LockedSource is the pinned state of one repository.
type LockedSource struct {
	RequestedRef string                 `json:"requestedRef"`
	ResolvedRef  string                 `json:"resolvedRef"`
	ResolvedAt   string                 `json:"resolvedAt"`
	Skills       map[string]LockedSkill `json:"skills"`
}

// LockedSkill is the pinned state of one skill.
type LockedSkill struct {
	Integrity string `json:"integrity"`
}

// LocalSkill is a skill authored directly in the project.
type LocalSkill struct {
	Name string
	Path string
}

// Selection is one (source, skill) pair chosen by SelectSkills.
type Selection struct {
	Source *ResolvedSource
	Skill  string
}

// SkipReason says why a candidate skill was not selected.
type SkipReason string

const (
	SkipLocal     SkipReason = "local skill takes precedence"
	SkipAllowList SkipReason = "not in allow-list"
	SkipShadowed  SkipReason = "provided by an earlier source"
	SkipUpToDate  SkipReason = "curated copy matches lockfile"
	SkipOutranked SkipReason = "explicitly requested by another source"
)

// SkippedSkill is a candidate that did not lead to a fetch.
type SkippedSkill struct {
	Skill  string
	Source string
	Reason SkipReason
}

// EffectiveSkill is a skill visible to agents after an install: every local
// skill plus every curated skill that is not shadowed by a local one.
type EffectiveSkill struct {
	Name    string
	Path    string
	Curated bool
	Source  string // repo for curated skills
}

// UpdateInfo reports whether a source's requested ref moved on the remote.
type UpdateInfo struct {
	Repo         string `json:"repo"`
	RequestedRef string `json:"requestedRef"`
	LockedRef    string `json:"lockedRef"`
	RemoteRef    string `json:"remoteRef"`
	HasUpdate    bool   `json:"hasUpdate"`
	Error        error  `json:"-"`
}
