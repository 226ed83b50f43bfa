package core

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

const (
	defaultRef        = "HEAD"
	defaultSkillsPath = "skills"
)

// ownerRepoPattern matches "owner/repo" format (2 segments, no protocol).
var ownerRepoPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+/[a-zA-Z0-9_.-]+$`)

// commitPattern matches a full 40-hex commit SHA.
var commitPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// IsCommitSHA reports whether ref is a full, lowercase commit SHA.
func IsCommitSHA(ref string) bool {
	return commitPattern.MatchString(ref)
}

// ParseSource parses a source locator into a Source.
//
// Supported formats:
//   - "owner/repo"                                  → default branch, skills/
//   - "owner/repo@ref"                              → branch, tag or commit
//   - "owner/repo:path/to/skills"                   → custom skills directory
//   - "owner/repo@ref:path/to/skills"               → both
//   - "https://github.com/owner/repo"               → GitHub URL
//   - "https://github.com/owner/repo/tree/ref/path" → GitHub URL with ref and path
func ParseSource(input string) (*Source, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty source")
	}

	if strings.HasPrefix(input, "https://") || strings.HasPrefix(input, "http://") {
		return parseGitHubURL(input)
	}

	locator, subPath, _ := strings.Cut(input, ":")
	repo, ref, hasRef := strings.Cut(locator, "@")
	if hasRef && ref == "" {
		return nil, fmt.Errorf("empty ref in source %q", input)
	}
	if !ownerRepoPattern.MatchString(repo) {
		return nil, fmt.Errorf("unrecognized source format: %q (want owner/repo[@ref][:path])", input)
	}

	cleaned, err := cleanSkillsPath(subPath)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", input, err)
	}

	return newSource(repo, ref, cleaned), nil
}

func parseGitHubURL(input string) (*Source, error) {
	u, err := url.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Host != "github.com" {
		return nil, fmt.Errorf("unsupported host %q: only github.com URLs are accepted, use cloneURLOverrides for other hosts", u.Host)
	}

	// Path segments: /owner/repo[/tree/ref[/subpath]]
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return nil, fmt.Errorf("URL %q does not name a repository", input)
	}
	repo := parts[0] + "/" + strings.TrimSuffix(parts[1], ".git")
	if !ownerRepoPattern.MatchString(repo) {
		return nil, fmt.Errorf("URL %q does not name a repository", input)
	}

	var ref, subPath string
	if len(parts) >= 4 && parts[2] == "tree" {
		ref = parts[3]
		if len(parts) > 4 {
			subPath = strings.Join(parts[4:], "/")
		}
	}

	cleaned, err := cleanSkillsPath(subPath)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", input, err)
	}
	return newSource(repo, ref, cleaned), nil
}

func newSource(repo, ref, skillsPath string) *Source {
	owner, name, _ := strings.Cut(repo, "/")
	return &Source{
		Repo:     repo,
		Owner:    owner,
		Name:     name,
		Ref:      ref,
		Path:     skillsPath,
		CloneURL: fmt.Sprintf("https://github.com/%s/%s.git", owner, name),
	}
}

// cleanSkillsPath normalizes the path part of a locator. Empty means the
// default skills/ directory; "." means the repository root.
func cleanSkillsPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return defaultSkillsPath, nil
	}
	p = path.Clean(strings.Trim(p, "/"))
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("path %q escapes the repository", p)
	}
	return p, nil
}

// ApplyCloneURLOverride replaces the clone URL when overrides contains the
// source's repo. Keys are matched case-insensitively as "owner/repo".
func (s *Source) ApplyCloneURLOverride(overrides map[string]string) {
	if len(overrides) == 0 {
		return
	}
	key := strings.ToLower(s.Repo)
	for k, v := range overrides {
		if strings.ToLower(k) == key && v != "" {
			s.CloneURL = v
			return
		}
	}
}

// ParseSources parses the config's source list in declaration order.
// Duplicate repositories are rejected: the lockfile keeps one entry per repo.
func ParseSources(specs []SourceSpec, overrides map[string]string) ([]Source, error) {
	seen := make(map[string]int, len(specs))
	sources := make([]Source, 0, len(specs))
	for i, spec := range specs {
		src, err := ParseSource(spec.Source)
		if err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		key := strings.ToLower(src.Repo)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("sources[%d]: repository %s is already declared at sources[%d]", i, src.Repo, prev)
		}
		seen[key] = i
		if err := validateAllowList(spec.Skills); err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}

		src.Index = i
		src.Skills = append([]string(nil), spec.Skills...)
		src.ApplyCloneURLOverride(overrides)
		sources = append(sources, *src)
	}
	return sources, nil
}
