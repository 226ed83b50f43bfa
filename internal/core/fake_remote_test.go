package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"
)

// fakeTree maps skill name to file path to content.
type fakeTree map[string]map[string]string

type fakeRepo struct {
	refs  map[string]string   // requested ref -> commit
	trees map[string]fakeTree // commit -> skills
}

// fakeRemote is an in-memory Remote with call counters and failure hooks.
type fakeRemote struct {
	mu    sync.Mutex
	repos map[string]*fakeRepo

	resolveCalls map[string]int
	listCalls    map[string]int
	fetchCalls   map[string]int // "owner/repo/skill"

	// fetchFailures makes the first n fetches of "owner/repo/skill" fail.
	fetchFailures map[string]int
	// hang makes every call on the repo block until its context ends.
	hang map[string]bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		repos:         map[string]*fakeRepo{},
		resolveCalls:  map[string]int{},
		listCalls:     map[string]int{},
		fetchCalls:    map[string]int{},
		fetchFailures: map[string]int{},
		hang:          map[string]bool{},
	}
}

// sha returns a deterministic 40-hex commit id.
func sha(n int) string {
	return fmt.Sprintf("%040x", n)
}

// skillFiles returns a minimal valid skill with an extra body line.
func skillFiles(name, body string) map[string]string {
	return map[string]string{
		"SKILL.md": fmt.Sprintf("---\nname: %s\ndescription: %s skill\n---\n\n%s\n", name, name, body),
	}
}

// publish sets ref to commit in repo and stores the commit's skills.
func (f *fakeRemote) publish(repo, ref, commit string, skills ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.repos[repo]
	if r == nil {
		r = &fakeRepo{refs: map[string]string{}, trees: map[string]fakeTree{}}
		f.repos[repo] = r
	}
	r.refs[ref] = commit
	tree := fakeTree{}
	for _, s := range skills {
		tree[s] = skillFiles(s, repo+"@"+commit)
	}
	r.trees[commit] = tree
}

// setFile overwrites one file of a skill at a commit.
func (f *fakeRemote) setFile(repo, commit, skill, file, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[repo].trees[commit][skill][file] = content
}

func (f *fakeRemote) count(m map[string]int, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return m[key]
}

func (f *fakeRemote) wait(ctx context.Context, repo string) error {
	f.mu.Lock()
	hang := f.hang[repo]
	f.mu.Unlock()
	if hang {
		<-ctx.Done()
	}
	return ctx.Err()
}

func (f *fakeRemote) ResolveRef(ctx context.Context, src Source) (string, error) {
	f.mu.Lock()
	f.resolveCalls[src.Repo]++
	f.mu.Unlock()
	if err := f.wait(ctx, src.Repo); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.repos[src.Repo]
	if r == nil {
		return "", NewSourceError(ErrSourceNotFound, src.Repo, fmt.Errorf("repository not found"))
	}
	commit, ok := r.refs[src.RequestedRef()]
	if !ok {
		return "", NewSourceError(ErrRefNotFound, src.Repo, fmt.Errorf("ref %s not found", src.RequestedRef()))
	}
	return commit, nil
}

func (f *fakeRemote) ListSkills(ctx context.Context, rs *ResolvedSource) ([]string, error) {
	f.mu.Lock()
	f.listCalls[rs.Repo]++
	f.mu.Unlock()
	if err := f.wait(ctx, rs.Repo); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	tree, ok := f.repos[rs.Repo].trees[rs.Commit]
	if !ok {
		return nil, NewSourceError(ErrPathNotFound, rs.Repo, fmt.Errorf("%s not found at %s", rs.Path, rs.Commit))
	}
	var names []string
	for name := range tree {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeRemote) FetchSkill(ctx context.Context, rs *ResolvedSource, skill, dest string) error {
	key := rs.Repo + "/" + skill
	f.mu.Lock()
	f.fetchCalls[key]++
	failing := f.fetchFailures[key] > 0
	if failing {
		f.fetchFailures[key]--
	}
	f.mu.Unlock()
	if err := f.wait(ctx, rs.Repo); err != nil {
		return err
	}
	if failing {
		return fmt.Errorf("connection reset by peer")
	}

	f.mu.Lock()
	files := map[string]string{}
	for name, content := range f.repos[rs.Repo].trees[rs.Commit][skill] {
		files[name] = content
	}
	f.mu.Unlock()

	for name, content := range files {
		p := filepath.Join(dest, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// testConfig returns a default config with fast retries.
func testConfig(specs ...SourceSpec) *Config {
	cfg := defaultConfig()
	cfg.Sources = specs
	cfg.Retry.InitialDelay = Duration(time.Millisecond)
	cfg.Retry.MaxDelay = Duration(5 * time.Millisecond)
	return cfg
}

// fixedClock returns a clock that always reports t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func writeSkill(t testing.TB, dir, name string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "---\nname: " + name + "\ndescription: local\n---\n"
	if err := os.WriteFile(filepath.Join(path, skillFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func hasSkipped(skipped []SkippedSkill, skill, source string, reason SkipReason) bool {
	for _, s := range skipped {
		if s.Skill == skill && s.Source == source && s.Reason == reason {
			return true
		}
	}
	return false
}
