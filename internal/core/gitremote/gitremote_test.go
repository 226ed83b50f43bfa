package gitremote

import (
	"context"
	"encoding/base64"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barysiuk/skillsource/internal/core"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func gitRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	full := append([]string{"-c", "user.name=test", "-c", "user.email=test@example.com", "-c", "commit.gpgsign=false", "-c", "tag.gpgsign=false"}, args...)
	cmd := exec.Command("git", full...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_CONFIG_NOSYSTEM=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// commitFiles writes files into repo, commits them and returns the commit SHA.
func commitFiles(t *testing.T, repo string, files map[string]string) string {
	t.Helper()
	writeFiles(t, repo, files)
	gitRun(t, repo, "add", "-A")
	gitRun(t, repo, "commit", "-q", "-m", "update")
	return gitRun(t, repo, "rev-parse", "HEAD")
}

type fixture struct {
	repo   string
	url    string
	first  string
	second string
	source core.Source
	remote *Remote
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	requireGit(t)

	repo := t.TempDir()
	gitRun(t, repo, "init", "-q", "-b", "main")
	first := commitFiles(t, repo, map[string]string{
		"skills/review/SKILL.md":         "---\nname: review\n---\nv1\n",
		"skills/review/scripts/check.sh": "echo check\n",
		"skills/lint/SKILL.md":           "---\nname: lint\n---\n",
		"skills/notes/README.md":         "not a skill\n",
		"skills/.hidden/SKILL.md":        "---\nname: hidden\n---\n",
	})
	gitRun(t, repo, "tag", "-a", "v1", "-m", "v1")
	second := commitFiles(t, repo, map[string]string{
		"skills/review/SKILL.md": "---\nname: review\n---\nv2\n",
	})

	remote, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = remote.Close() })

	url := "file://" + filepath.ToSlash(repo)
	src, err := core.ParseSource("acme/skills")
	require.NoError(t, err)
	src.ApplyCloneURLOverride(map[string]string{"acme/skills": url})

	return &fixture{repo: repo, url: url, first: first, second: second, source: *src, remote: remote}
}

func (f *fixture) resolved(commit string) *core.ResolvedSource {
	return &core.ResolvedSource{Source: f.source, Commit: commit}
}

func TestResolveRef(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := map[string]string{
		"":     f.second,
		"main": f.second,
		"v1":   f.first,
	}
	for ref, want := range tests {
		src := f.source
		src.Ref = ref
		got, err := f.remote.ResolveRef(ctx, src)
		require.NoError(t, err, "ref %q", ref)
		assert.Equal(t, want, got, "ref %q", ref)
	}

	src := f.source
	src.Ref = "does-not-exist"
	_, err := f.remote.ResolveRef(ctx, src)
	require.Error(t, err)
	assert.Equal(t, core.ErrRefNotFound, core.KindOf(err))
}

func TestResolveRef_MissingRepository(t *testing.T) {
	f := newFixture(t)
	src := f.source
	src.CloneURL = "file://" + filepath.ToSlash(filepath.Join(t.TempDir(), "nope"))

	_, err := f.remote.ResolveRef(context.Background(), src)
	require.Error(t, err)
	assert.Equal(t, core.ErrSourceNotFound, core.KindOf(err))
}

func TestListSkills(t *testing.T) {
	f := newFixture(t)

	names, err := f.remote.ListSkills(context.Background(), f.resolved(f.second))
	require.NoError(t, err)
	assert.Equal(t, []string{"lint", "review"}, names)
}

func TestListSkills_PathNotFound(t *testing.T) {
	f := newFixture(t)
	rs := f.resolved(f.second)
	rs.Path = "elsewhere"

	_, err := f.remote.ListSkills(context.Background(), rs)
	require.Error(t, err)
	assert.Equal(t, core.ErrPathNotFound, core.KindOf(err))
}

func TestFetchSkill_PinnedCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dest := filepath.Join(t.TempDir(), "review")
	require.NoError(t, f.remote.FetchSkill(ctx, f.resolved(f.first), "review", dest))

	data, err := os.ReadFile(filepath.Join(dest, "SKILL.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "v1")
	assert.FileExists(t, filepath.Join(dest, "scripts", "check.sh"))
	assert.NoDirExists(t, filepath.Join(dest, ".git"))

	dest2 := filepath.Join(t.TempDir(), "review")
	require.NoError(t, f.remote.FetchSkill(ctx, f.resolved(f.second), "review", dest2))
	data, err = os.ReadFile(filepath.Join(dest2, "SKILL.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "v2")
}

func TestFetchSkill_MissingSkill(t *testing.T) {
	f := newFixture(t)

	err := f.remote.FetchSkill(context.Background(), f.resolved(f.second), "ghost", filepath.Join(t.TempDir(), "ghost"))
	require.Error(t, err)
	assert.Equal(t, core.ErrPathNotFound, core.KindOf(err))
}

func TestFetchSkill_UnknownCommit(t *testing.T) {
	f := newFixture(t)
	missing := strings.Repeat("ab", 20)

	err := f.remote.FetchSkill(context.Background(), f.resolved(missing), "review", filepath.Join(t.TempDir(), "review"))
	require.Error(t, err)
	assert.Equal(t, core.ErrRefNotFound, core.KindOf(err))
}

func TestCheckoutIsShared(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rs := f.resolved(f.second)

	_, err := f.remote.ListSkills(ctx, rs)
	require.NoError(t, err)
	require.NoError(t, f.remote.FetchSkill(ctx, rs, "lint", filepath.Join(t.TempDir(), "lint")))

	entries, err := os.ReadDir(f.remote.workDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPickRef(t *testing.T) {
	refs := parseLsRemote(strings.Join([]string{
		"1111111111111111111111111111111111111111\tHEAD",
		"1111111111111111111111111111111111111111\trefs/heads/main",
		"2222222222222222222222222222222222222222\trefs/heads/v1",
		"3333333333333333333333333333333333333333\trefs/tags/v1",
		"4444444444444444444444444444444444444444\trefs/tags/v1^{}",
		"5555555555555555555555555555555555555555\trefs/tags/v2",
		"5555555aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\trefs/heads/other",
	}, "\n"))

	tests := []struct {
		ref  string
		want string
		ok   bool
	}{
		{"HEAD", strings.Repeat("1", 40), true},
		{"main", strings.Repeat("1", 40), true},
		{"v1", strings.Repeat("2", 40), true},
		{"v2", strings.Repeat("5", 40), true},
		{"refs/tags/v1^{}", strings.Repeat("4", 40), true},
		{"2222222", strings.Repeat("2", 40), true},
		{"5555555", "", false},
		{"nope", "", false},
	}
	for _, tt := range tests {
		got, ok := pickRef(refs, tt.ref)
		assert.Equal(t, tt.ok, ok, "ref %q", tt.ref)
		assert.Equal(t, tt.want, got, "ref %q", tt.ref)
	}
}

func TestAuthArgs(t *testing.T) {
	r := &Remote{}
	assert.Empty(t, r.authArgs())

	WithToken(" secret ")(r)
	args := r.authArgs()
	require.Len(t, args, 2)
	want := base64.StdEncoding.EncodeToString([]byte("x-access-token:secret"))
	assert.Equal(t, "http.extraHeader=Authorization: Basic "+want, args[1])
	assert.Equal(t, "fatal: *** rejected", redact("fatal: secret rejected", r.token))
}
