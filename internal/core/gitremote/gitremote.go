// Package gitremote implements core.Remote on top of the git CLI. Refs are
// resolved with ls-remote; content is read from a shallow checkout of the
// resolved commit that is shared by every skill of the same source.
package gitremote

import (
	"context"
	"encoding/base64"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/barysiuk/skillsource/internal/core"
	"github.com/barysiuk/skillsource/internal/logger"
)

// Remote talks to git repositories through the git binary.
type Remote struct {
	token   string
	workDir string

	mu        sync.Mutex
	checkouts map[string]*checkout
}

// checkout is a commit materialized on disk. ready is closed once dir or
// err is set.
type checkout struct {
	ready chan struct{}
	dir   string
	err   error
}

// Option configures a Remote.
type Option func(*Remote)

// WithToken authenticates HTTPS requests with a bearer token.
func WithToken(token string) Option {
	return func(r *Remote) { r.token = strings.TrimSpace(token) }
}

// New creates a Remote with a private scratch directory. Call Close to
// remove it.
func New(opts ...Option) (*Remote, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, errors.Wrap(err, "git is required")
	}
	workDir, err := os.MkdirTemp("", "skillsource-git-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create git work directory")
	}
	r := &Remote{workDir: workDir, checkouts: map[string]*checkout{}}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Close removes every checkout made by the Remote.
func (r *Remote) Close() error {
	return os.RemoveAll(r.workDir)
}

// ResolveRef implements core.Remote.
func (r *Remote) ResolveRef(ctx context.Context, src core.Source) (string, error) {
	out, err := r.git(ctx, "", "ls-remote", src.CloneURL)
	if err != nil {
		return "", r.classify(ctx, src.Repo, "ls-remote", out, err, core.ErrSourceNotFound)
	}

	commit, ok := pickRef(parseLsRemote(out), src.RequestedRef())
	if !ok {
		return "", core.NewSourceError(core.ErrRefNotFound, src.Repo,
			errors.Errorf("ref %q not found on %s", src.RequestedRef(), src.CloneURL))
	}
	return commit, nil
}

// ListSkills implements core.Remote.
func (r *Remote) ListSkills(ctx context.Context, rs *core.ResolvedSource) ([]string, error) {
	dir, err := r.checkoutAt(ctx, rs)
	if err != nil {
		return nil, err
	}

	base := filepath.Join(dir, filepath.FromSlash(rs.Path))
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, core.NewSourceError(core.ErrPathNotFound, rs.Repo,
			errors.Errorf("%s does not exist at %s", rs.Path, core.TruncateCommit(rs.Commit)))
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(base, e.Name(), "SKILL.md")); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// FetchSkill implements core.Remote.
func (r *Remote) FetchSkill(ctx context.Context, rs *core.ResolvedSource, skill, dest string) error {
	dir, err := r.checkoutAt(ctx, rs)
	if err != nil {
		return err
	}

	src := filepath.Join(dir, filepath.FromSlash(rs.Path), skill)
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		se := core.NewSourceError(core.ErrPathNotFound, rs.Repo,
			errors.Errorf("skill %s does not exist at %s", skill, core.TruncateCommit(rs.Commit)))
		se.Skill = skill
		return se
	}
	return errors.Wrapf(core.CopyDir(src, dest), "failed to copy skill %s", skill)
}

// checkoutAt returns a working tree of rs.Commit, fetching it once per
// clone URL and commit. Failed fetches are forgotten so a retry starts over.
func (r *Remote) checkoutAt(ctx context.Context, rs *core.ResolvedSource) (string, error) {
	key := rs.CloneURL + "@" + rs.Commit

	r.mu.Lock()
	c, ok := r.checkouts[key]
	if ok {
		r.mu.Unlock()
		select {
		case <-c.ready:
			return c.dir, c.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c = &checkout{ready: make(chan struct{})}
	r.checkouts[key] = c
	r.mu.Unlock()

	c.dir, c.err = r.fetchCommit(ctx, rs)
	if c.err != nil {
		r.mu.Lock()
		delete(r.checkouts, key)
		r.mu.Unlock()
	}
	close(c.ready)
	return c.dir, c.err
}

// fetchCommit materializes one commit: git init, a shallow fetch of the SHA
// and a checkout. Servers that refuse fetching by SHA get a full fetch.
func (r *Remote) fetchCommit(ctx context.Context, rs *core.ResolvedSource) (string, error) {
	log := logger.G(ctx).WithField("source", rs.Repo).WithField("commit", core.TruncateCommit(rs.Commit))

	dir, err := os.MkdirTemp(r.workDir, "checkout-*")
	if err != nil {
		return "", errors.Wrap(err, "failed to create checkout directory")
	}
	fail := func(err error) (string, error) {
		_ = os.RemoveAll(dir)
		return "", err
	}

	if out, err := r.git(ctx, dir, "init", "-q"); err != nil {
		return fail(errors.Wrapf(err, "git init failed: %s", strings.TrimSpace(out)))
	}
	if out, err := r.git(ctx, dir, "remote", "add", "origin", rs.CloneURL); err != nil {
		return fail(errors.Wrapf(err, "git remote add failed: %s", strings.TrimSpace(out)))
	}

	out, err := r.git(ctx, dir, "fetch", "-q", "--depth", "1", "origin", rs.Commit)
	if err != nil {
		if ctx.Err() != nil {
			return fail(r.classify(ctx, rs.Repo, "fetch", out, err, core.ErrRefNotFound))
		}
		log.WithField("output", strings.TrimSpace(out)).Debug("shallow fetch by SHA refused, fetching all refs")
		out, err = r.git(ctx, dir, "fetch", "-q", "origin",
			"+refs/heads/*:refs/remotes/origin/*", "+refs/tags/*:refs/tags/*")
		if err != nil {
			return fail(r.classify(ctx, rs.Repo, "fetch", out, err, core.ErrRefNotFound))
		}
	}

	if out, err := r.git(ctx, dir, "-c", "advice.detachedHead=false", "checkout", "-q", rs.Commit); err != nil {
		if ctx.Err() != nil {
			return fail(r.classify(ctx, rs.Repo, "checkout", out, err, core.ErrRefNotFound))
		}
		return fail(core.NewSourceError(core.ErrRefNotFound, rs.Repo,
			errors.Errorf("commit %s not found on the remote (it may have been force-pushed away)", rs.Commit)))
	}

	log.Debug("checked out commit")
	return dir, nil
}

// git runs the git binary in dir (or the current directory when empty) and
// returns its combined output.
func (r *Remote) git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append(r.authArgs(), args...)...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// authArgs injects the token as an HTTP header so it never appears in a URL
// or in git's config on disk.
func (r *Remote) authArgs() []string {
	if r.token == "" {
		return nil
	}
	basic := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + r.token))
	return []string{"-c", "http.extraHeader=Authorization: Basic " + basic}
}

// classify turns a failed git invocation into a SourceError.
func (r *Remote) classify(ctx context.Context, repo, op, out string, err error, notFound core.ErrorKind) error {
	switch ctx.Err() {
	case context.Canceled:
		return ctx.Err()
	case context.DeadlineExceeded:
		return core.NewSourceError(core.ErrTimeout, repo, errors.Wrapf(ctx.Err(), "git %s", op))
	}
	kind := core.ClassifyGitOutput(out, notFound)
	return core.NewSourceError(kind, repo, errors.Wrapf(err, "git %s: %s", op, redact(strings.TrimSpace(out), r.token)))
}

// redact removes the token from git output before it reaches logs.
func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "***")
}

// parseLsRemote maps ref names to commits from `git ls-remote` output.
func parseLsRemote(out string) map[string]string {
	refs := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		sha, name, ok := strings.Cut(strings.TrimSpace(line), "\t")
		if !ok {
			continue
		}
		refs[name] = strings.ToLower(sha)
	}
	return refs
}

// pickRef finds the commit a requested ref names. Branches win over tags;
// annotated tags resolve to the commit they point at. Abbreviated SHAs are
// matched against advertised ref tips only.
func pickRef(refs map[string]string, ref string) (string, bool) {
	candidates := []string{
		ref,
		"refs/heads/" + ref,
		"refs/tags/" + ref + "^{}",
		"refs/tags/" + ref,
	}
	if ref == "HEAD" {
		candidates = candidates[:1]
	}
	for _, name := range candidates {
		if sha, ok := refs[name]; ok {
			return sha, true
		}
	}

	prefix := strings.ToLower(ref)
	if len(prefix) < 7 || strings.Trim(prefix, "0123456789abcdef") != "" {
		return "", false
	}
	var match string
	for _, sha := range refs {
		if !strings.HasPrefix(sha, prefix) {
			continue
		}
		if match != "" && match != sha {
			return "", false
		}
		match = sha
	}
	return match, match != ""
}
