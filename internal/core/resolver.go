package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/barysiuk/skillsource/internal/logger"
)

// RefResolver turns a source's requested ref into an immutable commit.
type RefResolver struct {
	remote Remote
	policy callPolicy
	now    func() time.Time
}

// NewRefResolver creates a resolver using cfg's timeout and retry settings.
func NewRefResolver(remote Remote, cfg *Config, now func() time.Time) *RefResolver {
	if now == nil {
		now = time.Now
	}
	return &RefResolver{remote: remote, policy: policyFromConfig(cfg), now: now}
}

// Reusable reports whether a lock entry can stand in for a remote query:
// it must exist, pin a full SHA and have been resolved from the same
// requested ref the source asks for now.
func Reusable(src Source, locked *LockedSource) bool {
	return locked != nil &&
		locked.RequestedRef == src.RequestedRef() &&
		IsCommitSHA(locked.ResolvedRef)
}

// Resolve binds src to a commit. Unless update is set, a reusable lock entry
// is returned as-is, including its resolution time, so unchanged sources
// produce an identical lock entry. The second result reports whether the
// remote was queried.
func (r *RefResolver) Resolve(ctx context.Context, src Source, locked *LockedSource, update bool) (*ResolvedSource, bool, error) {
	log := logger.G(ctx).WithField("source", src.Repo)

	if !update && Reusable(src, locked) {
		resolvedAt, ok := parseResolvedAt(locked.ResolvedAt)
		if !ok {
			resolvedAt = r.stamp()
		}
		log.WithField("commit", locked.ResolvedRef).Debug("reusing locked ref")
		return &ResolvedSource{Source: src, Commit: locked.ResolvedRef, ResolvedAt: resolvedAt}, false, nil
	}

	// A full SHA is already immutable.
	if IsCommitSHA(strings.ToLower(src.Ref)) {
		return &ResolvedSource{Source: src, Commit: strings.ToLower(src.Ref), ResolvedAt: r.stamp()}, false, nil
	}

	var commit string
	err := r.policy.call(ctx, "resolve-ref", src.Repo, "", ErrFetchFailed, func(ctx context.Context) error {
		sha, err := r.remote.ResolveRef(ctx, src)
		if err != nil {
			return err
		}
		commit = strings.ToLower(strings.TrimSpace(sha))
		return nil
	})
	if err != nil {
		return nil, true, err
	}
	if !IsCommitSHA(commit) {
		return nil, true, NewSourceError(ErrRefNotFound, src.Repo,
			fmt.Errorf("ref %q resolved to %q, which is not a commit SHA", src.RequestedRef(), commit))
	}

	log.WithField("ref", src.RequestedRef()).WithField("commit", commit).Info("resolved ref")
	return &ResolvedSource{Source: src, Commit: commit, ResolvedAt: r.stamp()}, true, nil
}

func (r *RefResolver) stamp() time.Time {
	return r.now().UTC().Truncate(time.Second)
}
