package core

import (
	"context"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// CheckForUpdates resolves each source's requested ref on the remote and
// compares it with the locked commit. It never fetches content and never
// writes the lockfile. Results follow the order of sources; a failed source
// carries its error in UpdateInfo.Error and the returned error aggregates
// every such failure.
func CheckForUpdates(ctx context.Context, remote Remote, cfg *Config, sources []Source, lf *LockFile) ([]UpdateInfo, error) {
	resolver := NewRefResolver(remote, cfg, nil)
	infos := make([]UpdateInfo, len(sources))

	limit := cfg.Concurrency
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	var g multierror.Group
	for i, src := range sources {
		infos[i] = UpdateInfo{Repo: src.Repo, RequestedRef: src.RequestedRef()}
		if entry := lf.Entry(src.Repo); entry != nil {
			infos[i].LockedRef = entry.ResolvedRef
		}

		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			rs, _, err := resolver.Resolve(ctx, src, nil, true)
			if err != nil {
				infos[i].Error = err
				return err
			}
			infos[i].RemoteRef = rs.Commit
			infos[i].HasUpdate = !strings.EqualFold(infos[i].LockedRef, rs.Commit)
			return nil
		})
	}
	merr := g.Wait()
	if merr != nil {
		sort.SliceStable(merr.Errors, func(i, j int) bool {
			return merr.Errors[i].Error() < merr.Errors[j].Error()
		})
	}
	return infos, merr.ErrorOrNil()
}
