package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/barysiuk/skillsource/internal/logger"
)

// State is a phase of an install run.
type State int

const (
	StateIdle State = iota
	StateResolvingRefs
	StateListing
	StateFiltering
	StateFetching
	StateWritingLockfile
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateResolvingRefs:
		return "ResolvingRefs"
	case StateListing:
		return "Listing"
	case StateFiltering:
		return "Filtering"
	case StateFetching:
		return "Fetching"
	case StateWritingLockfile:
		return "WritingLockfile"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EventKind identifies what an Event reports.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventRefResolved
	EventSkillsListed
	EventSkillSkipped
	EventSkillReused
	EventSkillFetched
	EventSourceFailed
)

// Event is emitted to the installer's observer as a run progresses.
type Event struct {
	Kind    EventKind
	State   State
	Source  string
	Skill   string
	Commit  string
	Queried bool
	Count   int
	Reason  SkipReason
	Err     error
}

// Observer receives install events. It is called from several goroutines
// and must be safe for concurrent use.
type Observer func(Event)

// InstallOptions selects the install mode.
type InstallOptions struct {
	Update bool // re-resolve every ref, ignoring the lockfile
	Frozen bool // install exactly what the lockfile pins; never write it
}

// InstallResult describes a finished (or failed) run.
type InstallResult struct {
	RunID       string
	State       State
	Resolved    []*ResolvedSource // config order
	Queried     []string          // repos whose refs were resolved remotely
	Fetched     []SkillRecord
	Reused      []SkillRecord
	Skipped     []SkippedSkill
	Pruned      []string
	LockFile    *LockFile
	LockWritten bool
}

// Installer resolves, filters, fetches and locks skills for one project.
type Installer struct {
	remote     Remote
	projectDir string
	cfg        *Config
	now        func() time.Time
	observer   Observer
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithClock overrides the time source used for resolvedAt stamps.
func WithClock(now func() time.Time) InstallerOption {
	return func(inst *Installer) { inst.now = now }
}

// WithObserver registers a progress observer.
func WithObserver(o Observer) InstallerOption {
	return func(inst *Installer) { inst.observer = o }
}

// NewInstaller creates an Installer for projectDir.
func NewInstaller(remote Remote, projectDir string, cfg *Config, opts ...InstallerOption) *Installer {
	inst := &Installer{
		remote:     remote,
		projectDir: projectDir,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(inst)
	}
	return inst
}

// fetchJob is one skill that has to come from the remote.
type fetchJob struct {
	source   *ResolvedSource
	skill    string
	expected string
}

// run holds the mutable state of a single Install call.
type run struct {
	inst   *Installer
	ctx    context.Context
	opts   InstallOptions
	result *InstallResult
}

// Install performs one run. The lockfile and the curated directory are only
// touched in WritingLockfile, after every source succeeded; a failed or
// cancelled run leaves both as they were.
func (inst *Installer) Install(ctx context.Context, opts InstallOptions) (*InstallResult, error) {
	result := &InstallResult{RunID: uuid.NewString(), State: StateIdle}
	if opts.Update && opts.Frozen {
		return result, fmt.Errorf("--update and --frozen cannot be combined")
	}

	ctx = logger.WithFields(ctx, logrus.Fields{"run_id": result.RunID})
	r := &run{inst: inst, ctx: ctx, opts: opts, result: result}

	sources, err := inst.cfg.ParsedSources()
	if err != nil {
		return result, err
	}
	lf, err := ReadLockFile(inst.projectDir)
	if err != nil {
		return result, err
	}
	local, err := ScanLocalSkills(inst.projectDir, inst.cfg)
	if err != nil {
		return result, err
	}

	if opts.Frozen {
		if err := checkFrozen(sources, lf); err != nil {
			return result, err
		}
	}

	stageDir, err := os.MkdirTemp("", "skillsource-stage-*")
	if err != nil {
		return result, fmt.Errorf("creating staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(stageDir) }()

	resolved, failures := r.resolveRefs(sources, lf)
	if err := ctx.Err(); err != nil {
		return result, r.cancelled(err)
	}

	listings, listFailures := r.listSkills(resolved, lf)
	failures = append(failures, listFailures...)
	if err := ctx.Err(); err != nil {
		return result, r.cancelled(err)
	}
	if len(failures) > 0 {
		return result, r.fail(failures)
	}

	jobs := r.filter(listings, local, lf)

	records, fetchFailures := r.fetch(jobs, stageDir)
	if err := ctx.Err(); err != nil {
		return result, r.cancelled(err)
	}
	if len(fetchFailures) > 0 {
		return result, r.fail(fetchFailures)
	}
	result.Fetched = records

	if err := r.commit(stageDir, lf); err != nil {
		return result, r.fail([]error{err})
	}
	r.enter(StateDone)
	return result, nil
}

// checkFrozen fails with one LockfileOutOfSync per source the lockfile
// cannot pin.
func checkFrozen(sources []Source, lf *LockFile) error {
	var errs []error
	for _, src := range sources {
		entry := lf.Entry(src.Repo)
		switch {
		case entry == nil:
			errs = append(errs, NewSourceError(ErrLockfileOutOfSync, src.Repo, fmt.Errorf("no lock entry")))
		case entry.RequestedRef != src.RequestedRef():
			errs = append(errs, NewSourceError(ErrLockfileOutOfSync, src.Repo,
				fmt.Errorf("lock entry was resolved from %q, config requests %q", entry.RequestedRef, src.RequestedRef())))
		case !IsCommitSHA(entry.ResolvedRef):
			errs = append(errs, NewSourceError(ErrLockfileOutOfSync, src.Repo,
				fmt.Errorf("lock entry pins %q, not a commit SHA", entry.ResolvedRef)))
		}
	}
	return aggregate(errs)
}

func (r *run) enter(s State) {
	r.result.State = s
	logger.G(r.ctx).WithField("state", s.String()).Debug("install state")
	r.emit(Event{Kind: EventStateChanged, State: s})
}

func (r *run) emit(e Event) {
	if r.inst.observer != nil {
		r.inst.observer(e)
	}
}

func (r *run) fail(errs []error) error {
	r.enter(StateFailed)
	return aggregate(errs)
}

func (r *run) cancelled(err error) error {
	r.enter(StateFailed)
	return fmt.Errorf("install cancelled: %w", err)
}

// parallel runs fn for 0..n-1 with at most cfg.Concurrency in flight and
// returns every error, flattened.
func (r *run) parallel(n int, fn func(i int) error) []error {
	limit := r.inst.cfg.Concurrency
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	var g multierror.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			return fn(i)
		})
	}
	return flatten(g.Wait().ErrorOrNil())
}

// sourceFailed reports err for a source and returns it unchanged.
func (r *run) sourceFailed(repo string, err error) error {
	if !errors.Is(err, context.Canceled) {
		logger.G(r.ctx).WithError(err).WithField("source", repo).Warn("source failed")
	}
	r.emit(Event{Kind: EventSourceFailed, Source: repo, Err: err})
	return err
}

func (r *run) resolveRefs(sources []Source, lf *LockFile) ([]*ResolvedSource, []error) {
	r.enter(StateResolvingRefs)
	resolver := NewRefResolver(r.inst.remote, r.inst.cfg, r.inst.now)

	resolved := make([]*ResolvedSource, len(sources))
	queried := make([]bool, len(sources))
	errs := r.parallel(len(sources), func(i int) error {
		src := sources[i]
		entry := lf.Entry(src.Repo)

		if r.opts.Frozen {
			// checkFrozen guaranteed a usable entry.
			at, ok := parseResolvedAt(entry.ResolvedAt)
			if !ok {
				at = r.inst.now().UTC().Truncate(time.Second)
			}
			resolved[i] = &ResolvedSource{Source: src, Commit: entry.ResolvedRef, ResolvedAt: at}
		} else {
			rs, q, err := resolver.Resolve(r.ctx, src, entry, r.opts.Update)
			if err != nil {
				return r.sourceFailed(src.Repo, err)
			}
			resolved[i], queried[i] = rs, q
		}
		r.emit(Event{Kind: EventRefResolved, Source: src.Repo, Commit: resolved[i].Commit, Queried: queried[i]})
		return nil
	})

	for i, rs := range resolved {
		if rs == nil {
			continue
		}
		r.result.Resolved = append(r.result.Resolved, rs)
		if queried[i] {
			r.result.Queried = append(r.result.Queried, rs.Repo)
		}
	}
	return resolved, errs
}

func (r *run) listSkills(resolved []*ResolvedSource, lf *LockFile) ([]Listing, []error) {
	r.enter(StateListing)
	policy := policyFromConfig(r.inst.cfg)

	listings := make([]Listing, len(resolved))
	errs := r.parallel(len(resolved), func(i int) error {
		rs := resolved[i]
		if rs == nil {
			return nil
		}

		var names []string
		if r.opts.Frozen {
			for name := range lf.Entry(rs.Repo).Skills {
				names = append(names, name)
			}
		} else {
			err := policy.call(r.ctx, "list", rs.Repo, "", ErrFetchFailed, func(ctx context.Context) error {
				var err error
				names, err = r.inst.remote.ListSkills(ctx, rs)
				return err
			})
			if err != nil {
				return r.sourceFailed(rs.Repo, err)
			}
		}

		valid := make([]string, 0, len(names))
		for _, name := range names {
			if validSkillName(name) {
				valid = append(valid, name)
			}
		}
		sort.Strings(valid)
		listings[i] = Listing{Source: rs, Skills: valid}
		r.emit(Event{Kind: EventSkillsListed, Source: rs.Repo, Count: len(valid)})
		return nil
	})

	out := make([]Listing, 0, len(listings))
	for _, l := range listings {
		if l.Source != nil {
			out = append(out, l)
		}
	}
	return out, errs
}

// validSkillName rejects names that cannot be a single directory.
func validSkillName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.HasPrefix(name, ".") &&
		!strings.ContainsAny(name, `/\`)
}

// filter applies precedence and decides, per selected skill, whether the
// curated copy can be kept or has to be fetched.
func (r *run) filter(listings []Listing, local []LocalSkill, lf *LockFile) []fetchJob {
	r.enter(StateFiltering)

	localSet := make(map[string]bool, len(local))
	for _, s := range local {
		localSet[s.Name] = true
	}
	sel := SelectSkills(listings, localSet, r.inst.cfg.AllowListPrecedence)
	r.result.Skipped = append(r.result.Skipped, sel.Skipped...)
	for _, s := range sel.Skipped {
		r.emit(Event{Kind: EventSkillSkipped, Source: s.Source, Skill: s.Skill, Reason: s.Reason})
	}

	curatedDir := filepath.Join(r.inst.projectDir, r.inst.cfg.CuratedDir)
	var jobs []fetchJob
	for _, s := range sel.Selected {
		var locked string
		if entry := lf.Entry(s.Source.Repo); entry != nil && entry.ResolvedRef == s.Source.Commit {
			locked = entry.Skills[s.Skill].Integrity
		}

		if locked != "" && dirExists(filepath.Join(curatedDir, s.Skill)) {
			got, err := ComputeIntegrity(filepath.Join(curatedDir, s.Skill))
			if err == nil && got == locked {
				r.result.Reused = append(r.result.Reused, SkillRecord{Name: s.Skill, Integrity: locked, Source: s.Source})
				r.emit(Event{Kind: EventSkillReused, Source: s.Source.Repo, Skill: s.Skill, Reason: SkipUpToDate})
				continue
			}
			logger.G(r.ctx).WithFields(logrus.Fields{"source": s.Source.Repo, "skill": s.Skill}).
				Info("curated copy drifted from lockfile, refetching")
		}

		job := fetchJob{source: s.Source, skill: s.Skill}
		if r.opts.Frozen {
			job.expected = locked
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func (r *run) fetch(jobs []fetchJob, stageDir string) ([]SkillRecord, []error) {
	r.enter(StateFetching)
	fetcher := NewFetcher(r.inst.remote, r.inst.cfg)

	records := make([]*SkillRecord, len(jobs))
	errs := r.parallel(len(jobs), func(i int) error {
		job := jobs[i]
		rec, err := fetcher.Fetch(r.ctx, job.source, job.skill, stageDir, job.expected)
		if err != nil {
			return r.sourceFailed(job.source.Repo, err)
		}
		records[i] = rec
		logger.G(r.ctx).WithFields(logrus.Fields{
			"source": job.source.Repo,
			"skill":  job.skill,
			"commit": TruncateCommit(job.source.Commit),
		}).Info("fetched skill")
		r.emit(Event{Kind: EventSkillFetched, Source: job.source.Repo, Skill: job.skill, Commit: job.source.Commit})
		return nil
	})

	var out []SkillRecord
	for _, rec := range records {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, errs
}

// commit moves staged skills into curated storage, prunes curated skills no
// longer selected and writes the lockfile. Frozen runs neither prune nor
// write the lockfile. Curated changes are undone if any step fails.
func (r *run) commit(stageDir string, lf *LockFile) (err error) {
	r.enter(StateWritingLockfile)
	if err := r.ctx.Err(); err != nil {
		return err
	}

	var txn *curatedTxn
	curatedDir := filepath.Join(r.inst.projectDir, r.inst.cfg.CuratedDir)
	if len(r.result.Fetched) > 0 || dirExists(curatedDir) {
		if txn, err = beginCurated(curatedDir); err != nil {
			return err
		}
		defer func() {
			if err != nil {
				r.result.Pruned = nil
				txn.rollback(r.ctx)
				return
			}
			txn.finish(r.ctx)
		}()
		for _, rec := range r.result.Fetched {
			if err := txn.install(filepath.Join(stageDir, rec.Name), rec.Name); err != nil {
				return err
			}
		}
	}

	if r.opts.Frozen {
		r.result.LockFile = lf
		return nil
	}

	next := NewLockFile()
	for _, rs := range r.result.Resolved {
		next.Sources[rs.Repo] = &LockedSource{
			RequestedRef: rs.RequestedRef(),
			ResolvedRef:  rs.Commit,
			ResolvedAt:   formatResolvedAt(rs.ResolvedAt),
			Skills:       map[string]LockedSkill{},
		}
	}
	keep := make(map[string]bool)
	for _, recs := range [][]SkillRecord{r.result.Reused, r.result.Fetched} {
		for _, rec := range recs {
			next.Sources[rec.Source.Repo].Skills[rec.Name] = LockedSkill{Integrity: rec.Integrity}
			keep[rec.Name] = true
		}
	}

	if txn != nil {
		if r.result.Pruned, err = txn.prune(keep); err != nil {
			return err
		}
	}

	if err := WriteLockFile(r.inst.projectDir, next); err != nil {
		return err
	}
	r.result.LockFile = next
	r.result.LockWritten = true
	return nil
}

// ensureCuratedDir creates the curated directory with a .gitignore that
// keeps its content out of version control.
func ensureCuratedDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating curated directory: %w", err)
	}
	ignore := filepath.Join(dir, ".gitignore")
	if fileExists(ignore) {
		return nil
	}
	if err := os.WriteFile(ignore, []byte("*\n"), 0o644); err != nil {
		return fmt.Errorf("writing curated .gitignore: %w", err)
	}
	return nil
}
