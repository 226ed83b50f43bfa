package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ErrorKind classifies why an operation on a source failed.
type ErrorKind int

const (
	// ErrUnknown is an unclassified failure.
	ErrUnknown ErrorKind = iota
	// ErrSourceNotFound means the repository does not exist or is not accessible.
	ErrSourceNotFound
	// ErrRefNotFound means the requested branch, tag or commit does not exist.
	ErrRefNotFound
	// ErrPathNotFound means the skills directory is absent at the resolved commit.
	ErrPathNotFound
	// ErrFetchFailed means skill content could not be retrieved (network, auth, content).
	ErrFetchFailed
	// ErrIntegrityMismatch means fetched content differs from the locked integrity.
	ErrIntegrityMismatch
	// ErrLockfileOutOfSync means --frozen found a source without a usable lock entry.
	ErrLockfileOutOfSync
	// ErrTimeout means a network operation exceeded its deadline.
	ErrTimeout
)

// String returns the taxonomy name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrSourceNotFound:
		return "SourceNotFound"
	case ErrRefNotFound:
		return "RefNotFound"
	case ErrPathNotFound:
		return "PathNotFound"
	case ErrFetchFailed:
		return "FetchFailed"
	case ErrIntegrityMismatch:
		return "IntegrityMismatch"
	case ErrLockfileOutOfSync:
		return "LockfileOutOfSync"
	case ErrTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// SourceError is the error type every per-source failure is reported as.
type SourceError struct {
	Kind   ErrorKind
	Source string // repo identifier ("owner/repo")
	Skill  string // set for skill-level failures
	Err    error
	Hints  []string
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	subject := e.Source
	if e.Skill != "" {
		subject += " (skill " + e.Skill + ")"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", subject, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", subject, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError builds a SourceError with the default hints for its kind.
func NewSourceError(kind ErrorKind, source string, err error) *SourceError {
	return &SourceError{
		Kind:   kind,
		Source: source,
		Err:    err,
		Hints:  hintsForKind(kind),
	}
}

// KindOf returns the kind of the first SourceError in err's chain,
// or ErrUnknown when there is none.
func KindOf(err error) ErrorKind {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrUnknown
}

// asSourceError attaches a source (and skill) to err. Errors that already are
// SourceErrors keep their kind; context deadlines become Timeout; everything
// else is reported as fallback.
func asSourceError(err error, source, skill string, fallback ErrorKind) *SourceError {
	var se *SourceError
	if errors.As(err, &se) {
		out := *se
		if out.Source == "" {
			out.Source = source
		}
		if out.Skill == "" {
			out.Skill = skill
		}
		if len(out.Hints) == 0 {
			out.Hints = hintsForKind(out.Kind)
		}
		return &out
	}
	kind := fallback
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	out := NewSourceError(kind, source, err)
	out.Skill = skill
	return out
}

// ClassifyGitOutput pattern-matches git stderr to an ErrorKind.
// notFound is the kind used when the remote reports a missing object; callers
// pass ErrSourceNotFound for repository lookups and ErrRefNotFound for
// commit fetches.
func ClassifyGitOutput(output string, notFound ErrorKind) ErrorKind {
	lower := strings.ToLower(output)

	if strings.Contains(lower, "timed out") {
		return ErrTimeout
	}

	// Missing objects at the remote.
	if strings.Contains(lower, "not our ref") ||
		strings.Contains(lower, "couldn't find remote ref") ||
		strings.Contains(lower, "no such remote ref") ||
		strings.Contains(lower, "unadvertised object") ||
		strings.Contains(lower, "reference is not a tree") {
		return ErrRefNotFound
	}

	// GitHub and GitLab answer 404 for private repos without access.
	if strings.Contains(lower, "repository not found") ||
		strings.Contains(lower, "does not appear to be a git repository") ||
		strings.Contains(lower, "project not found") ||
		strings.Contains(lower, "could not read username") ||
		strings.Contains(lower, "authentication failed") ||
		strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "403") {
		return ErrSourceNotFound
	}

	if strings.Contains(lower, "not found") {
		return notFound
	}

	// Network failures (unresolvable host, refused connection) and anything
	// unrecognised are transient as far as retries are concerned.
	return ErrFetchFailed
}

// hintsForKind returns actionable suggestions for the error kind.
func hintsForKind(kind ErrorKind) []string {
	switch kind {
	case ErrSourceNotFound:
		return []string{
			"Verify the owner/repo in skillsource.jsonc is spelled correctly",
			"Private repositories need a token: pass --token or set SKILLSOURCE_TOKEN / GITHUB_TOKEN",
		}
	case ErrRefNotFound:
		return []string{
			"Check that the branch, tag or commit after @ exists on the remote",
			"A commit that was force-pushed away can no longer be fetched; run with --update",
		}
	case ErrPathNotFound:
		return []string{
			"The skills directory does not exist at the resolved commit",
			"Point the source at the right directory with owner/repo:path",
		}
	case ErrIntegrityMismatch:
		return []string{
			"The fetched content differs from skillsource.lock.json",
			"If the change is expected, run install with --update to re-lock",
		}
	case ErrLockfileOutOfSync:
		return []string{
			"skillsource.lock.json does not cover every configured source",
			"Run install without --frozen to refresh the lockfile, then commit it",
		}
	case ErrTimeout:
		return []string{
			"Check your network connection, or raise \"timeout\" in skillsource.jsonc",
		}
	case ErrFetchFailed:
		return []string{
			"Check your network connection and credentials",
			"Try the same URL with `git ls-remote <url>` to diagnose",
		}
	default:
		return nil
	}
}

// aggregate combines per-source errors into one report sorted by source.
// It returns nil for an empty slice.
func aggregate(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	sorted := append([]error(nil), errs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Error() < sorted[j].Error()
	})
	return &multierror.Error{Errors: sorted, ErrorFormat: formatReport}
}

// flatten unwraps nested multierrors so reports list each failure once.
func flatten(err error) []error {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		var out []error
		for _, e := range merr.Errors {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return []error{err}
}

func formatReport(errs []error) string {
	var b strings.Builder
	if len(errs) == 1 {
		b.WriteString("install failed: 1 error occurred:\n")
	} else {
		fmt.Fprintf(&b, "install failed: %d errors occurred:\n", len(errs))
	}
	for i, err := range errs {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err)
	}
	return strings.TrimRight(b.String(), "\n")
}
