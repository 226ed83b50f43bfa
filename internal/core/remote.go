package core

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"

	"github.com/barysiuk/skillsource/internal/logger"
)

// Remote is the network side of an install. Implementations should return
// *SourceError values so failures keep their kind; anything else is
// classified by the caller.
type Remote interface {
	// ResolveRef translates src's requested ref (HEAD when empty) into a full
	// commit SHA.
	ResolveRef(ctx context.Context, src Source) (string, error)
	// ListSkills returns the names of the directories under rs.Path that hold
	// a SKILL.md at rs.Commit.
	ListSkills(ctx context.Context, rs *ResolvedSource) ([]string, error)
	// FetchSkill writes the content of skill at rs.Commit into dest, which
	// does not exist yet.
	FetchSkill(ctx context.Context, rs *ResolvedSource, skill, dest string) error
}

// callPolicy bounds every remote call with a per-attempt timeout and a
// retry budget for transient failures.
type callPolicy struct {
	timeout  time.Duration
	attempts uint
	delay    time.Duration
	maxDelay time.Duration
}

func policyFromConfig(cfg *Config) callPolicy {
	attempts := cfg.Retry.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return callPolicy{
		timeout:  time.Duration(cfg.Timeout),
		attempts: uint(attempts),
		delay:    time.Duration(cfg.Retry.InitialDelay),
		maxDelay: time.Duration(cfg.Retry.MaxDelay),
	}
}

// retryable reports whether a failure of this kind may succeed on retry.
func retryable(kind ErrorKind) bool {
	return kind == ErrFetchFailed || kind == ErrTimeout
}

// call runs fn under the policy and returns nil, the parent context's error,
// or a *SourceError attributed to repo (and skill).
func (p callPolicy) call(ctx context.Context, op, repo, skill string, fallback ErrorKind, fn func(ctx context.Context) error) error {
	var last *SourceError
	err := retry.Do(
		func() error {
			attemptCtx, cancel := ctx, context.CancelFunc(func() {})
			if p.timeout > 0 {
				attemptCtx, cancel = context.WithTimeout(ctx, p.timeout)
			}
			defer cancel()

			err := fn(attemptCtx)
			if err == nil {
				return nil
			}
			se := asSourceError(err, repo, skill, fallback)
			if ctx.Err() == nil && attemptCtx.Err() == context.DeadlineExceeded {
				se.Kind = ErrTimeout
				se.Hints = hintsForKind(ErrTimeout)
			}
			last = se
			return se
		},
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(p.delay),
		retry.MaxDelay(p.maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && retryable(KindOf(err))
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithFields(logrus.Fields{
				"op":           op,
				"attempt":      n + 1,
				"max_attempts": p.attempts,
			}).Warn("retrying remote call")
		}),
	)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if last != nil {
		return last
	}
	return asSourceError(err, repo, skill, fallback)
}
