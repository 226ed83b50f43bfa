package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func asErr(err error, target any) bool {
	return errors.As(err, target)
}

func TestErrorKindString(t *testing.T) {
	tests := map[ErrorKind]string{
		ErrSourceNotFound:    "SourceNotFound",
		ErrRefNotFound:       "RefNotFound",
		ErrPathNotFound:      "PathNotFound",
		ErrFetchFailed:       "FetchFailed",
		ErrIntegrityMismatch: "IntegrityMismatch",
		ErrLockfileOutOfSync: "LockfileOutOfSync",
		ErrTimeout:           "Timeout",
		ErrUnknown:           "Unknown",
	}
	for kind, want := range tests {
		if kind.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(kind), kind.String(), want)
		}
	}
}

func TestClassifyGitOutput(t *testing.T) {
	tests := []struct {
		output   string
		notFound ErrorKind
		want     ErrorKind
	}{
		{"fatal: unable to access 'https://x': Operation timed out after 30001 milliseconds", ErrSourceNotFound, ErrTimeout},
		{"fatal: remote error: upload-pack: not our ref 0123", ErrRefNotFound, ErrRefNotFound},
		{"fatal: couldn't find remote ref refs/heads/nope", ErrRefNotFound, ErrRefNotFound},
		{"remote: Repository not found.\nfatal: repository 'https://github.com/a/b.git/' not found", ErrRefNotFound, ErrSourceNotFound},
		{"fatal: Authentication failed for 'https://github.com/a/b.git/'", ErrRefNotFound, ErrSourceNotFound},
		{"remote: Permission to a/b.git denied.\nfatal: The requested URL returned error: 403", ErrRefNotFound, ErrSourceNotFound},
		{"fatal: unable to access: Could not resolve host: github.com", ErrSourceNotFound, ErrFetchFailed},
		{"something odd", ErrSourceNotFound, ErrFetchFailed},
	}
	for _, tt := range tests {
		if got := ClassifyGitOutput(tt.output, tt.notFound); got != tt.want {
			t.Errorf("ClassifyGitOutput(%q) = %v, want %v", tt.output, got, tt.want)
		}
	}
}

func TestAsSourceError(t *testing.T) {
	se := asSourceError(context.DeadlineExceeded, "a/b", "", ErrFetchFailed)
	if se.Kind != ErrTimeout {
		t.Errorf("kind = %v, want Timeout", se.Kind)
	}

	wrapped := fmt.Errorf("listing: %w", NewSourceError(ErrPathNotFound, "", errors.New("no skills/")))
	se = asSourceError(wrapped, "a/b", "x", ErrFetchFailed)
	if se.Kind != ErrPathNotFound || se.Source != "a/b" || se.Skill != "x" {
		t.Errorf("got %+v", se)
	}
	if len(se.Hints) == 0 {
		t.Error("expected hints for PathNotFound")
	}

	se = asSourceError(errors.New("boom"), "a/b", "", ErrFetchFailed)
	if se.Kind != ErrFetchFailed {
		t.Errorf("kind = %v, want FetchFailed", se.Kind)
	}
}

func TestAggregate(t *testing.T) {
	if aggregate(nil) != nil {
		t.Error("aggregate(nil) should be nil")
	}

	err := aggregate([]error{
		NewSourceError(ErrRefNotFound, "z/z", errors.New("ref nope")),
		NewSourceError(ErrSourceNotFound, "a/a", errors.New("missing")),
	})
	msg := err.Error()
	if !strings.HasPrefix(msg, "install failed: 2 errors occurred:") {
		t.Errorf("unexpected header: %q", msg)
	}
	if strings.Index(msg, "a/a") > strings.Index(msg, "z/z") {
		t.Errorf("errors not sorted by source: %q", msg)
	}
	if KindOf(err) != ErrSourceNotFound {
		t.Errorf("KindOf = %v, want the first sorted error's kind", KindOf(err))
	}
	if len(flatten(aggregate([]error{err, errors.New("x")}))) != 3 {
		t.Error("flatten should unwrap nested aggregates")
	}
}
