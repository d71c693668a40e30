// Package backoff categorizes errors surfaced by Replicator.Connect and the
// remote.Service implementations it drives, so ReconnectLoop (pkg/replicator)
// knows whether to keep retrying or give up immediately.
package backoff

import "errors"

// ErrorCategory indicates how ReconnectLoop should respond to a given error.
type ErrorCategory int

const (
	// CategoryIgnored marks an error that ReconnectLoop should neither
	// retry nor report — a condition that's expected during normal
	// operation and resolves itself (e.g. a server closing an idle SSE
	// connection).
	CategoryIgnored ErrorCategory = iota

	// CategoryTransient marks an error ReconnectLoop should keep retrying
	// under exponential backoff: a dropped connection, a timed-out
	// request, a 5xx from the remote. This is the default category for
	// any error CategorizeError hasn't seen wrapped already.
	CategoryTransient

	// CategoryPermanent marks an error that retrying cannot fix — an
	// authentication failure (401/403 from httpremote.Client.do), or any
	// error the caller has already decided is unrecoverable.
	// ReconnectLoop stops immediately on this category instead of
	// exhausting its retry budget against a dead credential.
	CategoryPermanent
)

// CategorizedError pairs an underlying error with the ErrorCategory
// reconnect.go's op closure dispatches on.
type CategorizedError struct {
	Err      error
	Category ErrorCategory
}

func (ce *CategorizedError) Error() string {
	return ce.Err.Error()
}

func (ce *CategorizedError) Unwrap() error {
	return ce.Err
}

// IsCategory reports whether ce was wrapped under the given category.
func (ce *CategorizedError) IsCategory(category ErrorCategory) bool {
	return ce.Category == category
}

// NewIgnoredError wraps err as CategoryIgnored.
func NewIgnoredError(err error) error {
	return &CategorizedError{Err: err, Category: CategoryIgnored}
}

// NewTransientError wraps err as CategoryTransient.
func NewTransientError(err error) error {
	return &CategorizedError{Err: err, Category: CategoryTransient}
}

// NewPermanentError wraps err as CategoryPermanent — httpremote.Client.do
// calls this directly on a 401/403 response.
func NewPermanentError(err error) error {
	return &CategorizedError{Err: err, Category: CategoryPermanent}
}

// CategorizeError returns err unchanged if it's already a CategorizedError,
// otherwise wraps it as CategoryTransient — reconnect.go's default
// assumption for any Connect failure it hasn't seen a producer classify.
func CategorizeError(err error) error {
	if err == nil {
		return nil
	}

	var ce *CategorizedError
	if errors.As(err, &ce) {
		return err
	}

	return NewTransientError(err)
}

// IsIgnoredError is a convenience checker for CategoryIgnored.
func IsIgnoredError(err error) bool {
	var ce *CategorizedError
	return errors.As(err, &ce) && ce.IsCategory(CategoryIgnored)
}

// IsTransientError is a convenience checker for CategoryTransient.
func IsTransientError(err error) bool {
	var ce *CategorizedError
	return errors.As(err, &ce) && ce.IsCategory(CategoryTransient)
}

// IsPermanentError is a convenience checker for CategoryPermanent — the
// check ReconnectLoop uses to short-circuit its retry loop.
func IsPermanentError(err error) bool {
	var ce *CategorizedError
	return errors.As(err, &ce) && ce.IsCategory(CategoryPermanent)
}
