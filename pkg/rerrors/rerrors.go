// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rerrors defines the error taxonomy used across the engine,
// replicator and mutator: NotFound, BadRequest, Timeout and RemoteError.
// Every error constructed here wraps a cause and carries a Kind so callers
// can branch with errors.Is/errors.As instead of string matching.
package rerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the §7 taxonomy.
type Kind string

const (
	KindNotFound   Kind = "not-found"
	KindBadRequest Kind = "bad-request"
	KindTimeout    Kind = "timeout"
	KindRemote     Kind = "remote-error"
)

// Error is the taxonomy's concrete type. It wraps an underlying cause (which
// may be nil) and is comparable with errors.Is against the Is* sentinels
// below, and with errors.As against *Error to read Kind/Args/Limit.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error

	// Args and Limit are populated on Timeout errors to reproduce the
	// {timeout: true, args, limit} shape spec.md §4.4 requires of a
	// timed-out remote invocation.
	Args  []any
	Limit int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is one of the sentinel markers for e's Kind,
// so errors.Is(err, rerrors.ErrNotFound) works without a type assertion.
func (e *Error) Is(target error) bool {
	sentinel, ok := target.(*sentinelError)
	if !ok {
		return false
	}

	return sentinel.kind == e.Kind
}

type sentinelError struct{ kind Kind }

func (s *sentinelError) Error() string { return string(s.kind) }

var (
	// ErrNotFound matches any *Error with Kind == KindNotFound.
	ErrNotFound = &sentinelError{KindNotFound}
	// ErrBadRequest matches any *Error with Kind == KindBadRequest.
	ErrBadRequest = &sentinelError{KindBadRequest}
	// ErrTimeout matches any *Error with Kind == KindTimeout.
	ErrTimeout = &sentinelError{KindTimeout}
	// ErrRemote matches any *Error with Kind == KindRemote.
	ErrRemote = &sentinelError{KindRemote}
)

// NotFound builds a KindNotFound error, e.g. for the Mutator's Get on a
// uuid, or Patch on an id, absent from the local store.
func NotFound(msg string, cause error) error {
	return &Error{Kind: KindNotFound, Msg: msg, Cause: cause}
}

// BadRequest builds a KindBadRequest error for malformed mutator arguments.
func BadRequest(msg string, cause error) error {
	return &Error{Kind: KindBadRequest, Msg: msg, Cause: cause}
}

// Timeout builds the §4.4 time-limited-invocation error: args is the call's
// original argument list and limit is the budget (in milliseconds) that was
// exceeded.
func Timeout(msg string, args []any, limitMS int) error {
	return &Error{Kind: KindTimeout, Msg: msg, Args: args, Limit: limitMS}
}

// Remote wraps an error surfaced by the remote service (non-2xx response,
// transport failure after retries are exhausted, and so on).
func Remote(msg string, cause error) error {
	return &Error{Kind: KindRemote, Msg: msg, Cause: cause}
}

// IsTimeout reports whether err (or something it wraps) is a Timeout error.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// IsNotFound reports whether err (or something it wraps) is a NotFound error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// AsTaxonomy extracts the *Error for callers that need Args/Limit/Kind.
func AsTaxonomy(err error) (*Error, bool) {
	var e *Error

	ok := errors.As(err, &e)

	return e, ok
}
