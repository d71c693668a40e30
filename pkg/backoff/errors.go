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

package backoff

import (
	"errors"
	"strings"
)

// TemporaryBackoffError and PermanentFailureError are substring markers a
// producer can prefix onto an error message (see NewPermanentError's
// callers in httpremote.Client.do) so the category survives serialization
// boundaries where errors.As can't follow — an error that's crossed an SSE
// payload or a log line and come back as a plain string still carries its
// category if it's prefixed with one of these.
const (
	TemporaryBackoffError = "temporary backoff error"
	PermanentFailureError = "permanent failure error"
)

// IsTemporaryBackoffError reports whether err's message carries the
// TemporaryBackoffError marker, directly or anywhere in a %w chain's
// flattened text.
func IsTemporaryBackoffError(err error) bool {
	if err == nil {
		return false
	}

	return strings.Contains(err.Error(), TemporaryBackoffError)
}

// IsPermanentFailureError reports whether err's message carries the
// PermanentFailureError marker. ReportPermanentFailure (pkg/rerrors) uses
// this after ExtractOriginalError to decide whether to flag the Sentry
// event as a dead-end failure rather than a retry that eventually gave up.
func IsPermanentFailureError(err error) bool {
	if err == nil {
		return false
	}

	return strings.Contains(err.Error(), PermanentFailureError)
}

// IsBackoffError reports whether err carries either marker.
func IsBackoffError(err error) bool {
	return IsTemporaryBackoffError(err) || IsPermanentFailureError(err)
}

// ExtractOriginalError unwraps err down to its root cause, stripping off
// the rerrors.Error/CategorizedError/cenbackoff wrapping layers that
// accumulate between a failed remote call and ReportPermanentFailure.
func ExtractOriginalError(err error) error {
	if err == nil {
		return nil
	}

	unwrapped := err

	for {
		next := errors.Unwrap(unwrapped)
		if next == nil {
			return unwrapped
		}

		unwrapped = next
	}
}
