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

package ctxutil

import (
	"context"
	"errors"
	"time"
)

// ErrNoDeadline is returned by HasSufficientTime when ctx carries no
// deadline at all — the caller has no budget to compare against.
var ErrNoDeadline = errors.New("context has no deadline")

// HasSufficientTime reports whether ctx's deadline leaves at least
// required before it expires. A context without a deadline is reported
// as insufficient along with ErrNoDeadline, since there is nothing to
// measure remaining time against; a context whose deadline has already
// passed reports a negative or zero remaining without treating that as
// an error — callWithTimeLimit in pkg/mutator uses the nil-error,
// sufficient=false case to fail a dispatch fast rather than pay for a
// goroutine it already knows will be abandoned.
func HasSufficientTime(ctx context.Context, required time.Duration) (remaining time.Duration, sufficient bool, err error) {
	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return 0, false, ErrNoDeadline
	}

	remaining = time.Until(deadline)

	return remaining, remaining >= required, nil
}
