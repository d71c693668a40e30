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

package mutator

import (
	"context"
	"time"

	"github.com/united-manufacturing-hub/replisync/pkg/ctxutil"
	"github.com/united-manufacturing-hub/replisync/pkg/rerrors"
)

// minDispatchTime is the smallest remaining budget worth dispatching a
// remote call for. Below it we'd time out before the call could plausibly
// reach the wire, so callWithTimeLimit fails fast instead of paying for a
// goroutine and a round trip it already knows will be abandoned.
const minDispatchTime = time.Millisecond

// callWithTimeLimit wraps fn so it resolves within limit, per spec.md
// §4.4's three outcomes: success within limit, failure within limit, or a
// Timeout error carrying {args, limit} if nothing arrives in time. On
// timeout the original call is abandoned from the caller's perspective —
// fn keeps running against ctx in the background and its eventual result
// (success or error) is discarded; a late success after timeout is never
// re-surfaced, per spec.md §5's cancellation policy.
func callWithTimeLimit[T any](parent context.Context, limit time.Duration, args []any, fn func(ctx context.Context) (T, error)) (T, error) {
	if remaining, sufficient, err := ctxutil.HasSufficientTime(parent, minDispatchTime); err == nil && !sufficient {
		var zero T

		return zero, rerrors.Timeout("parent context leaves no time for a remote call", args, int(remaining/time.Millisecond))
	}

	ctx, cancel := context.WithTimeout(parent, limit)
	defer cancel()

	type result struct {
		val T
		err error
	}

	ch := make(chan result, 1)

	go func() {
		v, err := fn(ctx)
		ch <- result{val: v, err: err}
	}()

	select {
	case res := <-ch:
		return res.val, res.err
	case <-ctx.Done():
		var zero T

		return zero, rerrors.Timeout("remote call exceeded its time limit", args, int(limit/time.Millisecond))
	}
}
