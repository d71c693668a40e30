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

package replicator

import (
	"context"
	"time"

	cenbackoff "github.com/cenkalti/backoff"

	localbackoff "github.com/united-manufacturing-hub/replisync/pkg/backoff"
	"github.com/united-manufacturing-hub/replisync/pkg/rerrors"
)

// ReconnectConfig tunes ReconnectLoop's exponential backoff. Zero values
// fall back to sane defaults.
type ReconnectConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration // 0 means retry forever
	MaxRetries      uint64        // 0 means unbounded
}

// ReconnectLoop wraps Connect in exponential backoff, the reconnection-
// driven resync spec.md §4.2 names but leaves unspecified in detail.
// Grounded on the teacher's pkg/backoff error-category convention: a
// transient Connect failure is retried; once MaxRetries is exhausted the
// failure is reported to Sentry as permanent and returned to the caller.
func (r *Replicator) ReconnectLoop(ctx context.Context, extraQuery map[string]any, cfg ReconnectConfig) error {
	eb := cenbackoff.NewExponentialBackOff()

	if cfg.InitialInterval > 0 {
		eb.InitialInterval = cfg.InitialInterval
	}

	if cfg.MaxInterval > 0 {
		eb.MaxInterval = cfg.MaxInterval
	}

	eb.MaxElapsedTime = cfg.MaxElapsedTime // 0 = no elapsed-time ceiling

	var bo cenbackoff.BackOff = eb
	if cfg.MaxRetries > 0 {
		bo = cenbackoff.WithMaxRetries(bo, cfg.MaxRetries)
	}

	attempt := 0

	op := func() error {
		if err := ctx.Err(); err != nil {
			return cenbackoff.Permanent(err)
		}

		attempt++

		err := r.Connect(ctx, extraQuery)
		if err == nil {
			return nil
		}

		categorized := localbackoff.CategorizeError(err)

		if localbackoff.IsPermanentError(categorized) {
			r.log.Errorw("connect attempt failed permanently, giving up", "attempt", attempt, "error", categorized)

			return cenbackoff.Permanent(categorized)
		}

		r.log.Warnw("connect attempt failed", "attempt", attempt, "error", categorized)

		return categorized
	}

	notify := func(err error, wait time.Duration) {
		r.log.Infow("retrying connect after backoff", "error", err, "wait", wait)
	}

	err := cenbackoff.RetryNotify(op, bo, notify)
	if err != nil {
		finalErr := rerrors.Remote("reconnect backoff exhausted", err)
		rerrors.ReportPermanentFailure(r.log, "replicator", "reconnect", finalErr)

		return finalErr
	}

	return nil
}
