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

// Package ctxmutex provides a mutex whose Lock can be abandoned via
// context cancellation, for critical sections that might otherwise block
// on a slow I/O-bound operation — pkg/replicator guards Connect/Disconnect
// with one so a stuck snapshot fetch can't wedge a concurrent caller
// forever.
package ctxmutex

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// CtxMutex is a binary mutex backed by a weighted semaphore of weight 1,
// which is what buys the context-aware Acquire that sync.Mutex lacks.
type CtxMutex struct {
	sem *semaphore.Weighted
}

// NewCtxMutex returns an unlocked CtxMutex.
func NewCtxMutex() *CtxMutex {
	return &CtxMutex{sem: semaphore.NewWeighted(1)}
}

// Lock blocks until the mutex is acquired or ctx is done, whichever comes
// first. A non-nil error means the mutex was NOT acquired and Unlock must
// not be called.
func (m *CtxMutex) Lock(ctx context.Context) error {
	return m.sem.Acquire(ctx, 1)
}

// Unlock releases the mutex. Calling it without a successful prior Lock
// panics, per semaphore.Weighted.Release's own contract.
func (m *CtxMutex) Unlock() {
	m.sem.Release(1)
}
