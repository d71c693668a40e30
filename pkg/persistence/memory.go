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

package persistence

import (
	"sync"

	"github.com/united-manufacturing-hub/replisync/pkg/store"
)

// Memory is a Store that keeps the queue in a process-local slice — it
// does not survive a restart, matching the original's "not implemented,
// in-memory only" posture. Useful as the default backend and in tests that
// want the hook exercised without a filesystem dependency.
type Memory struct {
	mu    sync.Mutex
	queue []store.QueuedMutation
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load() ([]store.QueuedMutation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]store.QueuedMutation, len(m.queue))
	copy(out, m.queue)

	return out, nil
}

func (m *Memory) Save(queue []store.QueuedMutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queue = make([]store.QueuedMutation, len(queue))
	copy(m.queue, queue)

	return nil
}
