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

package engine

import (
	"sync"

	"github.com/united-manufacturing-hub/replisync/pkg/record"
	"github.com/united-manufacturing-hub/replisync/pkg/store"
)

// EventHandler receives the full records view and the last emitted event,
// per spec.md §6's application-facing "events" topic.
type EventHandler func(records []record.Record, last store.Last)

// emitter is the named-topic publish/subscribe capability spec.md §9
// abstracts event emission as, scoped to the single "events" topic the
// Engine needs. Fan-out is synchronous relative to the mutation that
// caused it, per spec.md §9.
type emitter struct {
	mu       sync.Mutex
	handlers map[int]EventHandler
	nextID   int
}

func newEmitter() *emitter {
	return &emitter{handlers: make(map[int]EventHandler)}
}

// On subscribes h and returns a function that unsubscribes it.
func (e *emitter) On(h EventHandler) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.handlers[id] = h
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.handlers, id)
		e.mu.Unlock()
	}
}

func (e *emitter) Emit(records []record.Record, last store.Last) {
	e.mu.Lock()
	handlers := make([]EventHandler, 0, len(e.handlers))
	for _, h := range e.handlers {
		handlers = append(handlers, h)
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h(records, last)
	}
}
