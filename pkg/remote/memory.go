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

package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/united-manufacturing-hub/replisync/pkg/query"
	"github.com/united-manufacturing-hub/replisync/pkg/record"
)

var _ Service = (*MemoryService)(nil)

// MemoryService is an in-memory Service fake for tests and the seed
// scenarios in spec.md §8. Two query flags let a caller simulate a
// disconnected remote without a real transport: "_fail" returns an error
// immediately, and "_timeout" blocks until the caller's context is done
// (exercising the §4.4 time-limited invocation's timeout branch).
type MemoryService struct {
	mu        sync.Mutex
	records   []record.Record
	nextID    int
	listeners map[string][]func(record.Record)
}

// NewMemoryService returns an empty MemoryService, or seeded with initial
// if provided.
func NewMemoryService(initial ...record.Record) *MemoryService {
	m := &MemoryService{
		listeners: make(map[string][]func(record.Record)),
	}

	maxID := -1

	for _, r := range initial {
		m.records = append(m.records, r.Clone())

		if id, ok := r.ServerID(); ok {
			if n, ok := id.(int); ok && n > maxID {
				maxID = n
			}
		}
	}

	m.nextID = maxID + 1

	return m
}

func (m *MemoryService) checkSimulatedFailure(ctx context.Context, params query.Params) error {
	if params.Query["_timeout"] == true {
		<-ctx.Done()

		return ctx.Err()
	}

	if params.Query["_fail"] == true {
		return fmt.Errorf("simulated remote failure")
	}

	return nil
}

func (m *MemoryService) Find(ctx context.Context, params query.Params) (any, error) {
	if err := m.checkSimulatedFailure(ctx, params); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make([]record.Record, len(m.records))
	for i, r := range m.records {
		snapshot[i] = r.Clone()
	}

	return query.Apply(snapshot, query.DefaultMatcher{}, params), nil
}

func (m *MemoryService) Get(ctx context.Context, id any, params query.Params) (record.Record, error) {
	if err := m.checkSimulatedFailure(ctx, params); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if rid, ok := r.ServerID(); ok && rid == id {
			return r.Clone(), nil
		}
	}

	return nil, fmt.Errorf("record %v not found", id)
}

func (m *MemoryService) Create(ctx context.Context, data record.Record, params query.Params) (record.Record, error) {
	if err := m.checkSimulatedFailure(ctx, params); err != nil {
		return nil, err
	}

	m.mu.Lock()

	out := data.Clone()
	if _, ok := out.ServerID(); !ok {
		out.SetServerID(m.nextID)
		m.nextID++
	}

	out.SetUpdatedAt(time.Now().UTC())
	m.records = append(m.records, out)
	m.mu.Unlock()

	m.emit(Created, out.Clone())

	return out.Clone(), nil
}

func (m *MemoryService) Update(ctx context.Context, id any, data record.Record, params query.Params) (record.Record, error) {
	return m.replace(ctx, id, data, params, Updated)
}

func (m *MemoryService) Patch(ctx context.Context, id any, data record.Record, params query.Params) (record.Record, error) {
	if err := m.checkSimulatedFailure(ctx, params); err != nil {
		return nil, err
	}

	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()

		return nil, fmt.Errorf("record %v not found", id)
	}

	merged := m.records[idx].Merge(data)
	merged.SetUpdatedAt(time.Now().UTC())
	m.records[idx] = merged
	out := merged.Clone()
	m.mu.Unlock()

	m.emit(Patched, out)

	return out.Clone(), nil
}

func (m *MemoryService) replace(ctx context.Context, id any, data record.Record, params query.Params, topic string) (record.Record, error) {
	if err := m.checkSimulatedFailure(ctx, params); err != nil {
		return nil, err
	}

	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()

		return nil, fmt.Errorf("record %v not found", id)
	}

	out := data.Clone()
	out.SetUpdatedAt(time.Now().UTC())
	m.records[idx] = out
	m.mu.Unlock()

	m.emit(topic, out.Clone())

	return out.Clone(), nil
}

func (m *MemoryService) Remove(ctx context.Context, id any, params query.Params) (record.Record, error) {
	if err := m.checkSimulatedFailure(ctx, params); err != nil {
		return nil, err
	}

	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()

		return nil, fmt.Errorf("record %v not found", id)
	}

	removed := m.records[idx]
	m.records = append(m.records[:idx], m.records[idx+1:]...)
	m.mu.Unlock()

	m.emit(Removed, removed.Clone())

	return removed.Clone(), nil
}

func (m *MemoryService) indexOf(id any) int {
	for i, r := range m.records {
		if rid, ok := r.ServerID(); ok && rid == id {
			return i
		}
	}

	return -1
}

func (m *MemoryService) On(topic string, handler func(record.Record)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listeners[topic] = append(m.listeners[topic], handler)
	idx := len(m.listeners[topic]) - 1

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		handlers := m.listeners[topic]
		if idx < len(handlers) {
			handlers[idx] = nil
		}
	}
}

func (m *MemoryService) emit(topic string, r record.Record) {
	m.mu.Lock()
	handlers := append([]func(record.Record){}, m.listeners[topic]...)
	m.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			h(r)
		}
	}
}

// InjectRemote directly mutates the backing set and fires the matching
// topic, bypassing Create/Update/etc. — used by tests to simulate another
// client's write landing on this client's change feed (spec.md §8
// scenarios 1 and 2).
func (m *MemoryService) InjectRemote(topic string, r record.Record) {
	m.mu.Lock()

	idx := -1
	if id, ok := r.ServerID(); ok {
		idx = m.indexOf(id)
	}

	switch topic {
	case Removed:
		if idx >= 0 {
			m.records = append(m.records[:idx], m.records[idx+1:]...)
		}
	default:
		if idx >= 0 {
			m.records[idx] = r.Clone()
		} else {
			m.records = append(m.records, r.Clone())
		}
	}

	m.mu.Unlock()

	m.emit(topic, r.Clone())
}
