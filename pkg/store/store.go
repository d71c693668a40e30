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

// Package store holds the process-local state the engine serializes all
// mutations through: the visible record set, the pending mutation queue and
// the syncedAt watermark. Nothing outside pkg/engine is expected to mutate
// a Store directly — Replicator and Mutator reach it only through Engine
// methods.
package store

import (
	"time"

	"github.com/united-manufacturing-hub/replisync/pkg/record"
)

// Epoch is the fixed watermark a fresh Store's syncedAt is initialized to,
// the "DOB" spec.md §3 refers to — old enough that any real updatedAt
// advances past it on the first snapshot.
var Epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// QueuedMutation is one pending local mutation awaiting remote confirmation.
// Args preserves exactly what must be replayed against the remote service.
type QueuedMutation struct {
	EventName string
	Record    record.Record
	Args      []any
}

// UUID is a convenience accessor used by coalescing and removal lookups.
func (q QueuedMutation) UUID() string {
	u, _ := q.Record.UUID()

	return u
}

// Last describes the most recently emitted event, per spec.md §4.1.
// Source is 0 for remote-origin events and 1 for local optimistic ones.
type Last struct {
	Source    int
	Action    string
	EventName string
	Record    record.Record
}

// Store is the Engine's owned state. The zero value is not meaningful; use
// New.
type Store struct {
	Records  []record.Record
	Queued   []QueuedMutation
	SyncedAt time.Time
	Last     Last
}

// New returns an empty Store with SyncedAt initialized to Epoch.
func New() *Store {
	return &Store{
		Records:  []record.Record{},
		Queued:   []QueuedMutation{},
		SyncedAt: Epoch,
	}
}

// IndexByServerID returns the index of the record with the given server id,
// or -1 if none matches. Implements I2's server-id half of record identity.
func (s *Store) IndexByServerID(id any) int {
	for i, r := range s.Records {
		if rid, ok := r.ServerID(); ok && rid == id {
			return i
		}
	}

	return -1
}

// IndexByUUID returns the index of the record with the given uuid, or -1.
// Implements I2's uuid half of record identity, used on the optimistic path.
func (s *Store) IndexByUUID(uuid string) int {
	for i, r := range s.Records {
		if u, ok := r.UUID(); ok && u == uuid {
			return i
		}
	}

	return -1
}

// AdvanceSyncedAt advances SyncedAt to t if t is later, implementing I3's
// monotonic, never-decreasing watermark.
func (s *Store) AdvanceSyncedAt(t time.Time) {
	if t.After(s.SyncedAt) {
		s.SyncedAt = t
	}
}
