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

import "time"

// HistoryEntry records one emitted event for the diagnostic ring buffer —
// the action_history pattern the teacher's FSM workers keep for debugging
// state transitions, applied here to the Engine's emission stream instead.
type HistoryEntry struct {
	At        time.Time
	Source    int
	Action    string
	EventName string
}

// historyRing is a fixed-capacity ring buffer; once full, the oldest entry
// is overwritten. Not a correctness mechanism — purely a read-only
// diagnostic trail, so it carries no locking of its own beyond what the
// Engine already provides.
type historyRing struct {
	entries []HistoryEntry
	cap     int
	next    int
	full    bool
}

func newHistoryRing(capacity int) *historyRing {
	if capacity <= 0 {
		capacity = 200
	}

	return &historyRing{entries: make([]HistoryEntry, capacity), cap: capacity}
}

func (h *historyRing) push(e HistoryEntry) {
	h.entries[h.next] = e
	h.next = (h.next + 1) % h.cap

	if h.next == 0 {
		h.full = true
	}
}

// Snapshot returns the buffered entries in chronological order.
func (h *historyRing) Snapshot() []HistoryEntry {
	if !h.full {
		out := make([]HistoryEntry, h.next)
		copy(out, h.entries[:h.next])

		return out
	}

	out := make([]HistoryEntry, h.cap)
	copy(out, h.entries[h.next:])
	copy(out[h.cap-h.next:], h.entries[:h.next])

	return out
}
