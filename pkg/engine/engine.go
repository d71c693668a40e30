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

// Package engine is the core of the replication client: the local record
// array, the mutation queue, the event emitter, the publication filter and
// the sort order. It is the only component that touches *store.Store
// directly — Replicator and Mutator reach it only through these methods.
//
// # Architecture
//
// Engine serializes every mutation of records and queued behind a single
// mutex. spec.md's concurrency model assumes single-threaded cooperative
// scheduling (no lock needed); this is a faithful Go adaptation of that
// guarantee for a runtime where callers may legitimately be separate
// goroutines (a remote-event callback racing a local Mutator call).
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/replisync/pkg/persistence"
	"github.com/united-manufacturing-hub/replisync/pkg/query"
	"github.com/united-manufacturing-hub/replisync/pkg/record"
	"github.com/united-manufacturing-hub/replisync/pkg/remote"
	"github.com/united-manufacturing-hub/replisync/pkg/rerrors"
	"github.com/united-manufacturing-hub/replisync/pkg/store"
	"github.com/united-manufacturing-hub/replisync/pkg/telemetry"
)

// Emitted action names, per spec.md §6.
const (
	ActionSnapshot       = "snapshot"
	ActionAddListeners   = "add-listeners"
	ActionRemoveListeners = "remove-listeners"
	ActionChangeSort     = "change-sort"
	ActionMutated        = "mutated"
	ActionRemove         = "remove"
	ActionLeftPub        = "left-pub"
)

// Event source values, per spec.md §4.1.
const (
	SourceRemote = 0
	SourceLocal  = 1
)

// Config configures an Engine at construction. Remote, Publication, Sort
// and Persistence are all optional (nil-able).
type Config struct {
	// Remote is the service the listening state machine subscribes to and
	// processQueuedEvents replays against.
	Remote remote.Service

	// Publication is the predicate selecting which records belong to this
	// client's view (spec.md §6). Nil means "everything is published".
	Publication func(record.Record) bool

	// Sort, if set, keeps Records ordered after every mutation (I5).
	Sort query.Less

	// UseUUID and UseUpdatedAt record whether this Engine is configured
	// for the optimistic path (uuid-keyed identity, Replicator's
	// incremental resync). Mutator.New requires both true, per spec.md
	// §4.3's construction contract.
	UseUUID      bool
	UseUpdatedAt bool

	// Subscriber is the single direct callback spec.md §6 names alongside
	// the "events" topic.
	Subscriber EventHandler

	// Persistence is the optional queue-durability hook from spec.md §9.
	Persistence persistence.Store

	// Clock overrides the wall-clock source used to stamp updatedAt on
	// optimistic apply, per spec.md §9's open question — tests substitute
	// a fixed clock; production uses time.Now.
	Clock func() time.Time

	// HistorySize bounds the diagnostic ring buffer; 0 uses a default.
	HistorySize int

	Logger *zap.SugaredLogger
}

// Engine is the local source of truth described in spec.md §4.1.
type Engine struct {
	mu      sync.Mutex
	store   *store.Store
	cfg     Config
	emitter *emitter
	fsm     *fsm.FSM
	unsubs  []func()
	history *historyRing
	log     *zap.SugaredLogger
}

// New constructs an Engine with an empty Store (loaded from cfg.Persistence
// if provided), in the idle (not listening) state.
func New(cfg Config) (*Engine, error) {
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	e := &Engine{
		store:   store.New(),
		cfg:     cfg,
		emitter: newEmitter(),
		history: newHistoryRing(cfg.HistorySize),
		log:     log,
	}

	e.fsm = newListeningFSM(e.onEnterListening, e.onEnterIdle)

	if cfg.Persistence != nil {
		queued, err := cfg.Persistence.Load()
		if err != nil {
			return nil, fmt.Errorf("load persisted queue: %w", err)
		}

		e.store.Queued = queued
	}

	return e, nil
}

func (e *Engine) onEnterListening(ctx context.Context, ev *fsm.Event) {
	if e.cfg.Remote == nil {
		return
	}

	topics := []string{remote.Created, remote.Updated, remote.Patched, remote.Removed}
	for _, topic := range topics {
		t := topic
		unsub := e.cfg.Remote.On(t, func(r record.Record) {
			if _, err := e.MutateStore(t, r, SourceRemote); err != nil {
				e.log.Warnw("remote event rejected", "topic", t, "error", err)
			}
		})
		e.unsubs = append(e.unsubs, unsub)
	}

	e.emitLocked(SourceRemote, ActionAddListeners, "", nil)
}

func (e *Engine) onEnterIdle(ctx context.Context, ev *fsm.Event) {
	for _, unsub := range e.unsubs {
		unsub()
	}

	e.unsubs = nil

	e.emitLocked(SourceRemote, ActionRemoveListeners, "", nil)
}

// AddListeners transitions idle → listening, subscribing to the remote
// service's four change topics.
func (e *Engine) AddListeners(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.fsm.Event(ctx, eventListen)
}

// RemoveListeners transitions listening → idle, detaching subscriptions.
func (e *Engine) RemoveListeners(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fsm.Current() != stateListening {
		return nil
	}

	return e.fsm.Event(ctx, eventUnlisten)
}

// Snapshot replaces Records wholesale (spec.md §4.1's snapshot operation).
func (e *Engine) Snapshot(records []record.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()

	synced := store.Epoch

	cloned := make([]record.Record, len(records))
	for i, r := range records {
		cloned[i] = r.Clone()

		if t, ok := r.UpdatedAt(); ok && t.After(synced) {
			synced = t
		}
	}

	if e.cfg.Sort != nil {
		query.SortRecords(cloned, e.cfg.Sort)
	}

	e.store.Records = cloned
	e.store.AdvanceSyncedAt(synced)

	e.emitLocked(SourceRemote, ActionSnapshot, "snapshot", nil)
}

// ChangeSort installs a new sort function and re-sorts Records in place.
func (e *Engine) ChangeSort(fn query.Less) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg.Sort = fn
	if fn != nil {
		query.SortRecords(e.store.Records, fn)
	}

	e.emitLocked(SourceRemote, ActionChangeSort, "change-sort", nil)
}

// Records returns a snapshot copy of the currently visible records.
func (e *Engine) Records() []record.Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]record.Record, len(e.store.Records))
	for i, r := range e.store.Records {
		out[i] = r.Clone()
	}

	return out
}

// ExistsByUUID reports whether a record with the given uuid is currently
// in Records — the uniqueness check Mutator.Create uses before minting a
// new local record.
func (e *Engine) ExistsByUUID(uuid string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.IndexByUUID(uuid) >= 0
}

// ByServerID returns the record with the given server id, if present.
func (e *Engine) ByServerID(id any) (record.Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.store.IndexByServerID(id)
	if idx < 0 {
		return nil, false
	}

	return e.store.Records[idx].Clone(), true
}

// Queued returns a copy of the pending mutation queue.
func (e *Engine) Queued() []store.QueuedMutation {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]store.QueuedMutation, len(e.store.Queued))
	copy(out, e.store.Queued)

	return out
}

// SyncedAt returns the current syncedAt watermark.
func (e *Engine) SyncedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.SyncedAt
}

// Last returns the most recently emitted event descriptor.
func (e *Engine) Last() store.Last {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.Last
}

// History returns the buffered diagnostic event trail.
func (e *Engine) History() []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.history.Snapshot()
}

// OnEvents subscribes to the Engine's "events" topic and returns an
// unsubscribe function.
func (e *Engine) OnEvents(h EventHandler) (unsubscribe func()) {
	return e.emitter.On(h)
}

// emitLocked must be called with e.mu held. It stamps store.Last, pushes a
// history entry, and fans out to the subscriber callback and the "events"
// topic, per spec.md §4.1's "every emit sets store.last ... and notifies
// both the event emitter ... and the subscriber callback".
func (e *Engine) emitLocked(source int, action, eventName string, rec record.Record) {
	e.store.Last = store.Last{Source: source, Action: action, EventName: eventName, Record: rec}

	e.history.push(HistoryEntry{At: e.cfg.Clock(), Source: source, Action: action, EventName: eventName})

	records := make([]record.Record, len(e.store.Records))
	for i, r := range e.store.Records {
		records[i] = r.Clone()
	}

	last := e.store.Last

	telemetry.RecordsLength.Set(float64(len(e.store.Records)))
	telemetry.QueuedLength.Set(float64(len(e.store.Queued)))
	telemetry.ObserveSyncedAt(e.store.SyncedAt)

	if e.cfg.Subscriber != nil {
		e.cfg.Subscriber(records, last)
	}

	e.emitter.Emit(records, last)
}

// savePersistenceLocked must be called with e.mu held, after any mutation
// to e.store.Queued.
func (e *Engine) savePersistenceLocked() {
	telemetry.QueuedLength.Set(float64(len(e.store.Queued)))

	if e.cfg.Persistence == nil {
		return
	}

	queued := make([]store.QueuedMutation, len(e.store.Queued))
	copy(queued, e.store.Queued)

	if err := e.cfg.Persistence.Save(queued); err != nil {
		e.log.Warnw("queue persistence save failed", "error", err)
	}
}

// MutateStore is the central apply routine of spec.md §4.1: locate any
// existing record, dispatch on eventName, apply the publication filter,
// stamp and append, and emit. eventName is one of "created", "updated",
// "patched", "removed" (remote naming) or "create", "update", "patch",
// "remove" (local naming) — only "removed"/"remove" is special-cased;
// everything else takes the upsert path.
func (e *Engine) MutateStore(eventName string, rec record.Record, source int) (record.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	if id, ok := rec.ServerID(); ok {
		idx = e.store.IndexByServerID(id)
	}

	if idx < 0 {
		if uuid, ok := rec.UUID(); ok {
			idx = e.store.IndexByUUID(uuid)
		}
	}

	var beforeRecord record.Record

	present := idx >= 0
	if present {
		beforeRecord = e.store.Records[idx].Clone()
		e.store.Records = append(e.store.Records[:idx], e.store.Records[idx+1:]...)
	}

	if isRemoveEvent(eventName) {
		passesPublication := e.cfg.Publication == nil || e.cfg.Publication(rec)
		if present || (source == SourceRemote && passesPublication) {
			e.emitLocked(source, ActionRemove, eventName, beforeRecord)
		}

		return beforeRecord, nil
	}

	if e.cfg.Publication != nil && !e.cfg.Publication(rec) {
		if present {
			e.emitLocked(source, ActionLeftPub, eventName, beforeRecord)
		}

		return nil, nil
	}

	applied := rec.Clone()
	applied.SetUpdatedAt(e.cfg.Clock())

	e.store.Records = append(e.store.Records, applied)
	if e.cfg.Sort != nil {
		query.SortRecords(e.store.Records, e.cfg.Sort)
	}

	e.emitLocked(source, ActionMutated, eventName, applied)

	return applied.Clone(), nil
}

func isRemoveEvent(eventName string) bool {
	return eventName == "remove" || eventName == remote.Removed
}

// AddQueuedEvent appends a queue entry verbatim, with no coalescing.
func (e *Engine) AddQueuedEvent(eventName string, rec record.Record, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.Queued = append(e.store.Queued, store.QueuedMutation{
		EventName: eventName,
		Record:    rec.Clone(),
		Args:      args,
	})

	e.savePersistenceLocked()
}

// AddQueuedNetEvent appends with coalescing: a prior non-remove queued
// entry for the same uuid is overwritten in place (net-change semantics);
// a prior remove entry may only be followed by a create, which is inserted
// immediately after it — any other follow-up is a coalescing violation and
// fails with BadRequest, per spec.md §4.1.
func (e *Engine) AddQueuedNetEvent(eventName string, rec record.Record, args ...any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	uuid, ok := rec.UUID()
	if !ok {
		return rerrors.BadRequest("addQueuedNetEvent requires a uuid", nil)
	}

	priorIdx := -1
	for i := len(e.store.Queued) - 1; i >= 0; i-- {
		if e.store.Queued[i].UUID() == uuid {
			priorIdx = i

			break
		}
	}

	entry := store.QueuedMutation{EventName: eventName, Record: rec.Clone(), Args: args}

	switch {
	case priorIdx < 0:
		e.store.Queued = append(e.store.Queued, entry)
	case e.store.Queued[priorIdx].EventName == "remove":
		if eventName != "create" {
			err := rerrors.BadRequest(
				fmt.Sprintf("impossible queue coalescing: %s after remove for uuid %s", eventName, uuid), nil)
			rerrors.ReportPermanentFailure(e.log, "engine", "addQueuedNetEvent", err)

			return err
		}

		tail := append([]store.QueuedMutation{entry}, e.store.Queued[priorIdx+1:]...)
		e.store.Queued = append(e.store.Queued[:priorIdx+1], tail...)
	default:
		e.store.Queued[priorIdx] = entry
	}

	e.savePersistenceLocked()

	return nil
}

// RemoveQueuedEvent scans queued from the newest end backward for the most
// recent (uuid, eventName) match, removes it, and — if updatedAt is
// non-zero — advances syncedAt. Invoked after a successful remote
// confirmation. Per spec.md §9's open question, the match key is
// standardized on uuid (the only identifier stable before server
// confirmation), not the id/_id the original toggled between.
func (e *Engine) RemoveQueuedEvent(eventName string, rec record.Record, updatedAt time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	uuid, ok := rec.UUID()
	if !ok {
		return false
	}

	for i := len(e.store.Queued) - 1; i >= 0; i-- {
		if e.store.Queued[i].UUID() == uuid && e.store.Queued[i].EventName == eventName {
			e.store.Queued = append(e.store.Queued[:i], e.store.Queued[i+1:]...)

			if !updatedAt.IsZero() {
				e.store.AdvanceSyncedAt(updatedAt)
			}

			e.savePersistenceLocked()

			return true
		}
	}

	return false
}

// ProcessQueuedEvents drains Queued head-first, replaying each entry
// against cfg.Remote. On the first failure it stops with the failing
// entry still at the head (nothing is popped until the remote call
// succeeds, so "push back onto the head" in spec.md §4.1 is implicit).
func (e *Engine) ProcessQueuedEvents(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.Remote == nil {
		return nil
	}

	for len(e.store.Queued) > 0 {
		entry := e.store.Queued[0]

		res, err := e.replayLocked(ctx, entry)
		if err != nil {
			return fmt.Errorf("replay queued %s for uuid %s: %w", entry.EventName, entry.UUID(), err)
		}

		e.store.Queued = e.store.Queued[1:]

		if res != nil {
			if t, ok := res.UpdatedAt(); ok {
				e.store.AdvanceSyncedAt(t)
			}
		}

		e.savePersistenceLocked()
	}

	return nil
}

// replayLocked dispatches one queued entry to the matching remote method.
// Args is positional, per the QueuedMutation contract: [0] is the id
// (nil for create) and [1] is the query.Params used on the original call.
func (e *Engine) replayLocked(ctx context.Context, entry store.QueuedMutation) (record.Record, error) {
	var id any

	params := query.Params{}

	if len(entry.Args) > 0 {
		id = entry.Args[0]
	}

	if len(entry.Args) > 1 {
		if p, ok := entry.Args[1].(query.Params); ok {
			params = p
		}
	}

	switch entry.EventName {
	case "create":
		return e.cfg.Remote.Create(ctx, entry.Record, params)
	case "update":
		return e.cfg.Remote.Update(ctx, id, entry.Record, params)
	case "patch":
		return e.cfg.Remote.Patch(ctx, id, entry.Record, params)
	case "remove":
		return e.cfg.Remote.Remove(ctx, id, params)
	default:
		return nil, fmt.Errorf("unknown queued event name %q", entry.EventName)
	}
}
