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
	"fmt"
	"time"

	"github.com/united-manufacturing-hub/replisync/pkg/engine"
	"github.com/united-manufacturing-hub/replisync/pkg/query"
	"github.com/united-manufacturing-hub/replisync/pkg/record"
	"github.com/united-manufacturing-hub/replisync/pkg/replicator"
	"github.com/united-manufacturing-hub/replisync/pkg/rerrors"
)

// Create optimistically applies a new record and queues it for remote
// replay, per spec.md §4.3. The remote call is invoked asynchronously
// under the Mutator's time limit; Create itself returns as soon as the
// optimistic apply and enqueue complete, without waiting on the remote
// outcome.
func (m *Mutator) Create(ctx context.Context, data record.Record, params query.Params) (record.Record, error) {
	if !m.cfg.Replicator.Connected() {
		return nil, rerrors.BadRequest("Replicator not connected", nil)
	}

	data = data.Clone()

	uuid, ok := data.UUID()
	if !ok {
		uuid = replicator.GetUUID(m.cfg.MintShortUUID)
		data.SetUUID(uuid)
	}

	if m.engine().ExistsByUUID(uuid) {
		return nil, rerrors.BadRequest("unique uuid", nil)
	}

	applied, err := m.engine().MutateStore("created", data, engine.SourceLocal)
	if err != nil {
		return nil, err
	}

	m.engine().AddQueuedEvent("create", applied, nil, params)

	start := time.Now()

	go func() {
		res, err := callWithTimeLimit(context.Background(), m.cfg.Timeout, []any{applied, params},
			func(ctx context.Context) (record.Record, error) {
				return m.cfg.Replicator.Remote().Create(ctx, applied, params)
			})

		observeMutation("create", start, err)

		if err != nil {
			m.log.Debugw("remote create left queued", "uuid", uuid, "error", err)

			return
		}

		updatedAt, _ := res.UpdatedAt()
		m.engine().RemoveQueuedEvent("create", applied, updatedAt)
	}()

	return project(applied, params), nil
}

// Update requires data.uuid to be derivable (from the existing record
// located by id), optimistically applies, enqueues, and confirms
// asynchronously exactly like Create.
func (m *Mutator) Update(ctx context.Context, id any, data record.Record, params query.Params) (record.Record, error) {
	existing, ok := m.engine().ByServerID(id)
	if !ok {
		return nil, rerrors.NotFound(fmt.Sprintf("no record with id %v", id), nil)
	}

	uuid, ok := existing.UUID()
	if !ok {
		return nil, rerrors.BadRequest("update requires the existing record to have a uuid", nil)
	}

	data = data.Clone()
	data.SetUUID(uuid)
	data.SetServerID(id)

	applied, err := m.engine().MutateStore("updated", data, engine.SourceLocal)
	if err != nil {
		return nil, err
	}

	if err := m.engine().AddQueuedNetEvent("update", applied, id, params); err != nil {
		return nil, err
	}

	start := time.Now()

	go func() {
		res, err := callWithTimeLimit(context.Background(), m.cfg.Timeout, []any{id, applied, params},
			func(ctx context.Context) (record.Record, error) {
				return m.cfg.Replicator.Remote().Update(ctx, id, applied, params)
			})

		observeMutation("update", start, err)

		if err != nil {
			m.log.Debugw("remote update left queued", "uuid", uuid, "error", err)

			return
		}

		updatedAt, _ := res.UpdatedAt()
		m.engine().RemoveQueuedEvent("update", applied, updatedAt)
	}()

	return project(applied, params), nil
}

// Patch merges data over the existing record (or, when id is nil, fans
// out over Find(params)'s results), optimistically applies "patched",
// enqueues, and confirms asynchronously.
func (m *Mutator) Patch(ctx context.Context, id any, data record.Record, params query.Params) (any, error) {
	if id == nil {
		return m.fanOut(params, func(r record.Record) (record.Record, error) {
			rid, _ := r.ServerID()

			res, err := m.Patch(ctx, rid, data, params)
			if err != nil {
				return nil, err
			}

			rec, _ := res.(record.Record)

			return rec, nil
		})
	}

	existing, ok := m.engine().ByServerID(id)
	if !ok {
		return nil, rerrors.NotFound(fmt.Sprintf("no record with id %v", id), nil)
	}

	merged := existing.Merge(data)

	applied, err := m.engine().MutateStore("patched", merged, engine.SourceLocal)
	if err != nil {
		return nil, err
	}

	if err := m.engine().AddQueuedNetEvent("patch", applied, id, params); err != nil {
		return nil, err
	}

	start := time.Now()

	go func() {
		res, err := callWithTimeLimit(context.Background(), m.cfg.Timeout, []any{id, applied, params},
			func(ctx context.Context) (record.Record, error) {
				return m.cfg.Replicator.Remote().Patch(ctx, id, applied, params)
			})

		observeMutation("patch", start, err)

		if err != nil {
			m.log.Debugw("remote patch left queued", "id", id, "error", err)

			return
		}

		updatedAt, _ := res.UpdatedAt()
		m.engine().RemoveQueuedEvent("patch", applied, updatedAt)
	}()

	return project(applied, params), nil
}

// Remove optimistically removes the record locally (or, when id is nil,
// fans out over Find(params)'s results), enqueues the snapshot for replay,
// and confirms asynchronously.
func (m *Mutator) Remove(ctx context.Context, id any, params query.Params) (any, error) {
	if id == nil {
		return m.fanOut(params, func(r record.Record) (record.Record, error) {
			rid, _ := r.ServerID()

			return m.remove(ctx, rid, params)
		})
	}

	return m.remove(ctx, id, params)
}

func (m *Mutator) remove(ctx context.Context, id any, params query.Params) (record.Record, error) {
	existing, ok := m.engine().ByServerID(id)
	if !ok {
		return nil, rerrors.NotFound(fmt.Sprintf("no record with id %v", id), nil)
	}

	snapshot := existing.Clone()

	if _, err := m.engine().MutateStore("removed", snapshot, engine.SourceLocal); err != nil {
		return nil, err
	}

	if err := m.engine().AddQueuedNetEvent("remove", snapshot, id, params); err != nil {
		return nil, err
	}

	start := time.Now()

	go func() {
		res, err := callWithTimeLimit(context.Background(), m.cfg.Timeout, []any{id, params},
			func(ctx context.Context) (record.Record, error) {
				return m.cfg.Replicator.Remote().Remove(ctx, id, params)
			})

		observeMutation("remove", start, err)

		if err != nil {
			m.log.Debugw("remote remove left queued", "id", id, "error", err)

			return
		}

		updatedAt, _ := res.UpdatedAt()
		m.engine().RemoveQueuedEvent("remove", snapshot, updatedAt)
	}()

	return project(snapshot, params), nil
}

func (m *Mutator) fanOut(params query.Params, op func(record.Record) (record.Record, error)) ([]record.Record, error) {
	res := m.Find(params)

	var records []record.Record

	switch v := res.(type) {
	case []record.Record:
		records = v
	case *query.Page:
		records = v.Data
	}

	out := make([]record.Record, 0, len(records))

	for _, r := range records {
		applied, err := op(r)
		if err != nil {
			return nil, err
		}

		out = append(out, applied)
	}

	return out, nil
}
