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

// Package replicator binds an Engine to one remote service instance and
// owns the connect/reconnect flow, per spec.md §4.2.
package replicator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/replisync/pkg/ctxutil/ctxmutex"
	"github.com/united-manufacturing-hub/replisync/pkg/engine"
	"github.com/united-manufacturing-hub/replisync/pkg/query"
	"github.com/united-manufacturing-hub/replisync/pkg/record"
	"github.com/united-manufacturing-hub/replisync/pkg/remote"
)

// Config configures a Replicator.
type Config struct {
	Engine *engine.Engine
	Remote remote.Service

	// BaseQuery is merged with any extraQuery passed to Connect.
	BaseQuery map[string]any

	// UseUpdatedAt, when true, merges "updatedAt >= syncedAt" into every
	// snapshot query — the incremental-resync mode spec.md §4.2 describes.
	// The Mutator's construction check looks at the Engine's own
	// UseUpdatedAt flag, not at this one.
	UseUpdatedAt bool

	// Publication re-filters the fetched snapshot client-side; pass the
	// same predicate given to the Engine.
	Publication func(record.Record) bool

	// Sort orders the fetched snapshot before handing it to Engine.Snapshot.
	Sort query.Less

	// PageSize bounds each internal Find call while draining a paginated
	// remote result set; 0 means "ask for everything in one call".
	PageSize int

	Logger *zap.SugaredLogger
}

// Replicator is spec.md §4.2's component. It holds no back-reference to
// the Mutator — ownership flows Mutator → Replicator → Engine, per
// spec.md §9's "Cyclic ownership" design note.
type Replicator struct {
	mu  *ctxmutex.CtxMutex
	cfg Config
	log *zap.SugaredLogger
}

// New constructs a Replicator bound to cfg.Engine and cfg.Remote.
func New(cfg Config) *Replicator {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Replicator{cfg: cfg, log: log, mu: ctxmutex.NewCtxMutex()}
}

// Engine returns the bound Engine, for components (Mutator) that need it.
func (r *Replicator) Engine() *engine.Engine { return r.cfg.Engine }

// Remote returns the bound remote service, for components (Mutator) that
// need to invoke it directly.
func (r *Replicator) Remote() remote.Service { return r.cfg.Remote }

// Connect runs the eight-step flow of spec.md §4.2: detach listeners,
// build the snapshot query, drain it from the remote service, filter and
// sort client-side, hand the result to Engine.Snapshot, replay the queue,
// then reattach listeners.
func (r *Replicator) Connect(ctx context.Context, extraQuery map[string]any) error {
	if err := r.mu.Lock(ctx); err != nil {
		return fmt.Errorf("acquire connect lock: %w", err)
	}
	defer r.mu.Unlock()

	if err := r.cfg.Engine.RemoveListeners(ctx); err != nil {
		return fmt.Errorf("detach listeners before connect: %w", err)
	}

	q := r.buildQuery(extraQuery)

	records, err := r.drain(ctx, q)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	if r.cfg.Publication != nil {
		records = filterPublication(records, r.cfg.Publication)
	}

	if r.cfg.Sort != nil {
		query.SortRecords(records, r.cfg.Sort)
	}

	r.cfg.Engine.Snapshot(records)

	if err := r.cfg.Engine.ProcessQueuedEvents(ctx); err != nil {
		r.log.Warnw("queue replay on connect failed, will retry on next connect", "error", err)
	}

	if err := r.cfg.Engine.AddListeners(ctx); err != nil {
		return fmt.Errorf("attach listeners after connect: %w", err)
	}

	return nil
}

// Disconnect detaches listeners. The local store and queue are retained.
func (r *Replicator) Disconnect(ctx context.Context) error {
	if err := r.mu.Lock(ctx); err != nil {
		return fmt.Errorf("acquire connect lock: %w", err)
	}
	defer r.mu.Unlock()

	return r.cfg.Engine.RemoveListeners(ctx)
}

// Connected reports whether listeners are currently attached — the signal
// the Mutator checks before accepting a write.
func (r *Replicator) Connected() bool {
	return r.cfg.Engine.IsListening()
}

func (r *Replicator) buildQuery(extraQuery map[string]any) map[string]any {
	q := make(map[string]any, len(r.cfg.BaseQuery)+len(extraQuery)+1)

	for k, v := range r.cfg.BaseQuery {
		q[k] = v
	}

	for k, v := range extraQuery {
		q[k] = v
	}

	if r.cfg.UseUpdatedAt {
		q["updatedAt"] = map[string]any{"$gte": r.cfg.Engine.SyncedAt()}
	}

	return q
}

// drain fetches the full matching result set, paginating internally until
// the remote service's declared total is reached.
func (r *Replicator) drain(ctx context.Context, q map[string]any) ([]record.Record, error) {
	params := query.Params{Query: copyQuery(q), Paginate: query.PaginateOptions{Enabled: true, Default: r.cfg.PageSize}}

	var out []record.Record

	skip := 0

	for {
		params.Query["$skip"] = skip

		res, err := r.cfg.Remote.Find(ctx, params)
		if err != nil {
			return nil, err
		}

		switch v := res.(type) {
		case *query.Page:
			out = append(out, v.Data...)

			if len(v.Data) == 0 || len(out) >= v.Total {
				return out, nil
			}

			skip += len(v.Data)
		case []record.Record:
			return append(out, v...), nil
		default:
			return out, nil
		}
	}
}

func filterPublication(records []record.Record, pub func(record.Record) bool) []record.Record {
	out := make([]record.Record, 0, len(records))

	for _, r := range records {
		if pub(r) {
			out = append(out, r)
		}
	}

	return out
}

func copyQuery(q map[string]any) map[string]any {
	out := make(map[string]any, len(q)+2)
	for k, v := range q {
		out[k] = v
	}

	return out
}
