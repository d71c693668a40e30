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

// Package mutator exposes the standard CRUD surface of a local record
// service (find/get/create/update/patch/remove) while driving optimistic
// replication through the bound Replicator's Engine, per spec.md §4.3.
package mutator

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/replisync/pkg/engine"
	"github.com/united-manufacturing-hub/replisync/pkg/query"
	"github.com/united-manufacturing-hub/replisync/pkg/record"
	"github.com/united-manufacturing-hub/replisync/pkg/replicator"
	"github.com/united-manufacturing-hub/replisync/pkg/rerrors"
	"github.com/united-manufacturing-hub/replisync/pkg/telemetry"
)

// defaultTimeout is used when Config.Timeout is unset — within spec.md
// §4.3's suggested "500-2500ms" range.
const defaultTimeout = 1500 * time.Millisecond

// Config is the Mutator's construction contract, per spec.md §4.3.
type Config struct {
	// Replicator is mandatory; its Engine must have UseUUID and
	// UseUpdatedAt both true, or New fails.
	Replicator *replicator.Replicator

	// Timeout bounds every remote call the Mutator's write methods launch
	// (spec.md §4.4).
	Timeout time.Duration

	// Paginate is the default pagination behavior for Find when params
	// doesn't specify its own.
	Paginate query.PaginateOptions

	// Matcher evaluates find/get query predicates over local records.
	Matcher query.Matcher

	// MintShortUUID selects the compact uuid form for auto-minted
	// creates; false uses the 36-character canonical form.
	MintShortUUID bool

	Logger *zap.SugaredLogger
}

// Mutator is spec.md §4.3's component.
type Mutator struct {
	cfg Config
	log *zap.SugaredLogger
}

// New validates cfg and constructs a Mutator.
func New(cfg Config) (*Mutator, error) {
	if cfg.Replicator == nil {
		return nil, rerrors.BadRequest("mutator requires a replicator", nil)
	}

	eng := cfg.Replicator.Engine()
	if !eng.UseUUID() || !eng.UseUpdatedAt() {
		return nil, rerrors.BadRequest("mutator requires an engine configured with useUuid and useUpdatedAt", nil)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.Matcher == nil {
		cfg.Matcher = query.DefaultMatcher{}
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Mutator{cfg: cfg, log: log}, nil
}

func (m *Mutator) engine() *engine.Engine { return m.cfg.Replicator.Engine() }

// Find filters Records with the configured matcher and applies
// $sort/$skip/$limit, returning either a bare slice or a paginated
// envelope depending on params.Paginate, or on Config.Paginate when params
// does not enable pagination — spec.md §4.3. Read-only: it
// never mutates Records or Queued.
func (m *Mutator) Find(params query.Params) any {
	if !params.Paginate.Enabled && m.cfg.Paginate.Enabled {
		params.Paginate = m.cfg.Paginate
	}

	return query.Apply(m.engine().Records(), m.cfg.Matcher, params)
}

// Get looks up a record by uuid, erroring NotFound if absent.
func (m *Mutator) Get(uuid string, params query.Params) (record.Record, error) {
	for _, r := range m.engine().Records() {
		if u, ok := r.UUID(); ok && u == uuid {
			return r, nil
		}
	}

	return nil, rerrors.NotFound(fmt.Sprintf("no record with uuid %q", uuid), nil)
}

// project applies params.Query["$select"] if present, always retaining
// id, _id and uuid — spec.md §4.3's "projected through the param selection
// with id, _id, uuid always retained".
func project(r record.Record, params query.Params) record.Record {
	raw, ok := params.Query["$select"]
	if !ok {
		return r
	}

	fields, ok := raw.([]string)
	if !ok {
		if anyFields, ok := raw.([]any); ok {
			for _, f := range anyFields {
				if s, ok := f.(string); ok {
					fields = append(fields, s)
				}
			}
		}
	}

	if len(fields) == 0 {
		return r
	}

	out := make(record.Record, len(fields)+3)
	for _, f := range fields {
		if v, ok := r.Get(f); ok {
			out[f] = v
		}
	}

	for _, keep := range []string{"id", "_id", "uuid"} {
		if v, ok := r.Get(keep); ok {
			out[keep] = v
		}
	}

	return out
}

func observeMutation(method string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	telemetry.MutationsTotal.WithLabelValues(method, outcome).Inc()
	telemetry.MutationLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
