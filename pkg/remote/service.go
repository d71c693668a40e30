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

// Package remote defines the remote-service contract spec.md §6 consumes
// (find/get/create/update/patch/remove plus a four-topic change feed), an
// in-memory fake for tests and the seed scenarios, and (in the httpremote
// subpackage) a gin-based reference HTTP/JSON adapter.
package remote

import (
	"context"

	"github.com/united-manufacturing-hub/replisync/pkg/query"
	"github.com/united-manufacturing-hub/replisync/pkg/record"
)

// Change event topic names, per spec.md §6's "created, updated, patched,
// removed" four-topic change feed.
const (
	Created = "created"
	Updated = "updated"
	Patched = "patched"
	Removed = "removed"
)

// Service is the remote collection the Replicator binds the Engine to, and
// the Mutator calls to drive each CRUD operation's remote half.
type Service interface {
	Find(ctx context.Context, params query.Params) (any, error)
	Get(ctx context.Context, id any, params query.Params) (record.Record, error)
	Create(ctx context.Context, data record.Record, params query.Params) (record.Record, error)
	Update(ctx context.Context, id any, data record.Record, params query.Params) (record.Record, error)
	Patch(ctx context.Context, id any, data record.Record, params query.Params) (record.Record, error)
	Remove(ctx context.Context, id any, params query.Params) (record.Record, error)

	// On subscribes handler to topic (one of Created/Updated/Patched/
	// Removed) and returns an unsubscribe function. The engine calls
	// this from addListeners and the returned func from removeListeners.
	On(topic string, handler func(record.Record)) (unsubscribe func())
}
