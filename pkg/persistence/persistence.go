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

// Package persistence implements spec.md §9's open extension point: a
// (load, save) hook pair called at Engine construction and after every
// queue mutation, so the otherwise in-memory-only mutation queue can
// survive a process restart. Two backends are provided: Memory (the
// default — matches the original's in-memory-only behavior) and SQLite
// (an actually durable one, exercising mattn/go-sqlite3).
package persistence

import "github.com/united-manufacturing-hub/replisync/pkg/store"

// Store is the hook pair the Engine calls. Load runs once at construction;
// Save runs after every mutation to store.Queued (addQueuedEvent,
// addQueuedNetEvent, removeQueuedEvent, processQueuedEvents).
type Store interface {
	Load() ([]store.QueuedMutation, error)
	Save(queue []store.QueuedMutation) error
}
