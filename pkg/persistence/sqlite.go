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

package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/united-manufacturing-hub/replisync/pkg/store"
)

// SQLite is a durable queue-persistence backend. The whole queue is kept
// as a single JSON blob in one row — the queue is small (bounded by
// in-flight local mutations) and always read/written as a unit, so there's
// no need for the teacher's full multi-collection document store; a
// one-row table is enough to make the hook actually durable.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if necessary) a SQLite-backed queue store at
// path, using WAL mode so a crash mid-write doesn't corrupt the file —
// the same connection-string convention the teacher's persistence layer
// uses for its own SQLite-backed stores.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite queue store: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS queue (
		id INTEGER PRIMARY KEY CHECK (id = 0),
		data TEXT NOT NULL
	)`); err != nil {
		db.Close()

		return nil, fmt.Errorf("create queue table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Load() ([]store.QueuedMutation, error) {
	var data string

	err := s.db.QueryRow(`SELECT data FROM queue WHERE id = 0`).Scan(&data)
	if err == sql.ErrNoRows {
		return []store.QueuedMutation{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}

	var queue []store.QueuedMutation
	if err := json.Unmarshal([]byte(data), &queue); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}

	return queue, nil
}

func (s *SQLite) Save(queue []store.QueuedMutation) error {
	data, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}

	_, err = s.db.Exec(`INSERT INTO queue (id, data) VALUES (0, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data`, string(data))
	if err != nil {
		return fmt.Errorf("save queue: %w", err)
	}

	return nil
}
