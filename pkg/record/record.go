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

// Package record defines the opaque record shape the engine, replicator and
// mutator pass around: a plain field bag with at least a server identifier
// (id or _id), a client-minted uuid, and an updatedAt stamp, plus whatever
// domain fields the application carries through untouched.
package record

import "time"

// Record is an opaque object carrier. Domain fields ride along unexamined;
// the three well-known fields (id/_id, uuid, updatedAt) are accessed through
// the helpers below rather than by direct map indexing, since either id key
// may be present and updatedAt may arrive as a time.Time or an RFC3339
// string depending on whether it crossed the wire.
type Record map[string]any

// ServerID returns the record's server identifier, preferring "id" and
// falling back to "_id", and whether either was present.
func (r Record) ServerID() (any, bool) {
	if v, ok := r["id"]; ok && v != nil {
		return v, true
	}

	if v, ok := r["_id"]; ok && v != nil {
		return v, true
	}

	return nil, false
}

// SetServerID stamps "id", the canonical key new records are minted under.
func (r Record) SetServerID(id any) {
	r["id"] = id
}

// UUID returns the client-minted stable identifier, if present.
func (r Record) UUID() (string, bool) {
	v, ok := r["uuid"]
	if !ok || v == nil {
		return "", false
	}

	s, ok := v.(string)

	return s, ok
}

// SetUUID stamps the uuid field.
func (r Record) SetUUID(uuid string) {
	r["uuid"] = uuid
}

// UpdatedAt returns the record's updatedAt stamp, parsing an RFC3339 string
// if that's how it arrived (e.g. decoded from a remote JSON response).
func (r Record) UpdatedAt() (time.Time, bool) {
	v, ok := r["updatedAt"]
	if !ok || v == nil {
		return time.Time{}, false
	}

	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}

		return parsed, true
	default:
		return time.Time{}, false
	}
}

// SetUpdatedAt stamps updatedAt with a time.Time value.
func (r Record) SetUpdatedAt(t time.Time) {
	r["updatedAt"] = t
}

// Get returns a field by name, mirroring map access for query/sort code
// that needs to reach into domain fields it doesn't otherwise know about.
func (r Record) Get(field string) (any, bool) {
	v, ok := r[field]

	return v, ok
}

// Clone returns a shallow copy: a new top-level map, same field values.
// Sufficient for the engine's apply-then-mutate pattern, since records are
// never mutated in place by callers — every operation replaces the whole
// record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}

	cp := make(Record, len(r))
	for k, v := range r {
		cp[k] = v
	}

	return cp
}

// Merge returns a new Record with patch's fields overlaid onto r, used by
// Mutator.Patch's "merge data over the existing record" semantics.
func (r Record) Merge(patch Record) Record {
	out := r.Clone()
	for k, v := range patch {
		out[k] = v
	}

	return out
}
