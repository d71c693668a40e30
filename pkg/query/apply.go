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

package query

import "github.com/united-manufacturing-hub/replisync/pkg/record"

// Params bundles a query predicate with the paginate configuration the
// Mutator's find() consults to decide between a bare array and an envelope.
type Params struct {
	Query    map[string]any
	Paginate PaginateOptions
}

// PaginateOptions mirrors spec.md §4.3's "paginate.default" knob.
type PaginateOptions struct {
	// Enabled turns pagination on at all; when false, find() always
	// returns a bare slice regardless of Default/Max.
	Enabled bool
	// Default is the page size used when the query carries no $limit.
	Default int
	// Max caps $limit regardless of what the caller requested.
	Max int
}

// Page is the paginated envelope spec.md §6 requires: "{ total, limit,
// skip, data }".
type Page struct {
	Total int             `json:"total"`
	Limit int             `json:"limit"`
	Skip  int              `json:"skip"`
	Data  []record.Record `json:"data"`
}

// Apply filters records through matcher/params.Query, applies $sort,
// $skip and $limit, and returns either a bare slice or a *Page depending on
// params.Paginate.Enabled — spec.md §4.3's find() contract. A $sort entry
// in params.Query ({field: +1|-1, ...}) is turned into a MultiSort over its
// fields; since the fields come from a map, their precedence is not defined
// when several are given.
func Apply(records []record.Record, matcher Matcher, params Params) any {
	filtered := make([]record.Record, 0, len(records))

	for _, r := range records {
		if matcher == nil || matcher.Match(r, params.Query) {
			filtered = append(filtered, r)
		}
	}

	if sortSpec, ok := params.Query["$sort"]; ok {
		if fields := sortFieldsFrom(sortSpec); len(fields) > 0 {
			SortRecords(filtered, MultiSort(fields))
		}
	}

	total := len(filtered)
	skip := intField(params.Query, "$skip", 0)
	limit := resolveLimit(params)

	filtered = page(filtered, skip, limit)

	if !params.Paginate.Enabled {
		return filtered
	}

	return &Page{Total: total, Limit: limit, Skip: skip, Data: filtered}
}

func resolveLimit(params Params) int {
	limit := intField(params.Query, "$limit", params.Paginate.Default)
	if params.Paginate.Max > 0 && (limit <= 0 || limit > params.Paginate.Max) {
		limit = params.Paginate.Max
	}

	return limit
}

func page(records []record.Record, skip, limit int) []record.Record {
	if skip < 0 {
		skip = 0
	}

	if skip >= len(records) {
		return []record.Record{}
	}

	records = records[skip:]

	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	return records
}

func intField(q map[string]any, key string, fallback int) int {
	v, ok := q[key]
	if !ok {
		return fallback
	}

	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return fallback
	}
}

func sortFieldsFrom(spec any) []SortField {
	m, ok := spec.(map[string]any)
	if !ok {
		return nil
	}

	fields := make([]SortField, 0, len(m))
	for field, dir := range m {
		d := 1
		switch v := dir.(type) {
		case int:
			d = v
		case float64:
			d = int(v)
		}

		fields = append(fields, SortField{Field: field, Direction: d})
	}

	return fields
}
