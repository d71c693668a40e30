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

// Package query holds the sort/matcher/pagination plumbing spec.md §6
// names as "pluggable functions" — the predicate matcher and sort
// comparator are external collaborators, not specified by spec.md itself,
// so this package defines the interfaces plus a default feathers-style
// implementation good enough to exercise find()/patch(id=nil) fan-out and
// the seed test scenarios.
package query

import (
	"sort"
	"time"

	"github.com/united-manufacturing-hub/replisync/pkg/record"
)

// Less reports whether a sorts before b. Returned by Sort/MultiSort below.
type Less func(a, b record.Record) bool

// SortField is one (field, direction) pair; direction is +1 ascending or -1
// descending.
type SortField struct {
	Field     string
	Direction int
}

// Sort returns a comparator ascending over a single field, per spec.md
// §4.2's "sort(field)" factory.
func Sort(field string) Less {
	return MultiSort([]SortField{{Field: field, Direction: 1}})
}

// MultiSort returns a comparator over an ordered list of (field, direction)
// pairs, stable on ties — spec.md §4.2's "multiSort({field: +1|-1, …})".
// The list (not a map) carries the tie-break order the spec requires.
func MultiSort(fields []SortField) Less {
	return func(a, b record.Record) bool {
		for _, f := range fields {
			av, aok := a.Get(f.Field)
			bv, bok := b.Get(f.Field)

			c := compare(av, aok, bv, bok)
			if c == 0 {
				continue
			}

			if f.Direction < 0 {
				return c > 0
			}

			return c < 0
		}

		return false
	}
}

// compare orders two arbitrary field values; missing values sort first.
func compare(a any, aok bool, b any, bok bool) int {
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}

	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return compareFloat(av, bv)
		}
	case int:
		if bv, ok := b.(int); ok {
			return compareFloat(float64(av), float64(bv))
		}
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			default:
				return 0
			}
		}
	}

	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// SortRecords sorts records in place using a stable sort, preserving
// relative order on ties as MultiSort's doc promises.
func SortRecords(records []record.Record, less Less) {
	if less == nil {
		return
	}

	sort.SliceStable(records, func(i, j int) bool {
		return less(records[i], records[j])
	})
}
