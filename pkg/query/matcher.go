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

// Matcher evaluates a predicate query object against a record. It is the
// "pluggable matcher" spec.md §6 names but deliberately does not specify —
// applications may supply their own; DefaultMatcher below covers the
// operators the seed scenarios in spec.md §8 exercise.
type Matcher interface {
	Match(r record.Record, query map[string]any) bool
}

// DefaultMatcher implements a small, feathers-style subset of query
// operators: direct equality and $lt/$lte/$gt/$gte/$ne/$in/$nin. Query keys
// starting with "$" outside of an operator position ($sort, $skip, $limit)
// are ignored here — those are handled by Apply, not Match.
type DefaultMatcher struct{}

func (DefaultMatcher) Match(r record.Record, q map[string]any) bool {
	for field, cond := range q {
		if field == "$sort" || field == "$skip" || field == "$limit" {
			continue
		}

		val, _ := r.Get(field)

		ops, ok := cond.(map[string]any)
		if !ok {
			if compare(val, true, cond, true) != 0 {
				return false
			}

			continue
		}

		for op, target := range ops {
			if !matchOp(op, val, target) {
				return false
			}
		}
	}

	return true
}

func matchOp(op string, val, target any) bool {
	switch op {
	case "$lt":
		return compare(val, true, target, true) < 0
	case "$lte":
		return compare(val, true, target, true) <= 0
	case "$gt":
		return compare(val, true, target, true) > 0
	case "$gte":
		return compare(val, true, target, true) >= 0
	case "$ne":
		return compare(val, true, target, true) != 0
	case "$in":
		items, ok := target.([]any)
		if !ok {
			return false
		}

		for _, item := range items {
			if compare(val, true, item, true) == 0 {
				return true
			}
		}

		return false
	case "$nin":
		items, ok := target.([]any)
		if !ok {
			return true
		}

		for _, item := range items {
			if compare(val, true, item, true) == 0 {
				return false
			}
		}

		return true
	default:
		return true
	}
}
