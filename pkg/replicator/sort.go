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

package replicator

import "github.com/united-manufacturing-hub/replisync/pkg/query"

// Sort returns a comparator over a single field, ascending — spec.md
// §4.2's "sort(field)" factory. Thin re-export of pkg/query's
// implementation, kept here so callers configuring a Replicator don't need
// to import pkg/query directly for the common case.
func Sort(field string) query.Less { return query.Sort(field) }

// MultiSort returns a comparator over an ordered list of (field,
// direction) pairs — spec.md §4.2's "multiSort" factory.
func MultiSort(fields []query.SortField) query.Less { return query.MultiSort(fields) }
