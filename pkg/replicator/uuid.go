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

import (
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
)

// shortUUIDLen is the compact form's maximum length, per spec.md §4.2's
// "short form (compact, up to 15 characters)".
const shortUUIDLen = 15

var shortEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GetUUID mints a new client identifier. short selects the compact form
// (derived from the same random bits as the long form, base32-encoded and
// truncated); otherwise the 36-character canonical v4 form is returned.
// Uniqueness is google/uuid's responsibility; collisions are an
// application bug, per spec.md §4.2.
func (r *Replicator) GetUUID(short bool) string {
	return GetUUID(short)
}

// GetUUID is the package-level form, usable before a Replicator exists
// (e.g. by Mutator.Create when minting a uuid for a new record).
func GetUUID(short bool) string {
	id := uuid.New()

	if !short {
		return id.String()
	}

	encoded := strings.ToLower(shortEncoding.EncodeToString(id[:]))
	if len(encoded) > shortUUIDLen {
		encoded = encoded[:shortUUIDLen]
	}

	return encoded
}
