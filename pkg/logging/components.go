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

package logging

// Component name constants for standardized logging, naming the
// Engine/Replicator/Mutator trio and the supporting adapters around them
// instead of the teacher's FSM/manager component names.
const (
	// ComponentEngine names the local-store owner: MutateStore, the
	// queue, and the idle/listening state machine.
	ComponentEngine = "engine"

	// ComponentReplicator names the connect/reconnect/snapshot flow
	// binding an Engine to one remote service.
	ComponentReplicator = "replicator"

	// ComponentMutator names the optimistic-write path (Create, Update,
	// Patch, Remove) and its time-limited remote confirmation.
	ComponentMutator = "mutator"

	// ComponentHTTPRemote names the HTTP+SSE remote.Service adapter.
	ComponentHTTPRemote = "httpremote"

	// ComponentPersistence names the queue-durability hook (Memory or
	// SQLite backed).
	ComponentPersistence = "persistence"

	// ComponentTelemetry names the Prometheus metrics server.
	ComponentTelemetry = "telemetry"

	// ComponentDemo names the cmd/demo composition root.
	ComponentDemo = "demo"
)
