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

package engine

import (
	"context"

	"github.com/looplab/fsm"
)

// The listening flag's state machine, per spec.md §4.1: "States: idle →
// listening → idle. Transitions are addListeners and removeListeners."
// Wrapped the way the teacher's BaseFSMInstance wraps looplab/fsm: a thin
// struct holding *fsm.FSM plus named "enter_state" callbacks, rather than
// hand-rolled state tracking.
const (
	stateIdle      = "idle"
	stateListening = "listening"

	eventListen   = "listen"
	eventUnlisten = "unlisten"
)

func newListeningFSM(onEnterListening, onEnterIdle func(ctx context.Context, e *fsm.Event)) *fsm.FSM {
	return fsm.NewFSM(
		stateIdle,
		fsm.Events{
			{Name: eventListen, Src: []string{stateIdle}, Dst: stateListening},
			{Name: eventUnlisten, Src: []string{stateListening}, Dst: stateIdle},
		},
		fsm.Callbacks{
			"enter_" + stateListening: onEnterListening,
			"enter_" + stateIdle:      onEnterIdle,
		},
	)
}

// IsListening reports whether the Engine currently has remote listeners
// attached.
func (e *Engine) IsListening() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.fsm.Current() == stateListening
}

// UseUUID reports whether this Engine is configured for uuid-keyed
// optimistic identity.
func (e *Engine) UseUUID() bool { return e.cfg.UseUUID }

// UseUpdatedAt reports whether this Engine is configured for incremental,
// updatedAt-driven resync.
func (e *Engine) UseUpdatedAt() bool { return e.cfg.UseUpdatedAt }
