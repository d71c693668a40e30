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

package httpremote

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/united-manufacturing-hub/replisync/pkg/record"
)

// sseHub fans out the four change topics to every connected client over
// Server-Sent Events — the transport-level realization of the "created,
// updated, patched, removed" change feed spec.md §6 requires the remote
// service to expose.
type sseHub struct {
	mu      sync.Mutex
	clients map[chan sseEvent]struct{}
}

type sseEvent struct {
	topic string
	data  []byte
}

func newSSEHub() *sseHub {
	return &sseHub{clients: make(map[chan sseEvent]struct{})}
}

func (h *sseHub) broadcast(topic string, r record.Record) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.clients {
		select {
		case ch <- sseEvent{topic: topic, data: data}:
		default:
			// slow client; drop rather than block the whole hub
		}
	}
}

func (h *sseHub) handle(c *gin.Context) {
	ch := make(chan sseEvent, 16)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev := <-ch:
			c.SSEvent(ev.topic, string(ev.data))

			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
