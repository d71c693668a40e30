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

package replicator_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/replisync/pkg/engine"
	"github.com/united-manufacturing-hub/replisync/pkg/query"
	"github.com/united-manufacturing-hub/replisync/pkg/record"
	"github.com/united-manufacturing-hub/replisync/pkg/remote"
	"github.com/united-manufacturing-hub/replisync/pkg/replicator"
)

// failingRemote wraps a *remote.MemoryService and fails Find until
// failuresLeft reaches zero, to drive ReconnectLoop's retry path without a
// real network dependency.
type failingRemote struct {
	*remote.MemoryService
	failuresLeft int32
}

func (f *failingRemote) Find(ctx context.Context, params query.Params) (any, error) {
	if atomic.AddInt32(&f.failuresLeft, -1) >= 0 {
		return nil, fmt.Errorf("simulated transient failure")
	}

	return f.MemoryService.Find(ctx, params)
}

var _ = Describe("Replicator", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Connect", func() {
		It("snapshots the remote's records, filters by publication, and attaches listeners", func() {
			svc := remote.NewMemoryService(
				record.Record{"id": 1, "kind": "widget"},
				record.Record{"id": 2, "kind": "gadget"},
			)

			eng, err := engine.New(engine.Config{Remote: svc, UseUUID: true, UseUpdatedAt: true})
			Expect(err).NotTo(HaveOccurred())

			repl := replicator.New(replicator.Config{
				Engine:      eng,
				Remote:      svc,
				Publication: func(r record.Record) bool { return r["kind"] == "widget" },
			})

			Expect(repl.Connect(ctx, nil)).To(Succeed())

			Expect(eng.Records()).To(HaveLen(1))
			Expect(eng.Records()[0]["kind"]).To(Equal("widget"))
			Expect(repl.Connected()).To(BeTrue())
		})

		It("replays the queue before reattaching listeners", func() {
			svc := remote.NewMemoryService()

			eng, err := engine.New(engine.Config{Remote: svc, UseUUID: true, UseUpdatedAt: true})
			Expect(err).NotTo(HaveOccurred())

			eng.AddQueuedEvent("create", record.Record{"uuid": "local-1", "name": "offline"}, nil, query.Params{})

			repl := replicator.New(replicator.Config{Engine: eng, Remote: svc})

			Expect(repl.Connect(ctx, nil)).To(Succeed())
			Expect(eng.Queued()).To(BeEmpty())

			found, err := svc.Find(ctx, query.Params{})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
		})

		It("drains a paginated result set across multiple Find calls", func() {
			seed := make([]record.Record, 0, 25)
			for i := 0; i < 25; i++ {
				seed = append(seed, record.Record{"id": i})
			}

			svc := remote.NewMemoryService(seed...)

			eng, err := engine.New(engine.Config{Remote: svc, UseUUID: true, UseUpdatedAt: true})
			Expect(err).NotTo(HaveOccurred())

			repl := replicator.New(replicator.Config{Engine: eng, Remote: svc, PageSize: 10})

			Expect(repl.Connect(ctx, nil)).To(Succeed())
			Expect(eng.Records()).To(HaveLen(25))
		})

		It("merges BaseQuery and updatedAt >= syncedAt when UseUpdatedAt is set", func() {
			svc := remote.NewMemoryService(record.Record{"id": 1, "tenant": "acme"})

			eng, err := engine.New(engine.Config{Remote: svc, UseUUID: true, UseUpdatedAt: true})
			Expect(err).NotTo(HaveOccurred())

			repl := replicator.New(replicator.Config{
				Engine:       eng,
				Remote:       svc,
				BaseQuery:    map[string]any{"tenant": "acme"},
				UseUpdatedAt: true,
			})

			Expect(repl.Connect(ctx, nil)).To(Succeed())
			Expect(eng.Records()).To(HaveLen(1))
		})
	})

	Describe("locking", func() {
		It("fails Connect fast when the context is already canceled", func() {
			svc := remote.NewMemoryService()

			eng, err := engine.New(engine.Config{Remote: svc, UseUUID: true, UseUpdatedAt: true})
			Expect(err).NotTo(HaveOccurred())

			repl := replicator.New(replicator.Config{Engine: eng, Remote: svc})

			canceledCtx, cancel := context.WithCancel(ctx)
			cancel()

			Expect(repl.Connect(canceledCtx, nil)).To(HaveOccurred())
		})
	})

	Describe("Disconnect", func() {
		It("detaches listeners while keeping local state", func() {
			svc := remote.NewMemoryService(record.Record{"id": 1})

			eng, err := engine.New(engine.Config{Remote: svc, UseUUID: true, UseUpdatedAt: true})
			Expect(err).NotTo(HaveOccurred())

			repl := replicator.New(replicator.Config{Engine: eng, Remote: svc})

			Expect(repl.Connect(ctx, nil)).To(Succeed())
			Expect(repl.Connected()).To(BeTrue())

			Expect(repl.Disconnect(ctx)).To(Succeed())
			Expect(repl.Connected()).To(BeFalse())
			Expect(eng.Records()).To(HaveLen(1))
		})
	})

	Describe("ReconnectLoop", func() {
		It("retries a transient Connect failure until it succeeds", func() {
			svc := &failingRemote{MemoryService: remote.NewMemoryService(record.Record{"id": 1}), failuresLeft: 2}

			eng, err := engine.New(engine.Config{Remote: svc, UseUUID: true, UseUpdatedAt: true})
			Expect(err).NotTo(HaveOccurred())

			repl := replicator.New(replicator.Config{Engine: eng, Remote: svc})

			err = repl.ReconnectLoop(ctx, nil, replicator.ReconnectConfig{
				InitialInterval: time.Millisecond,
				MaxInterval:     5 * time.Millisecond,
				MaxRetries:      5,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(eng.Records()).To(HaveLen(1))
		})

		It("gives up after MaxRetries and returns a remote error", func() {
			svc := &failingRemote{MemoryService: remote.NewMemoryService(), failuresLeft: 1000}

			eng, err := engine.New(engine.Config{Remote: svc, UseUUID: true, UseUpdatedAt: true})
			Expect(err).NotTo(HaveOccurred())

			repl := replicator.New(replicator.Config{Engine: eng, Remote: svc})

			err = repl.ReconnectLoop(ctx, nil, replicator.ReconnectConfig{
				InitialInterval: time.Millisecond,
				MaxInterval:     2 * time.Millisecond,
				MaxRetries:      2,
			})

			Expect(err).To(HaveOccurred())
		})

		It("stops immediately when the context is already canceled", func() {
			svc := remote.NewMemoryService()

			eng, err := engine.New(engine.Config{Remote: svc, UseUUID: true, UseUpdatedAt: true})
			Expect(err).NotTo(HaveOccurred())

			repl := replicator.New(replicator.Config{Engine: eng, Remote: svc})

			canceledCtx, cancel := context.WithCancel(ctx)
			cancel()

			err = repl.ReconnectLoop(canceledCtx, nil, replicator.ReconnectConfig{
				InitialInterval: time.Millisecond,
				MaxRetries:      3,
			})

			Expect(err).To(HaveOccurred())
		})
	})
})
