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

package mutator_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/replisync/pkg/engine"
	"github.com/united-manufacturing-hub/replisync/pkg/mutator"
	"github.com/united-manufacturing-hub/replisync/pkg/query"
	"github.com/united-manufacturing-hub/replisync/pkg/record"
	"github.com/united-manufacturing-hub/replisync/pkg/remote"
	"github.com/united-manufacturing-hub/replisync/pkg/replicator"
	"github.com/united-manufacturing-hub/replisync/pkg/rerrors"
)

// slowRemote wraps a *remote.MemoryService and delays Create by a
// caller-set duration, to drive the §4.4 timeout branch deterministically.
type slowRemote struct {
	*remote.MemoryService
	delay time.Duration
}

func (s *slowRemote) Create(ctx context.Context, data record.Record, params query.Params) (record.Record, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return s.MemoryService.Create(ctx, data, params)
}

// offlineRemote wraps a *remote.MemoryService and fails every Update
// call, standing in for a remote that's unreachable while the Mutator
// keeps applying changes locally and queuing them for later replay.
type offlineRemote struct {
	*remote.MemoryService
}

func (o *offlineRemote) Update(ctx context.Context, id any, data record.Record, params query.Params) (record.Record, error) {
	return nil, context.DeadlineExceeded
}

func newConnected(svc remote.Service, timeout time.Duration) (*engine.Engine, *replicator.Replicator, *mutator.Mutator) {
	eng, err := engine.New(engine.Config{Remote: svc, UseUUID: true, UseUpdatedAt: true})
	Expect(err).NotTo(HaveOccurred())

	repl := replicator.New(replicator.Config{Engine: eng, Remote: svc})
	Expect(repl.Connect(context.Background(), nil)).To(Succeed())

	mut, err := mutator.New(mutator.Config{Replicator: repl, Timeout: timeout})
	Expect(err).NotTo(HaveOccurred())

	return eng, repl, mut
}

var _ = Describe("Mutator", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("New", func() {
		It("rejects an engine not configured for uuid+updatedAt", func() {
			eng, err := engine.New(engine.Config{})
			Expect(err).NotTo(HaveOccurred())

			repl := replicator.New(replicator.Config{Engine: eng, Remote: remote.NewMemoryService()})

			_, err = mutator.New(mutator.Config{Replicator: repl})
			Expect(err).To(HaveOccurred())
		})

		It("rejects a nil replicator", func() {
			_, err := mutator.New(mutator.Config{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Create", func() {
		It("mints a uuid, applies optimistically, and is visible immediately", func() {
			svc := remote.NewMemoryService()
			_, _, mut := newConnected(svc, 500*time.Millisecond)

			created, err := mut.Create(ctx, record.Record{"name": "widget"}, query.Params{})
			Expect(err).NotTo(HaveOccurred())

			_, ok := created.UUID()
			Expect(ok).To(BeTrue())
			Expect(created["name"]).To(Equal("widget"))
		})

		It("confirms against the remote and drains the queue asynchronously", func() {
			svc := remote.NewMemoryService()
			eng, _, mut := newConnected(svc, 500*time.Millisecond)

			_, err := mut.Create(ctx, record.Record{"name": "widget"}, query.Params{})
			Expect(err).NotTo(HaveOccurred())

			Eventually(eng.Queued).Should(BeEmpty())

			found, err := svc.Find(ctx, query.Params{})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
		})

		It("rejects a duplicate uuid", func() {
			svc := remote.NewMemoryService()
			_, _, mut := newConnected(svc, 500*time.Millisecond)

			_, err := mut.Create(ctx, record.Record{"uuid": "fixed-1", "name": "a"}, query.Params{})
			Expect(err).NotTo(HaveOccurred())

			_, err = mut.Create(ctx, record.Record{"uuid": "fixed-1", "name": "b"}, query.Params{})
			Expect(err).To(HaveOccurred())

			taxonomy, ok := rerrors.AsTaxonomy(err)
			Expect(ok).To(BeTrue())
			Expect(taxonomy.Kind).To(Equal(rerrors.KindBadRequest))
		})

		It("rejects a create while disconnected", func() {
			svc := remote.NewMemoryService()
			eng, err := engine.New(engine.Config{Remote: svc, UseUUID: true, UseUpdatedAt: true})
			Expect(err).NotTo(HaveOccurred())

			repl := replicator.New(replicator.Config{Engine: eng, Remote: svc})
			mut, err := mutator.New(mutator.Config{Replicator: repl})
			Expect(err).NotTo(HaveOccurred())

			_, err = mut.Create(ctx, record.Record{"name": "widget"}, query.Params{})
			Expect(err).To(HaveOccurred())
		})

		It("leaves the mutation queued when the remote call exceeds the time limit", func() {
			svc := &slowRemote{MemoryService: remote.NewMemoryService(), delay: 200 * time.Millisecond}
			eng, _, mut := newConnected(svc, 20*time.Millisecond)

			_, err := mut.Create(ctx, record.Record{"name": "slow"}, query.Params{})
			Expect(err).NotTo(HaveOccurred())

			Consistently(eng.Queued, 100*time.Millisecond, 10*time.Millisecond).ShouldNot(BeEmpty())
		})
	})

	Describe("Update", func() {
		It("returns NotFound for an id not present locally", func() {
			svc := remote.NewMemoryService()
			_, _, mut := newConnected(svc, 500*time.Millisecond)

			_, err := mut.Update(ctx, 999, record.Record{"name": "x"}, query.Params{})
			Expect(err).To(HaveOccurred())
			Expect(rerrors.IsNotFound(err)).To(BeTrue())
		})

		It("applies the update optimistically and confirms against the remote", func() {
			svc := remote.NewMemoryService(record.Record{"id": 1, "uuid": "u1", "name": "old"})
			eng, _, mut := newConnected(svc, 500*time.Millisecond)

			updated, err := mut.Update(ctx, 1, record.Record{"name": "new"}, query.Params{})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated["name"]).To(Equal("new"))

			Eventually(eng.Queued).Should(BeEmpty())
		})

		It("coalesces three sequential offline updates for the same uuid into one queue entry", func() {
			svc := &offlineRemote{MemoryService: remote.NewMemoryService(record.Record{"id": 1000, "uuid": "u1000", "name": "v0"})}
			eng, _, mut := newConnected(svc, 20*time.Millisecond)

			_, err := mut.Update(ctx, 1000, record.Record{"name": "v1"}, query.Params{})
			Expect(err).NotTo(HaveOccurred())

			_, err = mut.Update(ctx, 1000, record.Record{"name": "v2"}, query.Params{})
			Expect(err).NotTo(HaveOccurred())

			_, err = mut.Update(ctx, 1000, record.Record{"name": "v3"}, query.Params{})
			Expect(err).NotTo(HaveOccurred())

			Consistently(eng.Queued, 50*time.Millisecond, 10*time.Millisecond).Should(HaveLen(1))

			updated, ok := eng.ByServerID(1000)
			Expect(ok).To(BeTrue())
			Expect(updated["name"]).To(Equal("v3"))
		})
	})

	Describe("Patch", func() {
		It("merges fields over the existing record", func() {
			svc := remote.NewMemoryService(record.Record{"id": 1, "uuid": "u1", "a": 1, "b": 2})
			_, _, mut := newConnected(svc, 500*time.Millisecond)

			res, err := mut.Patch(ctx, 1, record.Record{"b": 99}, query.Params{})
			Expect(err).NotTo(HaveOccurred())

			patched, ok := res.(record.Record)
			Expect(ok).To(BeTrue())
			Expect(patched["a"]).To(Equal(1))
			Expect(patched["b"]).To(Equal(99))
		})

		It("fans out over Find results when id is nil", func() {
			svc := remote.NewMemoryService(
				record.Record{"id": 1, "uuid": "u1", "kind": "a", "flag": false},
				record.Record{"id": 2, "uuid": "u2", "kind": "b", "flag": false},
			)
			_, _, mut := newConnected(svc, 500*time.Millisecond)

			res, err := mut.Patch(ctx, nil, record.Record{"flag": true}, query.Params{Query: map[string]any{"kind": "a"}})
			Expect(err).NotTo(HaveOccurred())

			patched, ok := res.([]record.Record)
			Expect(ok).To(BeTrue())
			Expect(patched).To(HaveLen(1))
			Expect(patched[0]["flag"]).To(Equal(true))
		})
	})

	Describe("Remove", func() {
		It("returns NotFound for a nonexistent id", func() {
			svc := remote.NewMemoryService()
			_, _, mut := newConnected(svc, 500*time.Millisecond)

			_, err := mut.Remove(ctx, 42, query.Params{})
			Expect(err).To(HaveOccurred())
			Expect(rerrors.IsNotFound(err)).To(BeTrue())
		})

		It("removes locally and confirms against the remote", func() {
			svc := remote.NewMemoryService(record.Record{"id": 1, "uuid": "u1"})
			eng, _, mut := newConnected(svc, 500*time.Millisecond)

			_, err := mut.Remove(ctx, 1, query.Params{})
			Expect(err).NotTo(HaveOccurred())
			Expect(eng.Records()).To(BeEmpty())

			Eventually(eng.Queued).Should(BeEmpty())
		})
	})

	Describe("Find/Get", func() {
		It("filters local records into a bare slice when pagination is off", func() {
			svc := remote.NewMemoryService(
				record.Record{"id": 1, "uuid": "u1", "kind": "a"},
				record.Record{"id": 2, "uuid": "u2", "kind": "b"},
			)
			_, _, mut := newConnected(svc, 500*time.Millisecond)

			res := mut.Find(query.Params{Query: map[string]any{"kind": "a"}})

			records, ok := res.([]record.Record)
			Expect(ok).To(BeTrue())
			Expect(records).To(HaveLen(1))
		})

		It("returns NotFound for a uuid not present", func() {
			svc := remote.NewMemoryService()
			_, _, mut := newConnected(svc, 500*time.Millisecond)

			_, err := mut.Get("missing", query.Params{})
			Expect(err).To(HaveOccurred())
			Expect(rerrors.IsNotFound(err)).To(BeTrue())
		})
	})
})
