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

package engine_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/replisync/pkg/engine"
	"github.com/united-manufacturing-hub/replisync/pkg/query"
	"github.com/united-manufacturing-hub/replisync/pkg/record"
	"github.com/united-manufacturing-hub/replisync/pkg/remote"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var _ = Describe("Engine", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("MutateStore", func() {
		It("appends a remote create that passes the publication filter", func() {
			eng, err := engine.New(engine.Config{
				Publication: func(r record.Record) bool { return r["kind"] == "widget" },
				Clock:       fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.MutateStore(remote.Created, record.Record{"id": 1, "kind": "widget"}, engine.SourceRemote)
			Expect(err).NotTo(HaveOccurred())

			Expect(eng.Records()).To(HaveLen(1))
			Expect(eng.Last().Action).To(Equal(engine.ActionMutated))
		})

		It("drops a remote create that fails the publication filter", func() {
			eng, err := engine.New(engine.Config{
				Publication: func(r record.Record) bool { return r["kind"] == "widget" },
			})
			Expect(err).NotTo(HaveOccurred())

			rec, err := eng.MutateStore(remote.Created, record.Record{"id": 1, "kind": "gadget"}, engine.SourceRemote)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec).To(BeNil())
			Expect(eng.Records()).To(BeEmpty())
		})

		It("emits left-pub when a present record moves out of the publication", func() {
			eng, err := engine.New(engine.Config{
				Publication: func(r record.Record) bool { return r["kind"] == "widget" },
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.MutateStore(remote.Created, record.Record{"id": 1, "kind": "widget"}, engine.SourceRemote)
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.MutateStore(remote.Patched, record.Record{"id": 1, "kind": "gadget"}, engine.SourceRemote)
			Expect(err).NotTo(HaveOccurred())

			Expect(eng.Last().Action).To(Equal(engine.ActionLeftPub))
			Expect(eng.Records()).To(BeEmpty())
		})

		It("removes a present record on a remove event", func() {
			eng, err := engine.New(engine.Config{})
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.MutateStore("create", record.Record{"id": 1}, engine.SourceLocal)
			Expect(err).NotTo(HaveOccurred())

			removed, err := eng.MutateStore("remove", record.Record{"id": 1}, engine.SourceLocal)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).NotTo(BeNil())
			Expect(eng.Records()).To(BeEmpty())
			Expect(eng.Last().Action).To(Equal(engine.ActionRemove))
		})

		It("stamps updatedAt from the configured clock on apply", func() {
			fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
			eng, err := engine.New(engine.Config{Clock: fixedClock(fixed)})
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.MutateStore("create", record.Record{"uuid": "u1"}, engine.SourceLocal)
			Expect(err).NotTo(HaveOccurred())

			recs := eng.Records()
			Expect(recs).To(HaveLen(1))

			updatedAt, ok := recs[0].UpdatedAt()
			Expect(ok).To(BeTrue())
			Expect(updatedAt).To(BeTemporally("==", fixed))
		})

		It("locates an existing record by uuid when no server id is present yet", func() {
			eng, err := engine.New(engine.Config{})
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.MutateStore("create", record.Record{"uuid": "u1", "name": "first"}, engine.SourceLocal)
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.MutateStore("update", record.Record{"uuid": "u1", "name": "second"}, engine.SourceLocal)
			Expect(err).NotTo(HaveOccurred())

			recs := eng.Records()
			Expect(recs).To(HaveLen(1))
			Expect(recs[0]["name"]).To(Equal("second"))
		})
	})

	Describe("AddQueuedNetEvent coalescing", func() {
		It("overwrites a prior non-remove entry for the same uuid", func() {
			eng, err := engine.New(engine.Config{})
			Expect(err).NotTo(HaveOccurred())

			Expect(eng.AddQueuedNetEvent("update", record.Record{"uuid": "u1", "v": 1})).To(Succeed())
			Expect(eng.AddQueuedNetEvent("update", record.Record{"uuid": "u1", "v": 2})).To(Succeed())

			queued := eng.Queued()
			Expect(queued).To(HaveLen(1))
			Expect(queued[0].Record["v"]).To(Equal(2))
		})

		It("inserts a create right after a queued remove for the same uuid", func() {
			eng, err := engine.New(engine.Config{})
			Expect(err).NotTo(HaveOccurred())

			Expect(eng.AddQueuedNetEvent("remove", record.Record{"uuid": "u1"})).To(Succeed())
			Expect(eng.AddQueuedNetEvent("create", record.Record{"uuid": "u1", "v": "new"})).To(Succeed())

			queued := eng.Queued()
			Expect(queued).To(HaveLen(2))
			Expect(queued[0].EventName).To(Equal("remove"))
			Expect(queued[1].EventName).To(Equal("create"))
		})

		It("rejects any non-create follow-up to a queued remove", func() {
			eng, err := engine.New(engine.Config{})
			Expect(err).NotTo(HaveOccurred())

			Expect(eng.AddQueuedNetEvent("remove", record.Record{"uuid": "u1"})).To(Succeed())

			err = eng.AddQueuedNetEvent("update", record.Record{"uuid": "u1"})
			Expect(err).To(HaveOccurred())
		})

		It("requires a uuid on the record", func() {
			eng, err := engine.New(engine.Config{})
			Expect(err).NotTo(HaveOccurred())

			err = eng.AddQueuedNetEvent("update", record.Record{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("RemoveQueuedEvent", func() {
		It("removes the matching (uuid, eventName) entry and advances syncedAt", func() {
			eng, err := engine.New(engine.Config{})
			Expect(err).NotTo(HaveOccurred())

			eng.AddQueuedEvent("create", record.Record{"uuid": "u1"})

			updatedAt := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
			removed := eng.RemoveQueuedEvent("create", record.Record{"uuid": "u1"}, updatedAt)

			Expect(removed).To(BeTrue())
			Expect(eng.Queued()).To(BeEmpty())
			Expect(eng.SyncedAt()).To(BeTemporally("==", updatedAt))
		})

		It("returns false when nothing matches", func() {
			eng, err := engine.New(engine.Config{})
			Expect(err).NotTo(HaveOccurred())

			Expect(eng.RemoveQueuedEvent("create", record.Record{"uuid": "missing"}, time.Time{})).To(BeFalse())
		})
	})

	Describe("ProcessQueuedEvents", func() {
		It("replays queued mutations against the remote service in order", func() {
			svc := remote.NewMemoryService()
			eng, err := engine.New(engine.Config{Remote: svc})
			Expect(err).NotTo(HaveOccurred())

			eng.AddQueuedEvent("create", record.Record{"uuid": "u1", "name": "a"}, nil, query.Params{})

			Expect(eng.ProcessQueuedEvents(ctx)).To(Succeed())
			Expect(eng.Queued()).To(BeEmpty())

			found, err := svc.Find(ctx, query.Params{})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
		})

		It("stops with the failing entry still at the head", func() {
			svc := remote.NewMemoryService()
			eng, err := engine.New(engine.Config{Remote: svc})
			Expect(err).NotTo(HaveOccurred())

			eng.AddQueuedEvent("create", record.Record{"uuid": "u1", "_fail": true},
				nil, query.Params{Query: map[string]any{"_fail": true}})

			err = eng.ProcessQueuedEvents(ctx)
			Expect(err).To(HaveOccurred())
			Expect(eng.Queued()).To(HaveLen(1))
		})

		It("is a no-op with no configured remote", func() {
			eng, err := engine.New(engine.Config{})
			Expect(err).NotTo(HaveOccurred())

			eng.AddQueuedEvent("create", record.Record{"uuid": "u1"})

			Expect(eng.ProcessQueuedEvents(ctx)).To(Succeed())
			Expect(eng.Queued()).To(HaveLen(1))
		})
	})

	Describe("listening state machine", func() {
		It("starts idle and toggles with AddListeners/RemoveListeners", func() {
			svc := remote.NewMemoryService()
			eng, err := engine.New(engine.Config{Remote: svc})
			Expect(err).NotTo(HaveOccurred())

			Expect(eng.IsListening()).To(BeFalse())

			Expect(eng.AddListeners(ctx)).To(Succeed())
			Expect(eng.IsListening()).To(BeTrue())

			Expect(eng.RemoveListeners(ctx)).To(Succeed())
			Expect(eng.IsListening()).To(BeFalse())
		})

		It("applies remote change events to the store while listening", func() {
			svc := remote.NewMemoryService()
			eng, err := engine.New(engine.Config{Remote: svc})
			Expect(err).NotTo(HaveOccurred())

			Expect(eng.AddListeners(ctx)).To(Succeed())

			_, err = svc.Create(ctx, record.Record{"name": "from-remote"}, query.Params{})
			Expect(err).NotTo(HaveOccurred())

			Expect(eng.Records()).To(HaveLen(1))
		})

		It("stops applying remote events after RemoveListeners", func() {
			svc := remote.NewMemoryService()
			eng, err := engine.New(engine.Config{Remote: svc})
			Expect(err).NotTo(HaveOccurred())

			Expect(eng.AddListeners(ctx)).To(Succeed())
			Expect(eng.RemoveListeners(ctx)).To(Succeed())

			_, err = svc.Create(ctx, record.Record{"name": "from-remote"}, query.Params{})
			Expect(err).NotTo(HaveOccurred())

			Expect(eng.Records()).To(BeEmpty())
		})
	})

	Describe("construction contract", func() {
		It("reports UseUUID/UseUpdatedAt as configured", func() {
			eng, err := engine.New(engine.Config{UseUUID: true, UseUpdatedAt: true})
			Expect(err).NotTo(HaveOccurred())

			Expect(eng.UseUUID()).To(BeTrue())
			Expect(eng.UseUpdatedAt()).To(BeTrue())
		})
	})
})
