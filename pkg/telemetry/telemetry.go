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

// Package telemetry exposes the Prometheus gauges/histograms this client
// carries over from the teacher's instrumentation posture (every long-lived
// worker gets a /metrics surface), scoped down to what the store/replicator/
// mutator actually produce: record/queue sizes, sync staleness, and
// mutation/sync latencies.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RecordsLength is the current number of records held by the store.
	RecordsLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "replisync",
		Name:      "records_length",
		Help:      "Number of records currently held in the local store.",
	})

	// QueuedLength is the current number of queued mutations awaiting replay.
	QueuedLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "replisync",
		Name:      "queued_mutations_length",
		Help:      "Number of queued mutations awaiting replay against the remote service.",
	})

	// SyncedAtAgeSeconds is how long ago the store last completed a snapshot sync.
	SyncedAtAgeSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "replisync",
		Name:      "synced_at_age_seconds",
		Help:      "Seconds since the store last completed a full resync.",
	})

	// MutationsTotal counts mutator operations by method and outcome.
	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "replisync",
		Name:      "mutations_total",
		Help:      "Mutator operations, partitioned by method and outcome.",
	}, []string{"method", "outcome"})

	// MutationLatency is the end-to-end latency of a mutator call, from
	// optimistic apply through remote confirmation or timeout.
	MutationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "replisync",
		Name:      "mutation_latency_seconds",
		Help:      "Mutator call latency in seconds, from optimistic apply to remote confirmation or timeout.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	// ReconnectsTotal counts replicator reconnect attempts by outcome.
	ReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "replisync",
		Name:      "reconnects_total",
		Help:      "Replicator reconnect attempts, partitioned by outcome.",
	}, []string{"outcome"})

	// SyncDuration measures how long a full connect()/resync cycle takes.
	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "replisync",
		Name:      "sync_duration_seconds",
		Help:      "Duration of a full connect()/resync cycle in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
)

// ObserveSyncedAt updates SyncedAtAgeSeconds from a syncedAt timestamp; a
// zero value means "never synced" and reports a negative age so it's
// visually distinct from a fresh sync in dashboards.
func ObserveSyncedAt(syncedAt time.Time) {
	if syncedAt.IsZero() {
		SyncedAtAgeSeconds.Set(-1)

		return
	}

	SyncedAtAgeSeconds.Set(time.Since(syncedAt).Seconds())
}

// Serve starts an HTTP server exposing /metrics via promhttp. Mirrors the
// teacher's SetupMetricsEndpoint: caller owns the returned server's
// lifecycle (Shutdown on exit).
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// The caller's logger is out of scope here; a failed metrics
			// listener is non-fatal to the replication client itself.
			_ = err
		}
	}()

	return srv
}

// Shutdown is a thin wrapper kept symmetric with Serve for cmd/demo callers.
func Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
