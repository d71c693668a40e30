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

package rerrors

import (
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/replisync/pkg/backoff"
)

// IssueType mirrors the severities the teacher's pkg/sentry reports under.
type IssueType string

const (
	IssueWarning IssueType = "warning"
	IssueError   IssueType = "error"
	IssueFatal   IssueType = "fatal"
)

// InitSentry wires up the sentry-go client. Call once at startup; if dsn is
// empty reporting becomes a no-op so tests and local runs never need a DSN.
func InitSentry(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
}

var (
	lastSentMu sync.Mutex
	lastSent   = map[IssueType]time.Time{}
	// debounce avoids flooding Sentry when a reconnect loop or a coalescing
	// violation repeats every tick; mirrors the teacher's two-hour window.
	debounce = 2 * time.Hour
)

// ReportIssue sends err to Sentry (debounced per IssueType) and always logs
// it locally, so a missing/unconfigured DSN never hides the failure.
func ReportIssue(err error, kind IssueType, log *zap.SugaredLogger, context map[string]any) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	lastSentMu.Lock()
	skip := time.Since(lastSent[kind]) < debounce
	if !skip {
		lastSent[kind] = time.Now()
	}
	lastSentMu.Unlock()

	switch kind {
	case IssueFatal:
		log.Errorf("permanent failure, reporting and terminating: %v", err)
	case IssueError:
		log.Errorf("reporting error: %v", err)
	default:
		log.Warnf("reporting warning: %v", err)
	}

	if skip {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range context {
			scope.SetExtra(k, v)
		}

		event := sentry.NewEvent()
		event.Message = err.Error()
		event.Exception = []sentry.Exception{{
			Type:       "replisync error",
			Value:      err.Error(),
			Stacktrace: sentry.ExtractStacktrace(err),
		}}

		switch kind {
		case IssueFatal:
			event.Level = sentry.LevelFatal
		case IssueError:
			event.Level = sentry.LevelError
		default:
			event.Level = sentry.LevelWarning
		}

		// Goroutine snapshots are only worth the payload for the severities
		// someone will actually page on; a debounced warning doesn't need
		// the whole pipeline's stack attached.
		if kind == IssueFatal || kind == IssueError {
			threads, stacktrace := captureGoroutinesAsThreads()
			event.Threads = threads
			event.Attachments = append(event.Attachments, &sentry.Attachment{
				Filename:    "stacktrace.txt",
				ContentType: "text/plain",
				Payload:     stacktrace,
			})
		}

		sentry.CaptureEvent(event)
	})
}

// ReportPermanentFailure reports an exhausted reconnect backoff or a
// coalescing invariant violation — the two permanent-failure cases
// SPEC_FULL.md's error-handling and dependency notes name for Sentry
// reporting. The root cause is
// unwrapped before reporting so Sentry groups on "remote returned status
// 401", not on whatever wrapping reconnect.go/engine.go added on the way
// out.
func ReportPermanentFailure(log *zap.SugaredLogger, component, operation string, err error) {
	root := backoff.ExtractOriginalError(err)

	context := map[string]any{
		"component": component,
		"operation": operation,
	}

	if backoff.IsPermanentFailureError(root) {
		context["permanent"] = true
	}

	ReportIssue(root, IssueError, log, context)
}
