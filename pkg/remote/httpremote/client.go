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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/united-manufacturing-hub/replisync/pkg/backoff"
	"github.com/united-manufacturing-hub/replisync/pkg/query"
	"github.com/united-manufacturing-hub/replisync/pkg/record"
	"github.com/united-manufacturing-hub/replisync/pkg/remote"
)

// Client implements remote.Service against a Server, over plain
// net/http+encoding/json — the style of the teacher's HTTP transport
// client: one *http.Client, explicit status-code checks, fmt.Errorf
// wrapping, and a background goroutine reconnecting the event stream.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.Mutex
	listeners map[string][]func(record.Record)
	cancelSSE context.CancelFunc
}

var _ remote.Service = (*Client)(nil)

// NewClient returns a Client talking to a Server at baseURL (e.g.
// "http://localhost:8080").
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		listeners:  make(map[string][]func(record.Record)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelSSE = cancel

	go c.consumeEvents(ctx)

	return c
}

// Close stops the background event-stream consumer.
func (c *Client) Close() {
	c.cancelSSE()
}

func (c *Client) Find(ctx context.Context, params query.Params) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/records?"+encodeQuery(params.Query), nil)
	if err != nil {
		return nil, err
	}

	var page query.Page
	if err := c.do(req, &page); err != nil {
		return nil, err
	}

	return &page, nil
}

func (c *Client) Get(ctx context.Context, id any, params query.Params) (record.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/records/%v", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}

	var rec record.Record
	if err := c.do(req, &rec); err != nil {
		return nil, err
	}

	return rec, nil
}

func (c *Client) Create(ctx context.Context, data record.Record, params query.Params) (record.Record, error) {
	return c.write(ctx, http.MethodPost, c.baseURL+"/records", data)
}

func (c *Client) Update(ctx context.Context, id any, data record.Record, params query.Params) (record.Record, error) {
	return c.write(ctx, http.MethodPut, fmt.Sprintf("%s/records/%v", c.baseURL, id), data)
}

func (c *Client) Patch(ctx context.Context, id any, data record.Record, params query.Params) (record.Record, error) {
	return c.write(ctx, http.MethodPatch, fmt.Sprintf("%s/records/%v", c.baseURL, id), data)
}

func (c *Client) Remove(ctx context.Context, id any, params query.Params) (record.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/records/%v", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}

	var rec record.Record
	if err := c.do(req, &rec); err != nil {
		return nil, err
	}

	return rec, nil
}

func (c *Client) write(ctx context.Context, method, url string, data record.Record) (record.Record, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	var rec record.Record
	if err := c.do(req, &rec); err != nil {
		return nil, err
	}

	return rec, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		// Retrying an auth failure with the same credentials can't succeed,
		// so mark it permanent — ReconnectLoop gives up immediately instead
		// of exhausting its retry budget against a dead credential. The
		// marker text keeps IsPermanentFailureError working even after the
		// CategorizedError wrapper is stripped off by ExtractOriginalError.
		return backoff.NewPermanentError(fmt.Errorf("%s: remote returned status %d", backoff.PermanentFailureError, resp.StatusCode))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("remote returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) On(topic string, handler func(record.Record)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners[topic] = append(c.listeners[topic], handler)
	idx := len(c.listeners[topic]) - 1

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		handlers := c.listeners[topic]
		if idx < len(handlers) {
			handlers[idx] = nil
		}
	}
}

// consumeEvents reads the server's /events SSE stream and dispatches each
// event to the matching topic's listeners, reconnecting on EOF.
func (c *Client) consumeEvents(ctx context.Context) {
	for ctx.Err() == nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
		if err != nil {
			return
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			continue
		}

		c.readStream(resp.Body)
		resp.Body.Close()
	}
}

func (c *Client) readStream(body io.Reader) {
	scanner := bufio.NewScanner(body)

	var event, data string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "":
			if event != "" && data != "" {
				c.dispatch(event, data)
			}

			event, data = "", ""
		}
	}
}

func (c *Client) dispatch(topic, data string) {
	var rec record.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return
	}

	c.mu.Lock()
	handlers := append([]func(record.Record){}, c.listeners[topic]...)
	c.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			h(rec)
		}
	}
}

func encodeQuery(q map[string]any) string {
	values := url.Values{}

	for k, v := range q {
		switch val := v.(type) {
		case string:
			values.Set(k, val)
		case int:
			values.Set(k, strconv.Itoa(val))
		default:
			if b, err := json.Marshal(val); err == nil {
				values.Set(k, string(b))
			}
		}
	}

	return values.Encode()
}
