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

// Package httpremote is a reference implementation of the remote.Service
// contract over HTTP/JSON: a gin server backing remote.MemoryService, and
// a client consuming it. Grounded on the teacher's gin-based REST services
// (one handler function per route, parse params then delegate, c.JSON the
// result) and its transport client style (plain net/http, context
// deadlines, explicit status-code checks).
package httpremote

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/united-manufacturing-hub/replisync/pkg/query"
	"github.com/united-manufacturing-hub/replisync/pkg/record"
	"github.com/united-manufacturing-hub/replisync/pkg/remote"
)

// Server exposes remote.Service's CRUD surface over HTTP and pushes
// change events to connected clients over Server-Sent Events at /events.
type Server struct {
	engine *gin.Engine
	svc    *remote.MemoryService
	feed   *sseHub
}

// NewServer wires a gin.Engine around svc (typically a *remote.MemoryService
// standing in for the real backing collection).
func NewServer(svc *remote.MemoryService) *Server {
	s := &Server{engine: gin.New(), svc: svc, feed: newSSEHub()}

	s.engine.Use(gin.Recovery())

	for _, topic := range []string{remote.Created, remote.Updated, remote.Patched, remote.Removed} {
		t := topic
		svc.On(t, func(r record.Record) { s.feed.broadcast(t, r) })
	}

	s.routes()

	return s
}

// Handler returns the underlying http.Handler for use with an http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/records", s.handleFind)
	s.engine.GET("/records/:id", s.handleGet)
	s.engine.POST("/records", s.handleCreate)
	s.engine.PUT("/records/:id", s.handleUpdate)
	s.engine.PATCH("/records/:id", s.handlePatch)
	s.engine.DELETE("/records/:id", s.handleRemove)
	s.engine.GET("/events", s.feed.handle)
}

func (s *Server) handleFind(c *gin.Context) {
	params := query.Params{Query: decodeQuery(c), Paginate: query.PaginateOptions{Enabled: true, Default: 25, Max: 200}}

	res, err := s.svc.Find(c.Request.Context(), params)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, res)
}

func (s *Server) handleGet(c *gin.Context) {
	id := parseID(c.Param("id"))

	rec, err := s.svc.Get(c.Request.Context(), id, query.Params{})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleCreate(c *gin.Context) {
	var data record.Record
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	rec, err := s.svc.Create(c.Request.Context(), data, query.Params{})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusCreated, rec)
}

func (s *Server) handleUpdate(c *gin.Context) {
	id := parseID(c.Param("id"))

	var data record.Record
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	rec, err := s.svc.Update(c.Request.Context(), id, data, query.Params{})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) handlePatch(c *gin.Context) {
	id := parseID(c.Param("id"))

	var data record.Record
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	rec, err := s.svc.Patch(c.Request.Context(), id, data, query.Params{})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleRemove(c *gin.Context) {
	id := parseID(c.Param("id"))

	rec, err := s.svc.Remove(c.Request.Context(), id, query.Params{})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, rec)
}

// decodeQuery rebuilds a query predicate map from the request's query
// string, mirroring Client.encodeQuery's wire format: every value is first
// decoded as JSON (so "3" becomes a number and {"$gte": 3} an operator
// object); a value that is not valid JSON is kept as the raw string.
func decodeQuery(c *gin.Context) map[string]any {
	out := map[string]any{}

	for key, values := range c.Request.URL.Query() {
		if len(values) == 0 {
			continue
		}

		raw := values[0]

		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			out[key] = decoded

			continue
		}

		out[key] = raw
	}

	return out
}

// parseID accepts either a numeric or string server id — the reference
// backing store (remote.MemoryService) mints integer ids, but the wire
// contract stays untyped so a real backend could use strings.
func parseID(raw string) any {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}

	return raw
}
