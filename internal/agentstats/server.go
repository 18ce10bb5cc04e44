// Copyright 2024 the Agent Stats Exporter authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agentstats

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/agentstats/agent-stats-exporter/internal/middleware"
	"github.com/agentstats/agent-stats-exporter/internal/serverenv"
	"github.com/agentstats/agent-stats-exporter/pkg/logging"
	"github.com/agentstats/agent-stats-exporter/pkg/observability"
	"github.com/agentstats/agent-stats-exporter/pkg/render"
	"github.com/agentstats/agent-stats-exporter/pkg/server"

	"github.com/gorilla/mux"
)

// Server triggers exports over HTTP. At most one export runs at a time.
type Server struct {
	config   *Config
	env      *serverenv.ServerEnv
	exporter *Exporter
	h        *render.Renderer

	runLock sync.Mutex
}

// NewServer makes a Server.
func NewServer(config *Config, env *serverenv.ServerEnv) (*Server, error) {
	exporter, err := NewExporter(config, env)
	if err != nil {
		return nil, err
	}

	return &Server{
		config:   config,
		env:      env,
		exporter: exporter,
		h:        render.NewRenderer(),
	}, nil
}

// Routes defines and returns the routes for this server.
func (s *Server) Routes(ctx context.Context) *mux.Router {
	logger := logging.FromContext(ctx).Named("agentstats")

	r := mux.NewRouter()
	r.Use(middleware.PopulateRequestID())
	r.Use(middleware.PopulateLogger(logger, s.traceProjectID()))
	r.Use(middleware.Recovery())

	r.Handle("/health", server.HandleHealthz(s.env.QueryEngine())).Methods(http.MethodGet)
	r.Handle("/export", s.handleExport()).Methods(http.MethodGet, http.MethodPost)

	// Only the Prometheus exporter is scraped.
	if h, ok := s.env.ObservabilityExporter().(http.Handler); ok {
		r.Handle("/metrics", h).Methods(http.MethodGet)
	}

	return r
}

// traceProjectID is the project request logs are joined to traces in. It is
// only set when traces are exported to Cloud Trace.
func (s *Server) traceProjectID() string {
	o := s.config.Observability
	if o.ExporterType != observability.ExporterStackdriver || o.Stackdriver == nil {
		return ""
	}
	return o.Stackdriver.ProjectID
}

// handleExport runs one export synchronously. The optional "date" query
// parameter overrides the configured date.
func (s *Server) handleExport() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx).Named("handleExport")

		if !s.runLock.TryLock() {
			logger.Warnw("export already running")
			s.h.RenderJSON(w, http.StatusConflict, fmt.Errorf("an export is already running"))
			return
		}
		defer s.runLock.Unlock()

		opts := RunOptions{Date: r.URL.Query().Get("date")}
		if opts.Date != "" {
			if _, err := ParseDate(opts.Date); err != nil {
				s.h.RenderJSON(w, http.StatusBadRequest, &StageError{Stage: StageResolve, Err: err})
				return
			}
		}

		result := s.exporter.Run(ctx, opts)
		s.h.RenderJSON(w, statusCode(result), result)
	})
}

// statusCode maps a run result to an HTTP status.
func statusCode(r *Result) int {
	switch r.Status {
	case StatusSuccess:
		return http.StatusOK
	case StatusEmptySkipped:
		return http.StatusUnprocessableEntity
	}
	if r.ExitCode() == ExitConfig {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
