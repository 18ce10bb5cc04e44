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

package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agentstats/agent-stats-exporter/pkg/logging"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type contextKey string

const (
	// cloudTraceHeader is set by Google front ends on incoming requests.
	cloudTraceHeader = "X-Cloud-Trace-Context"

	// cloudTraceKey is the structured log field Cloud Logging joins traces on.
	cloudTraceKey = "logging.googleapis.com/trace"
)

// PopulateLogger puts a request-scoped logger in the context and logs one
// line per request with its status and latency. The logger carries the
// request ID, method and path. When projectID is set, it also carries the
// Cloud Trace ID from the incoming request.
func PopulateLogger(originalLogger *zap.SugaredLogger, projectID string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			logger := originalLogger.With("method", r.Method, "path", r.URL.Path)
			if id := RequestIDFromContext(ctx); id != "" {
				logger = logger.With("request_id", id)
			}
			if trace := cloudTrace(r, projectID); trace != "" {
				logger = logger.With(cloudTraceKey, trace)
			}

			ctx = logging.WithLogger(ctx, logger)
			r = r.Clone(ctx)

			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(sw, r)

			logger.Infow("request finished",
				"status", sw.code,
				"duration", time.Since(start))
		})
	}
}

func cloudTrace(r *http.Request, projectID string) string {
	if projectID == "" {
		return ""
	}
	v := r.Header.Get(cloudTraceHeader)
	traceID, _, _ := strings.Cut(v, "/")
	if traceID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/traces/%s", projectID, traceID)
}

// statusWriter records the status code written by the handler.
type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}
