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

// Package server contains shared HTTP handlers.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/agentstats/agent-stats-exporter/pkg/logging"

	"golang.org/x/time/rate"
)

// Pinger is anything that can verify its backing connection is alive.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleHealthz returns a health check handler. The backing dependency is
// pinged at most once per second; requests in between report healthy.
func HandleHealthz(p Pinger) http.Handler {
	limiter := rate.NewLimiter(rate.Every(1*time.Second), 1)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		logger := logging.FromContext(ctx).Named("server.HandleHealthz")

		if p != nil && limiter.Allow() {
			if err := p.Ping(ctx); err != nil {
				logger.Errorw("failed to ping query engine", "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError),
					http.StatusInternalServerError)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status": "ok"}`)
	})
}
