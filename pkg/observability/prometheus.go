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

package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/agentstats/agent-stats-exporter/pkg/logging"

	"contrib.go.opencensus.io/exporter/prometheus"
	"go.opencensus.io/stats/view"
)

var (
	_ Exporter     = (*prometheusExporter)(nil)
	_ http.Handler = (*prometheusExporter)(nil)
)

// prometheusExporter exposes the collected views for scraping. The HTTP
// server mounts it at /metrics.
type prometheusExporter struct {
	exporter *prometheus.Exporter
}

// NewPrometheus creates an exporter that serves metrics in the Prometheus
// text format. Each exporter has its own registry.
func NewPrometheus(ctx context.Context) (Exporter, error) {
	logger := logging.FromContext(ctx).Named("prometheus")

	exporter, err := prometheus.NewExporter(prometheus.Options{
		OnError: func(err error) {
			logger.Errorw("failed to collect metrics", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	return &prometheusExporter{exporter: exporter}, nil
}

// StartExporter registers the views. Values are read on each scrape.
func (e *prometheusExporter) StartExporter() error {
	for _, v := range AllViews() {
		if err := view.Register(v); err != nil {
			return fmt.Errorf("failed to start prometheus exporter: view registration failed: %w", err)
		}
	}
	return nil
}

// ServeHTTP serves the current metric values.
func (e *prometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.exporter.ServeHTTP(w, r)
}

// Close is a no-op. Nothing is buffered between scrapes.
func (e *prometheusExporter) Close() error {
	return nil
}
