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
	"io"
	"sync"

	"github.com/agentstats/agent-stats-exporter/pkg/logging"

	"go.opencensus.io/plugin/ochttp"
	"go.opencensus.io/stats/view"
)

func defaultViews() []*view.View {
	var ret []*view.View
	ret = append(ret, ochttp.DefaultClientViews...)
	ret = append(ret, ochttp.DefaultServerViews...)
	return ret
}

var collectedViews = struct {
	views []*view.View
	sync.Mutex
}{}

// CollectViews collects all the OpenCensus views and register at a later time
// when we setup the metric exporter.
// This is mainly to be able to "register" the views in a module's init(), but
// still be able to handle the errors correctly.
// Typical usage:
//
//	var v = view.View{...}
//	func init() {
//	  observability.CollectViews(v)
//	}
//
// Actual view registration happens in exporter.StartExporter().
func CollectViews(views ...*view.View) {
	collectedViews.Lock()
	defer collectedViews.Unlock()
	collectedViews.views = append(collectedViews.views, views...)
}

// AllViews returns the collected OpenCensus views.
func AllViews() []*view.View {
	collectedViews.Lock()
	defer collectedViews.Unlock()

	ret := make([]*view.View, 0, len(collectedViews.views))
	ret = append(ret, collectedViews.views...)
	return append(ret, defaultViews()...)
}

// Exporter defines the minimum shared functionality for an observability exporter
// used by this application.
type Exporter interface {
	io.Closer
	StartExporter() error
}

// NewFromEnv returns the observability exporter given the provided
// configuration, or an error if it failed to be created. ctx supplies the
// logger.
func NewFromEnv(ctx context.Context, config *Config) (Exporter, error) {
	// The caller's ctx is canceled when the process is shutting down, which
	// would drop the last batch of metrics.
	exportCtx := logging.WithLogger(context.Background(), logging.FromContext(ctx))

	switch config.ExporterType {
	case ExporterNoop:
		return NewNoop(exportCtx)
	case ExporterStackdriver:
		cfg := config.Stackdriver
		if cfg == nil {
			cfg = &StackdriverConfig{}
		}
		return NewStackdriver(exportCtx, cfg)
	case ExporterPrometheus:
		return NewPrometheus(exportCtx)
	case ExporterOCAgent:
		cfg := config.OpenCensus
		if cfg == nil {
			cfg = &OpenCensusConfig{}
		}
		return NewOpenCensus(exportCtx, cfg)
	default:
		return nil, fmt.Errorf("unknown observability exporter type %v", config.ExporterType)
	}
}
