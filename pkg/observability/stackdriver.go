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
	"runtime"
	"strings"
	"time"

	"github.com/agentstats/agent-stats-exporter/pkg/logging"

	monitoring "cloud.google.com/go/monitoring/apiv3/v2"
	"contrib.go.opencensus.io/exporter/stackdriver"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	monitoringpb "google.golang.org/genproto/googleapis/monitoring/v3"
)

var _ Exporter = (*stackdriverExporter)(nil)

// descriptorTimeout bounds each CreateMetricDescriptor call.
const descriptorTimeout = 5 * time.Second

type stackdriverExporter struct {
	exporter *stackdriver.Exporter
	config   *StackdriverConfig
	options  *stackdriver.Options
	logger   *zap.SugaredLogger
}

// NewStackdriver creates a metrics and trace exporter for Cloud Monitoring.
// ctx must outlive the exporter, so it should not be canceled on shutdown
// before Close has flushed the last reporting interval.
func NewStackdriver(ctx context.Context, config *StackdriverConfig) (Exporter, error) {
	logger := logging.FromContext(ctx).Named("stackdriver")

	if config.ProjectID == "" {
		return nil, fmt.Errorf("missing PROJECT_ID in Stackdriver exporter")
	}

	resource := NewStackdriverMonitoredResource(ctx, config)
	resType, labels := resource.MonitoredResource()
	logger.Debugw("monitored resource", "type", resType, "labels", labels)

	numWorkers := 3
	if v := runtime.NumCPU() - 1; v > numWorkers {
		numWorkers = v
	}

	options := stackdriver.Options{
		Context:                 ctx,
		ProjectID:               config.ProjectID,
		ReportingInterval:       config.ReportingInterval,
		BundleDelayThreshold:    config.BundleDelayThreshold,
		BundleCountThreshold:    int(config.BundleCountThreshold),
		Timeout:                 config.Timeout,
		NumberOfWorkers:         numWorkers,
		MonitoredResource:       resource,
		DefaultMonitoringLabels: &stackdriver.Labels{},
		OnError: func(err error) {
			logger.Errorw("failed to export metric", "error", err, "resource", resType)
		},
	}
	exporter, err := stackdriver.NewExporter(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create Stackdriver exporter: %w", err)
	}
	return &stackdriverExporter{
		exporter: exporter,
		config:   config,
		options:  &options,
		logger:   logger,
	}, nil
}

// exportedViews returns the collected views minus any excluded by prefix.
func (e *stackdriverExporter) exportedViews() []*view.View {
	all := AllViews()
	ret := make([]*view.View, 0, len(all))

outer:
	for _, v := range all {
		for _, prefix := range e.config.ExcludedMetricPrefixes {
			if strings.HasPrefix(v.Name, prefix) {
				e.logger.Debugw("skipping excluded view", "view", v.Name, "prefix", prefix)
				continue outer
			}
		}
		ret = append(ret, v)
	}
	return ret
}

// StartExporter registers the views, creates their metric descriptors in the
// background and starts exporting metrics and traces.
func (e *stackdriverExporter) StartExporter() error {
	ctx := e.options.Context

	mclient, err := monitoring.NewMetricClient(ctx,
		append(e.options.MonitoringClientOptions, option.WithUserAgent(e.options.UserAgent))...)
	if err != nil {
		return fmt.Errorf("unable to create metric client: %w", err)
	}

	views := e.exportedViews()
	requests := make([]*monitoringpb.CreateMetricDescriptorRequest, 0, len(views))
	for _, v := range views {
		if err := view.Register(v); err != nil {
			return fmt.Errorf("failed to start stackdriver exporter: view registration failed: %w", err)
		}
		md, err := e.exporter.ViewToMetricDescriptor(ctx, v)
		if err != nil {
			return fmt.Errorf("failed to convert view %s to metric descriptor: %w", v.Name, err)
		}
		requests = append(requests, &monitoringpb.CreateMetricDescriptorRequest{
			Name:             "projects/" + e.config.ProjectID,
			MetricDescriptor: md,
		})
	}

	// Descriptor creation must not hold up an export.
	go func() {
		defer mclient.Close()

		for _, req := range requests {
			func() {
				ctx, done := context.WithTimeout(context.Background(), descriptorTimeout)
				defer done()

				if _, err := mclient.CreateMetricDescriptor(ctx, req); err != nil {
					e.logger.Errorw("failed to create metric descriptor",
						"metric", req.MetricDescriptor.GetType(), "error", err)
				}
			}()
		}
		e.logger.Debugw("finished metric descriptor registration", "count", len(requests))
	}()

	if err := e.exporter.StartMetricsExporter(); err != nil {
		return fmt.Errorf("failed to start stackdriver exporter: %w", err)
	}

	trace.ApplyConfig(trace.Config{
		DefaultSampler: trace.ProbabilitySampler(e.config.SampleRate),
	})
	trace.RegisterExporter(e.exporter)
	return nil
}

// Close flushes pending metrics and traces and halts the exporter.
func (e *stackdriverExporter) Close() error {
	e.exporter.Flush()
	e.exporter.StopMetricsExporter()
	trace.UnregisterExporter(e.exporter)
	return nil
}
