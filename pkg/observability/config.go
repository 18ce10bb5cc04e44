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

// Package observability sets up and configures observability tools.
package observability

import "time"

// ExporterType represents a type of observability exporter.
type ExporterType string

const (
	ExporterStackdriver ExporterType = "STACKDRIVER"
	ExporterPrometheus  ExporterType = "PROMETHEUS"
	ExporterOCAgent     ExporterType = "OCAGENT"
	ExporterNoop        ExporterType = "NOOP"
)

// Config holds all of the configuration options for the observability exporter
type Config struct {
	ExporterType ExporterType `env:"OBSERVABILITY_EXPORTER, default=NOOP"`

	OpenCensus  *OpenCensusConfig
	Stackdriver *StackdriverConfig
}

// OpenCensusConfig holds the configuration options for the open census exporter
type OpenCensusConfig struct {
	Insecure    bool   `env:"OCAGENT_INSECURE"`
	Endpoint    string `env:"OCAGENT_ENDPOINT"`
	ServiceName string `env:"OCAGENT_SERVICE_NAME, default=agent-stats-exporter"`
}

// StackdriverConfig holds the Cloud Monitoring and Cloud Trace settings.
type StackdriverConfig struct {
	ProjectID string `env:"PROJECT_ID, default=$GOOGLE_CLOUD_PROJECT"`

	// Service, Revision and Namespace are set by Cloud Run. When Service and
	// Revision are both present the cloud_run_revision resource is used.
	Service   string `env:"K_SERVICE"`
	Revision  string `env:"K_REVISION"`
	Namespace string `env:"K_CONFIGURATION, default=agent-stats-exporter"`

	// LocationOverride is used as the resource location off GCP.
	LocationOverride string `env:"STACKDRIVER_LOCATION"`

	SampleRate             float64       `env:"TRACE_PROBABILITY, default=0.40"`
	Timeout                time.Duration `env:"STACKDRIVER_TIMEOUT, default=30s"`
	ReportingInterval      time.Duration `env:"STACKDRIVER_REPORTING_INTERVAL, default=2m"`
	BundleDelayThreshold   time.Duration `env:"STACKDRIVER_BUNDLE_DELAY_THRESHOLD, default=2s"`
	BundleCountThreshold   uint          `env:"STACKDRIVER_BUNDLE_COUNT_THRESHOLD, default=50"`
	ExcludedMetricPrefixes []string      `env:"STACKDRIVER_EXCLUDED_METRIC_PREFIXES"`
}

// ObservabilityExporterConfig returns the observability config.
func (c *Config) ObservabilityExporterConfig() *Config {
	return c
}
