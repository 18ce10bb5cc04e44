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

// Package export contains OpenCensus metrics and views for export runs.
package export

import (
	"github.com/agentstats/agent-stats-exporter/internal/metrics"

	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

var (
	exportMetricsPrefix = metrics.MetricRoot + "export/"

	RunCount = stats.Int64(exportMetricsPrefix+"runs",
		"Instances of export runs", stats.UnitDimensionless)
	RowsExported = stats.Int64(exportMetricsPrefix+"rows",
		"Number of agent rows in the exported report", stats.UnitDimensionless)
	UploadAttempts = stats.Int64(exportMetricsPrefix+"upload_attempts",
		"Number of upload attempts made by a run", stats.UnitDimensionless)

	// StatusTagKey tags a run with its terminal status.
	StatusTagKey = tag.MustNewKey("status")

	// StageTagKey tags a run with the stage that failed, or "none".
	StageTagKey = tag.MustNewKey("stage")
)
