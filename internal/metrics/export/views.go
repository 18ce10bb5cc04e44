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

package export

import (
	"github.com/agentstats/agent-stats-exporter/internal/metrics"
	"github.com/agentstats/agent-stats-exporter/pkg/observability"

	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

func init() {
	observability.CollectViews([]*view.View{
		{
			Name:        metrics.MetricRoot + "export_runs_count",
			Description: "Total count of export runs by status and stage",
			Measure:     RunCount,
			TagKeys:     []tag.Key{StatusTagKey, StageTagKey},
			Aggregation: view.Count(),
		},
		{
			Name:        metrics.MetricRoot + "export_rows_latest",
			Description: "Latest number of agent rows exported",
			Measure:     RowsExported,
			Aggregation: view.LastValue(),
		},
		{
			Name:        metrics.MetricRoot + "export_upload_attempts",
			Description: "Distribution of upload attempts per run",
			Measure:     UploadAttempts,
			Aggregation: view.Distribution(1, 2, 3, 5, 10),
		},
	}...)
}
