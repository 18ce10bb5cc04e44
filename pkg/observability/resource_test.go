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
	"testing"

	"github.com/agentstats/agent-stats-exporter/internal/project"

	"github.com/google/go-cmp/cmp"
)

type fakeDetected struct {
	resource string
	labels   map[string]string
}

func (f *fakeDetected) MonitoredResource() (string, map[string]string) {
	return f.resource, f.labels
}

func TestNewMonitoredResource(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		config     *StackdriverConfig
		detected   detectedResource
		want       string
		wantLabels map[string]string
	}{
		{
			name: "cloud_run",
			config: &StackdriverConfig{
				ProjectID: "agent-stats",
				Service:   "agent-stats-server",
				Revision:  "agent-stats-server-00042-abc",
				Namespace: "agent-stats-server",
			},
			detected: &fakeDetected{
				resource: "gce_instance",
				labels: map[string]string{
					"project_id":  "agent-stats-prod",
					"instance_id": "1234",
					"zone":        "us-central1-a",
				},
			},
			want: "cloud_run_revision",
			wantLabels: map[string]string{
				"project_id":         "agent-stats-prod",
				"service_name":       "agent-stats-server",
				"revision_name":      "agent-stats-server-00042-abc",
				"configuration_name": "agent-stats-server",
				"location":           "us-central1-a",
			},
		},
		{
			name: "gke_keeps_detected_labels",
			config: &StackdriverConfig{
				ProjectID: "agent-stats",
				Namespace: "agent-stats-exporter",
			},
			detected: &fakeDetected{
				resource: "gke_container",
				labels: map[string]string{
					"project_id":     "agent-stats",
					"cluster_name":   "jobs",
					"namespace_id":   "default",
					"instance_id":    "5678",
					"pod_id":         "export-abcde",
					"container_name": "export",
					"zone":           "europe-west1-b",
				},
			},
			want: "gke_container",
			wantLabels: map[string]string{
				"project_id":     "agent-stats",
				"cluster_name":   "jobs",
				"namespace_id":   "default",
				"instance_id":    "5678",
				"pod_id":         "export-abcde",
				"container_name": "export",
				"zone":           "europe-west1-b",
			},
		},
		{
			name: "generic_task_off_gcp",
			config: &StackdriverConfig{
				ProjectID:        "agent-stats",
				Namespace:        "agent-stats-exporter",
				LocationOverride: "on-prem-1",
			},
			want: "generic_task",
			wantLabels: map[string]string{
				"project_id": "agent-stats",
				"job":        "unknown",
				"location":   "on-prem-1",
				"namespace":  "agent-stats-exporter",
			},
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger := project.TestLogger(t)
			got := newMonitoredResource(logger, tc.config, tc.detected)

			resource, labels := got.MonitoredResource()
			if resource != tc.want {
				t.Errorf("expected %q to be %q", resource, tc.want)
			}

			// task_id is derived from the host and only checked for presence.
			if tc.want == resourceGenericTask {
				if labels["task_id"] == "" {
					t.Errorf("expected task_id to be set")
				}
				delete(labels, "task_id")
			}
			if diff := cmp.Diff(tc.wantLabels, labels); diff != "" {
				t.Errorf("labels mismatch (-want, +got):\n%s", diff)
			}
		})
	}
}
