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
	"encoding/base64"

	"github.com/agentstats/agent-stats-exporter/pkg/logging"

	"contrib.go.opencensus.io/exporter/stackdriver/monitoredresource"
	"contrib.go.opencensus.io/exporter/stackdriver/monitoredresource/gcp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	resourceGenericTask      = "generic_task"
	resourceGKEContainer     = "gke_container"
	resourceCloudRunRevision = "cloud_run_revision"
)

var (
	_ monitoredresource.Interface = (*stackdriverMonitoredResource)(nil)

	// requiredLabels are the labels Cloud Monitoring accepts per resource type.
	// https://cloud.google.com/monitoring/api/resources
	requiredLabels = map[string]map[string]bool{
		resourceGenericTask:      {"project_id": true, "location": true, "namespace": true, "job": true, "task_id": true},
		resourceGKEContainer:     {"project_id": true, "cluster_name": true, "namespace_id": true, "instance_id": true, "pod_id": true, "container_name": true, "zone": true},
		resourceCloudRunRevision: {"project_id": true, "service_name": true, "revision_name": true, "location": true, "configuration_name": true},
	}
)

// detectedResource is what GCP autodetection returns.
type detectedResource interface {
	MonitoredResource() (string, map[string]string)
}

type stackdriverMonitoredResource struct {
	resource string
	labels   map[string]string
}

// NewStackdriverMonitoredResource returns the monitored resource the export
// metrics are written against, detected from the GCP environment when
// available.
func NewStackdriverMonitoredResource(ctx context.Context, c *StackdriverConfig) monitoredresource.Interface {
	logger := logging.FromContext(ctx).Named("stackdriver")

	var detected detectedResource
	if d := gcp.Autodetect(); d != nil {
		detected = d
	}
	return newMonitoredResource(logger, c, detected)
}

func newMonitoredResource(logger *zap.SugaredLogger, c *StackdriverConfig, detected detectedResource) *stackdriverMonitoredResource {
	resource := resourceGenericTask
	provided := map[string]string{}
	if detected != nil {
		resource, provided = detected.MonitoredResource()
	}

	labels := make(map[string]string, len(provided)+8)
	for k, v := range provided {
		labels[k] = v
	}

	if _, ok := labels["project_id"]; !ok {
		labels["project_id"] = c.ProjectID
	}

	labels["job"] = "unknown"
	if c.Service != "" {
		labels["job"] = c.Service
	}

	if iid, ok := provided["instance_id"]; ok {
		labels["task_id"] = iid
	} else {
		labels["task_id"] = base64.StdEncoding.EncodeToString(uuid.NodeID())
	}

	switch {
	case provided["zone"] != "":
		labels["location"] = provided["zone"]
	case provided["location"] != "":
		labels["location"] = provided["location"]
	case c.LocationOverride != "":
		labels["location"] = c.LocationOverride
	default:
		labels["location"] = "unknown"
	}

	labels["namespace"] = c.Namespace

	// https://cloud.google.com/run/docs/reference/container-contract#env-vars
	if c.Service != "" && c.Revision != "" {
		resource = resourceCloudRunRevision
		labels["service_name"] = c.Service
		labels["revision_name"] = c.Revision
		labels["configuration_name"] = c.Namespace
	}

	required, ok := requiredLabels[resource]
	if !ok {
		logger.Warnw("unknown resource type", "resource", resource, "labels", labels)
		return &stackdriverMonitoredResource{resource: resource, labels: labels}
	}

	for k := range labels {
		if !required[k] {
			delete(labels, k)
		}
	}
	return &stackdriverMonitoredResource{resource: resource, labels: labels}
}

func (s *stackdriverMonitoredResource) MonitoredResource() (string, map[string]string) {
	return s.resource, s.labels
}
