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

package agentstats

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/agentstats/agent-stats-exporter/internal/queryengine"
	"github.com/agentstats/agent-stats-exporter/internal/setup"
	"github.com/agentstats/agent-stats-exporter/internal/storage"
	"github.com/agentstats/agent-stats-exporter/pkg/observability"

	"github.com/hashicorp/go-multierror"
)

// ErrInvalidConfig is returned when required settings are missing or
// malformed.
var ErrInvalidConfig = errors.New("invalid configuration")

// Compile-time check to assert this config matches requirements.
var (
	_ setup.QueryEngineConfigProvider           = (*Config)(nil)
	_ setup.BlobstoreConfigProvider             = (*Config)(nil)
	_ setup.LocalStoreConfigProvider            = (*Config)(nil)
	_ setup.ObservabilityExporterConfigProvider = (*Config)(nil)
	_ setup.Validator                           = (*Config)(nil)
)

// identifierRe matches a bare or schema-qualified SQL identifier.
var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Source names the table and columns the report is computed from.
type Source struct {
	Table           string `env:"SOURCE_TABLE, default=conversations"`
	AgentColumn     string `env:"SOURCE_AGENT_COLUMN, default=agent_id"`
	TimestampColumn string `env:"SOURCE_TIMESTAMP_COLUMN, default=call_start"`
	DurationColumn  string `env:"SOURCE_DURATION_COLUMN, default=call_duration_sec"`
}

// Validate checks that every identifier is safe to interpolate into SQL.
func (s *Source) Validate() error {
	var result *multierror.Error
	for _, f := range []struct {
		name, value string
	}{
		{"SOURCE_TABLE", s.Table},
		{"SOURCE_AGENT_COLUMN", s.AgentColumn},
		{"SOURCE_TIMESTAMP_COLUMN", s.TimestampColumn},
		{"SOURCE_DURATION_COLUMN", s.DurationColumn},
	} {
		if !identifierRe.MatchString(f.value) {
			result = multierror.Append(result, fmt.Errorf("%s %q is not a valid identifier", f.name, f.value))
		}
	}
	return result.ErrorOrNil()
}

// Config is the configuration for the daily agent stats export.
type Config struct {
	QueryEngine   queryengine.Config
	Storage       storage.Config
	Observability observability.Config
	Source        Source

	// Bucket is the upload destination (bucket or container name).
	Bucket    string `env:"EXPORT_BUCKET, default=$S3_BUCKET"`
	KeyPrefix string `env:"EXPORT_KEY_PREFIX, default=$S3_KEY_PREFIX"`

	// Date optionally pins the export to a calendar date (YYYY-MM-DD).
	Date     string `env:"EXPORT_DATE"`
	Timezone string `env:"EXPORT_TIMEZONE, default=$CLICKHOUSE_TZ"`

	LocalDir string `env:"EXPORT_LOCAL_DIR, default=exports"`

	// NoUpload keeps the report local. It is set by the --no-upload flag.
	NoUpload bool `env:"EXPORT_NO_UPLOAD"`

	UploadAttempts int           `env:"UPLOAD_ATTEMPTS, default=3"`
	UploadBackoff  time.Duration `env:"UPLOAD_BACKOFF, default=2s"`

	Port string `env:"PORT, default=8080"`
}

// QueryEngineConfig returns the query engine config.
func (c *Config) QueryEngineConfig() *queryengine.Config {
	return &c.QueryEngine
}

// BlobstoreConfig returns the blobstore config, or nil when uploads are
// disabled.
func (c *Config) BlobstoreConfig() *storage.Config {
	if c.NoUpload {
		return nil
	}
	return &c.Storage
}

// LocalStore indicates a filesystem store is needed for staging copies.
func (c *Config) LocalStore() bool {
	return true
}

// ObservabilityExporterConfig returns the observability exporter config.
func (c *Config) ObservabilityExporterConfig() *observability.Config {
	return &c.Observability
}

// Validate reports every missing or malformed setting at once. The returned
// error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.QueryEngine.URL == "" {
		result = multierror.Append(result, fmt.Errorf("QUERY_ENGINE_URL (or CLICKHOUSE_URL) is required"))
	}
	if !c.NoUpload && c.Bucket == "" {
		result = multierror.Append(result, fmt.Errorf("EXPORT_BUCKET (or S3_BUCKET) is required unless uploads are disabled"))
	}
	if c.QueryEngine.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("QUERY_TIMEOUT must be positive"))
	}
	if c.UploadAttempts < 1 {
		result = multierror.Append(result, fmt.Errorf("UPLOAD_ATTEMPTS must be at least 1"))
	}
	if c.UploadBackoff <= 0 {
		result = multierror.Append(result, fmt.Errorf("UPLOAD_BACKOFF must be positive"))
	}
	if c.LocalDir == "" {
		result = multierror.Append(result, fmt.Errorf("EXPORT_LOCAL_DIR must not be empty"))
	}
	if err := c.Source.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	return nil
}
