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

// Package agentstats exports the daily per-agent call statistics report.
package agentstats

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/agentstats/agent-stats-exporter/internal/metrics/export"
	"github.com/agentstats/agent-stats-exporter/internal/queryengine"
	"github.com/agentstats/agent-stats-exporter/internal/serverenv"
	"github.com/agentstats/agent-stats-exporter/internal/storage"
	"github.com/agentstats/agent-stats-exporter/pkg/logging"

	"github.com/sethvargo/go-retry"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

// Exporter runs the count probe, aggregation, local staging and upload for a
// single date.
type Exporter struct {
	config     *Config
	engine     queryengine.Engine
	blobstore  storage.Blobstore
	localStore storage.Blobstore
	builder    *QueryBuilder

	now     func() time.Time
	backoff func() retry.Backoff
}

// RunOptions override configured values for a single run.
type RunOptions struct {
	// Date replaces the configured export date when set.
	Date string

	// NoUpload keeps the report local for this run.
	NoUpload bool
}

// NewExporter creates a new exporter from the given config and environment.
func NewExporter(config *Config, env *serverenv.ServerEnv) (*Exporter, error) {
	if env.QueryEngine() == nil {
		return nil, fmt.Errorf("missing query engine in server environment")
	}
	if !config.NoUpload && env.Blobstore() == nil {
		return nil, fmt.Errorf("missing blobstore in server environment")
	}
	if config.UploadBackoff <= 0 {
		return nil, fmt.Errorf("upload backoff must be positive, got %s", config.UploadBackoff)
	}

	builder, err := NewQueryBuilder(config.QueryEngine.Type, config.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to create query builder: %w", err)
	}

	return &Exporter{
		config:     config,
		engine:     env.QueryEngine(),
		blobstore:  env.Blobstore(),
		localStore: env.LocalStore(),
		builder:    builder,
		now:        time.Now,
		backoff:    config.uploadBackoff,
	}, nil
}

// uploadBackoff is exponential from UploadBackoff, limited so the upload is
// tried UploadAttempts times in total.
func (c *Config) uploadBackoff() retry.Backoff {
	attempts := c.UploadAttempts
	if attempts < 1 {
		attempts = 1
	}
	return retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(c.UploadBackoff))
}

// Run performs one export and returns its result. It never returns nil.
func (e *Exporter) Run(ctx context.Context, opts RunOptions) *Result {
	result := e.run(ctx, opts)
	e.record(ctx, result)
	return result
}

func (e *Exporter) run(ctx context.Context, opts RunOptions) *Result {
	logger := logging.FromContext(ctx).Named("agentstats.Run")
	result := &Result{}

	date := e.config.Date
	if opts.Date != "" {
		date = opts.Date
	}
	noUpload := e.config.NoUpload || opts.NoUpload

	w, err := ResolveWindow(ctx, date, e.config.Timezone, e.now())
	if err != nil {
		logger.Errorw("failed to resolve export window", "date", date, "error", err)
		return result.fail(StageResolve, err)
	}
	result.setWindow(w)

	logger = logger.With(
		"date", result.Date,
		"timezone", result.Timezone,
		"window_start", result.WindowStart,
		"window_end", result.WindowEnd)
	ctx = logging.WithLogger(ctx, logger)
	logger.Infow("resolved export window", "duration", w.Duration().String())

	// Count probe.
	body, err := e.query(ctx, e.builder.CountQuery(w))
	if err != nil {
		logger.Errorw("count probe failed", "stage", StageCountProbe, "error", err)
		return result.fail(StageCountProbe, err)
	}
	count, err := parseCount(body)
	if err != nil {
		logger.Errorw("count probe returned unexpected output", "stage", StageCountProbe, "error", err)
		return result.fail(StageCountProbe, err)
	}
	result.ProbeCount = count

	if count == 0 {
		flag := EmptyFlagFilename(result.Date)
		if path, err := e.stage(ctx, flag, []byte(emptyFlagContents), ""); err != nil {
			logger.Warnw("failed to write empty flag", "error", err)
		} else {
			result.LocalPath = path
		}

		logger.Warnw("no rows in export window, skipping aggregation and upload")
		result.Status = StatusEmptySkipped
		result.SkipReason = "no rows in export window"
		return result
	}
	logger.Infow("count probe passed", "count", count)

	// Aggregation.
	report, err := e.query(ctx, e.builder.AggregationQuery(w))
	if err != nil {
		logger.Errorw("aggregation failed", "stage", StageAggregation, "error", err)
		return result.fail(StageAggregation, err)
	}
	result.Rows = countDataRows(report)

	filename := ReportFilename(result.Date)
	if path, err := e.stage(ctx, filename, report, storage.ContentTypeCSV); err != nil {
		logger.Warnw("failed to write local copy", "error", err)
	} else {
		result.LocalPath = path
	}

	if noUpload {
		logger.Infow("upload disabled, keeping local copy only", "rows", result.Rows)
		result.Status = StatusSuccess
		result.SkipReason = "upload disabled"
		return result
	}
	if result.Rows == 0 {
		logger.Warnw("aggregation returned only a header, skipping upload", "count", count)
		result.Status = StatusSuccess
		result.SkipReason = "header-only result"
		return result
	}

	// Upload.
	key := ObjectKey(e.config.KeyPrefix, filename)
	if err := e.upload(ctx, key, report, result); err != nil {
		logger.Errorw("upload failed",
			"stage", StageUpload,
			"bucket", e.config.Bucket,
			"key", key,
			"attempts", result.UploadAttempts,
			"error", err)
		return result.fail(StageUpload, err)
	}

	logger.Infow("uploaded report",
		"bucket", e.config.Bucket,
		"key", key,
		"rows", result.Rows,
		"attempts", result.UploadAttempts)

	result.Status = StatusSuccess
	result.Key = key
	return result
}

// query runs sql with the configured timeout.
func (e *Exporter) query(ctx context.Context, sql string) ([]byte, error) {
	if t := e.config.QueryEngine.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	return e.engine.Query(ctx, sql)
}

// stage writes a local copy, returning its path. Callers treat errors as
// non-fatal.
func (e *Exporter) stage(ctx context.Context, filename string, contents []byte, contentType string) (string, error) {
	if e.localStore == nil {
		return "", fmt.Errorf("no local store configured")
	}
	if err := e.localStore.CreateObject(ctx, e.config.LocalDir, filename, contents, contentType); err != nil {
		return "", err
	}
	return filepath.Join(e.config.LocalDir, filename), nil
}

// upload writes the report, retrying with exponential backoff. Every storage
// error is treated as transient.
func (e *Exporter) upload(ctx context.Context, key string, contents []byte, result *Result) error {
	logger := logging.FromContext(ctx)

	return retry.Do(ctx, e.backoff(), func(ctx context.Context) error {
		result.UploadAttempts++
		if err := e.blobstore.CreateObject(ctx, e.config.Bucket, key, contents, storage.ContentTypeCSV); err != nil {
			logger.Warnw("upload attempt failed", "attempt", result.UploadAttempts, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (e *Exporter) record(ctx context.Context, result *Result) {
	stage := string(result.Stage)
	if stage == "" {
		stage = "none"
	}

	if err := stats.RecordWithTags(ctx,
		[]tag.Mutator{
			tag.Upsert(export.StatusTagKey, string(result.Status)),
			tag.Upsert(export.StageTagKey, stage),
		},
		export.RunCount.M(1)); err != nil {
		logging.FromContext(ctx).Warnw("failed to record run metric", "error", err)
	}

	stats.Record(ctx,
		export.RowsExported.M(int64(result.Rows)),
		export.UploadAttempts.M(int64(result.UploadAttempts)))
}
