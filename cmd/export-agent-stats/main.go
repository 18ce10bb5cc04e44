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

// This package runs the daily agent stats export once and exits with a status
// describing the outcome.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/agentstats/agent-stats-exporter/internal/agentstats"
	"github.com/agentstats/agent-stats-exporter/internal/buildinfo"
	"github.com/agentstats/agent-stats-exporter/internal/interrupt"
	"github.com/agentstats/agent-stats-exporter/internal/setup"
	"github.com/agentstats/agent-stats-exporter/pkg/logging"

	"github.com/google/uuid"
	"github.com/sethvargo/go-envconfig"
)

func main() {
	ctx, done := interrupt.Context()

	logger := logging.NewLoggerFromEnv().
		With("build_id", buildinfo.BuildID).
		With("build_tag", buildinfo.BuildTag).
		With("run_id", uuid.New().String())
	ctx = logging.WithLogger(ctx, logger)

	defer func() {
		done()
		if r := recover(); r != nil {
			logger.Fatalw("application panic", "panic", r)
		}
	}()

	code := realMain(ctx, os.Args[1:], envconfig.OsLookuper())
	done()

	os.Exit(code)
}

// realMain runs one export and returns the process exit code.
func realMain(ctx context.Context, args []string, lookuper envconfig.Lookuper) int {
	logger := logging.FromContext(ctx)

	fs := flag.NewFlagSet("export-agent-stats", flag.ContinueOnError)
	noUpload := fs.Bool("no-upload", false, "write the report locally and skip the upload")
	if err := fs.Parse(args); err != nil {
		logger.Errorw("invalid flags", "error", err)
		return agentstats.ExitConfig
	}

	if *noUpload {
		lookuper = envconfig.MultiLookuper(
			envconfig.MapLookuper(map[string]string{"EXPORT_NO_UPLOAD": "true"}),
			lookuper)
	}

	var config agentstats.Config
	env, err := setup.SetupWith(ctx, &config, lookuper)
	if err != nil {
		result := agentstats.FailedResult(agentstats.StageConfig, fmt.Errorf("setup: %w", err))
		logger.Errorw("failed to set up export", "stage", result.Stage, "error", err)
		return result.ExitCode()
	}
	defer func() {
		if err := env.Close(ctx); err != nil {
			logger.Errorw("failed to close environment", "error", err)
		}
	}()

	exporter, err := agentstats.NewExporter(&config, env)
	if err != nil {
		logger.Errorw("failed to create exporter", "error", err)
		return agentstats.ExitSetup
	}

	result := exporter.Run(ctx, agentstats.RunOptions{})
	code := result.ExitCode()

	logger.Infow("export finished",
		"status", result.Status,
		"stage", result.Stage,
		"rows", result.Rows,
		"key", result.Key,
		"local_path", result.LocalPath,
		"skip_reason", result.SkipReason,
		"exit_code", code)
	return code
}
