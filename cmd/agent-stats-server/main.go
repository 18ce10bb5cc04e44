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

// This package is the HTTP trigger for the daily agent stats export. It is
// intended to be invoked by a scheduler.
package main

import (
	"context"
	"fmt"

	"github.com/agentstats/agent-stats-exporter/internal/agentstats"
	"github.com/agentstats/agent-stats-exporter/internal/buildinfo"
	"github.com/agentstats/agent-stats-exporter/internal/interrupt"
	"github.com/agentstats/agent-stats-exporter/internal/server"
	"github.com/agentstats/agent-stats-exporter/internal/setup"
	"github.com/agentstats/agent-stats-exporter/pkg/logging"
)

func main() {
	ctx, done := interrupt.Context()

	logger := logging.NewLoggerFromEnv().
		With("build_id", buildinfo.BuildID).
		With("build_tag", buildinfo.BuildTag)
	ctx = logging.WithLogger(ctx, logger)

	defer func() {
		done()
		if r := recover(); r != nil {
			logger.Fatalw("application panic", "panic", r)
		}
	}()

	err := realMain(ctx)
	done()

	if err != nil {
		logger.Fatal(err)
	}
	logger.Info("successful shutdown")
}

func realMain(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	var config agentstats.Config
	env, err := setup.Setup(ctx, &config)
	if err != nil {
		return fmt.Errorf("setup.Setup: %w", err)
	}
	defer env.Close(ctx)

	exportServer, err := agentstats.NewServer(&config, env)
	if err != nil {
		return fmt.Errorf("agentstats.NewServer: %w", err)
	}

	srv, err := server.New(config.Port)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	logger.Infow("server listening", "port", config.Port)

	return srv.ServeHTTPHandler(ctx, exportServer.Routes(ctx))
}
