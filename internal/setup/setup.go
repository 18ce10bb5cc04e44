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

// Package setup provides common logic for configuring the various services.
package setup

import (
	"context"
	"fmt"

	"github.com/agentstats/agent-stats-exporter/internal/queryengine"
	"github.com/agentstats/agent-stats-exporter/internal/serverenv"
	"github.com/agentstats/agent-stats-exporter/internal/storage"
	"github.com/agentstats/agent-stats-exporter/pkg/logging"
	"github.com/agentstats/agent-stats-exporter/pkg/observability"

	"github.com/sethvargo/go-envconfig"
)

// QueryEngineConfigProvider ensures that the environment config can provide a
// query engine config.
type QueryEngineConfigProvider interface {
	QueryEngineConfig() *queryengine.Config
}

// BlobstoreConfigProvider provides the information about current storage
// configuration. A nil config means uploads are disabled.
type BlobstoreConfigProvider interface {
	BlobstoreConfig() *storage.Config
}

// LocalStoreConfigProvider signals that a filesystem store for local copies
// is required.
type LocalStoreConfigProvider interface {
	LocalStore() bool
}

// ObservabilityExporterConfigProvider signals that the config knows how to
// configure an observability exporter.
type ObservabilityExporterConfigProvider interface {
	ObservabilityExporterConfig() *observability.Config
}

// Validator is a config that can check itself after processing.
type Validator interface {
	Validate() error
}

// Setup runs common initialization code for all servers. See SetupWith.
func Setup(ctx context.Context, config interface{}) (*serverenv.ServerEnv, error) {
	return SetupWith(ctx, config, envconfig.OsLookuper())
}

// SetupWith processes the given configuration using envconfig. It is
// responsible for establishing query engine connections, the blobstore and
// the observability exporter according to the provider interfaces the config
// implements.
//
// Validation errors are returned as-is so callers can match the config's own
// sentinel errors with errors.Is.
func SetupWith(ctx context.Context, config interface{}, l envconfig.Lookuper) (*serverenv.ServerEnv, error) {
	logger := logging.FromContext(ctx)

	if err := envconfig.ProcessWith(ctx, config, l); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}
	logger.Debugw("loaded configuration")

	if v, ok := config.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	// Start building serverenv opts
	var serverEnvOpts []serverenv.Option

	// Observability first so later clients are instrumented.
	if provider, ok := config.(ObservabilityExporterConfigProvider); ok {
		oe, err := observability.NewFromEnv(ctx, provider.ObservabilityExporterConfig())
		if err != nil {
			return nil, fmt.Errorf("unable to create observability provider: %w", err)
		}
		if err := oe.StartExporter(); err != nil {
			return nil, fmt.Errorf("failed to start observability: %w", err)
		}
		serverEnvOpts = append(serverEnvOpts, serverenv.WithObservabilityExporter(oe))
		logger.Debugw("configured observability exporter")
	}

	if provider, ok := config.(QueryEngineConfigProvider); ok {
		cfg := provider.QueryEngineConfig()
		engine, err := queryengine.EngineFor(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("unable to create query engine: %w", err)
		}
		serverEnvOpts = append(serverEnvOpts, serverenv.WithQueryEngine(engine))
		logger.Debugw("configured query engine", "config", cfg.String())
	}

	if provider, ok := config.(BlobstoreConfigProvider); ok {
		if cfg := provider.BlobstoreConfig(); cfg != nil {
			blobstore, err := storage.BlobstoreFor(ctx, cfg)
			if err != nil {
				return nil, fmt.Errorf("unable to connect to storage system: %w", err)
			}
			serverEnvOpts = append(serverEnvOpts, serverenv.WithBlobStorage(blobstore))
			logger.Debugw("configured blobstore", "type", cfg.Type)
		}
	}

	if provider, ok := config.(LocalStoreConfigProvider); ok && provider.LocalStore() {
		local, err := storage.NewFilesystemStorage(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to create local store: %w", err)
		}
		serverEnvOpts = append(serverEnvOpts, serverenv.WithLocalStorage(local))
	}

	return serverenv.New(ctx, serverEnvOpts...), nil
}
