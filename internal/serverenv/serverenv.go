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

// Package serverenv defines common parameters for the sever environment.
package serverenv

import (
	"context"
	"fmt"

	"github.com/agentstats/agent-stats-exporter/internal/queryengine"
	"github.com/agentstats/agent-stats-exporter/internal/storage"
	"github.com/agentstats/agent-stats-exporter/pkg/observability"
	"github.com/hashicorp/go-multierror"
)

// ServerEnv represents latent environment configuration for servers in this
// application.
type ServerEnv struct {
	queryEngine           queryengine.Engine
	blobstore             storage.Blobstore
	localStore            storage.Blobstore
	observabilityExporter observability.Exporter
}

// Option defines function types to modify the ServerEnv on creation.
type Option func(*ServerEnv) *ServerEnv

// New creates a new ServerEnv with the requested options.
func New(ctx context.Context, opts ...Option) *ServerEnv {
	env := &ServerEnv{}

	for _, f := range opts {
		env = f(env)
	}

	return env
}

// WithQueryEngine attached a query engine to the environment.
func WithQueryEngine(e queryengine.Engine) Option {
	return func(s *ServerEnv) *ServerEnv {
		s.queryEngine = e
		return s
	}
}

// WithBlobStorage creates an Option to install a specific Blobstore
// implementation for uploads.
func WithBlobStorage(sto storage.Blobstore) Option {
	return func(s *ServerEnv) *ServerEnv {
		s.blobstore = sto
		return s
	}
}

// WithLocalStorage creates an Option to install the Blobstore used for local
// staging copies.
func WithLocalStorage(sto storage.Blobstore) Option {
	return func(s *ServerEnv) *ServerEnv {
		s.localStore = sto
		return s
	}
}

// WithObservabilityExporter creates an Option to install a specific
// observability exporter system.
func WithObservabilityExporter(oe observability.Exporter) Option {
	return func(s *ServerEnv) *ServerEnv {
		s.observabilityExporter = oe
		return s
	}
}

func (s *ServerEnv) QueryEngine() queryengine.Engine {
	return s.queryEngine
}

// Blobstore returns the upload destination, or nil when uploads are disabled.
func (s *ServerEnv) Blobstore() storage.Blobstore {
	return s.blobstore
}

func (s *ServerEnv) LocalStore() storage.Blobstore {
	return s.localStore
}

func (s *ServerEnv) ObservabilityExporter() observability.Exporter {
	return s.observabilityExporter
}

// Close shuts down the server env, closing the query engine and flushing the
// observability exporter.
func (s *ServerEnv) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var result *multierror.Error

	if s.queryEngine != nil {
		if err := s.queryEngine.Close(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close query engine: %w", err))
		}
	}

	if s.observabilityExporter != nil {
		if err := s.observabilityExporter.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close observability exporter: %w", err))
		}
	}

	return result.ErrorOrNil()
}
