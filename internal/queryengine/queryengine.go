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

// Package queryengine executes SQL against an analytical database and returns
// the raw CSV result.
package queryengine

import (
	"context"
	"fmt"
	"time"
)

// Type identifies a query engine and its SQL dialect.
type Type string

const (
	TypeClickHouse Type = "CLICKHOUSE"
	TypePostgres   Type = "POSTGRES"
)

// Engine is the minimum capability the exporter needs from a database.
type Engine interface {
	// Query runs the given SQL and returns the response body. The SQL is
	// expected to produce CSV.
	Query(ctx context.Context, sql string) ([]byte, error)

	// Ping checks that the engine is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close(ctx context.Context) error
}

// Config is the connection configuration for a query engine. The QUERY_ENGINE_*
// variables fall back to the CLICKHOUSE_* names.
type Config struct {
	Type     Type          `env:"QUERY_ENGINE, default=CLICKHOUSE"`
	URL      string        `env:"QUERY_ENGINE_URL, default=$CLICKHOUSE_URL"`
	User     string        `env:"QUERY_ENGINE_USER, default=$CLICKHOUSE_USER"`
	Password string        `env:"QUERY_ENGINE_PASSWORD, default=$CLICKHOUSE_PASSWORD"`
	Database string        `env:"QUERY_ENGINE_DATABASE, default=$CLICKHOUSE_DATABASE"`
	Timeout  time.Duration `env:"QUERY_TIMEOUT, default=5m"`
}

// QueryEngineConfig returns the query engine config.
func (c *Config) QueryEngineConfig() *Config {
	return c
}

// String returns the string representation of the config. This omits the
// Password field to prevent accidental logging.
func (c *Config) String() string {
	pwSet := "<set>"
	if c.Password == "" {
		pwSet = "<not set>"
	}
	return fmt.Sprintf("{Type:%v URL:%v User:%v Password:%v Database:%v Timeout:%v}",
		c.Type, c.URL, c.User, pwSet, c.Database, c.Timeout)
}

// EngineFor returns the query engine for the given config.
func EngineFor(ctx context.Context, cfg *Config) (Engine, error) {
	switch typ := cfg.Type; typ {
	case TypeClickHouse:
		return NewClickHouse(ctx, cfg)
	case TypePostgres:
		return NewPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown query engine type: %v", typ)
	}
}
