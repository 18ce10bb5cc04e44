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

package queryengine

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/agentstats/agent-stats-exporter/pkg/logging"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Compile-time check to verify implements interface.
var _ Engine = (*Postgres)(nil)

// Postgres runs COPY ... TO STDOUT statements and returns their CSV output.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a lazily-connecting pool for the configured database.
// Sessions run in UTC so timestamp literals compare as UTC instants.
func NewPostgres(ctx context.Context, cfg *Config) (Engine, error) {
	connURL, err := postgresURL(cfg)
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.LazyConnect = true
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"
	if cfg.Timeout > 0 {
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.Timeout.Milliseconds())
	}

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// postgresURL merges the optional user, password and database into the
// configured URL.
func postgresURL(cfg *Config) (string, error) {
	if cfg.URL == "" {
		return "", fmt.Errorf("missing query engine URL")
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse query engine URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("query engine URL must be postgres or postgresql, got %q", u.Scheme)
	}

	if cfg.User != "" || cfg.Password != "" {
		user := cfg.User
		if user == "" && u.User != nil {
			user = u.User.Username()
		}
		if cfg.Password != "" {
			u.User = url.UserPassword(user, cfg.Password)
		} else {
			u.User = url.User(user)
		}
	}
	if cfg.Database != "" {
		u.Path = "/" + cfg.Database
	}
	return u.String(), nil
}

// Query runs a COPY ... TO STDOUT statement.
func (p *Postgres) Query(ctx context.Context, sql string) ([]byte, error) {
	logger := logging.FromContext(ctx).Named("queryengine.Postgres")

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	var b bytes.Buffer
	tag, err := conn.Conn().PgConn().CopyTo(ctx, &b, sql)
	if err != nil {
		return nil, fmt.Errorf("copy failed: %w", err)
	}

	logger.Debugw("query finished", "rows", tag.RowsAffected(), "bytes", b.Len())
	return b.Bytes(), nil
}

// Ping checks a pooled connection.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Close releases database connections.
func (p *Postgres) Close(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	logger.Infof("Closing connection pool.")
	p.pool.Close()
	return nil
}
