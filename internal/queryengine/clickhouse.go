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
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentstats/agent-stats-exporter/pkg/logging"
	"github.com/google/uuid"
	"go.opencensus.io/plugin/ochttp"
)

// maxErrorBody is the number of response bytes included in errors.
const maxErrorBody = 512

// Compile-time check to verify implements interface.
var _ Engine = (*ClickHouse)(nil)

// ClickHouse runs queries over the ClickHouse HTTP interface.
type ClickHouse struct {
	client   *http.Client
	baseURL  *url.URL
	user     string
	password string
	database string
	timeout  time.Duration
}

// NewClickHouse creates a ClickHouse client for the configured endpoint. No
// network calls are made.
func NewClickHouse(ctx context.Context, cfg *Config) (Engine, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("missing query engine URL")
	}

	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse query engine URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("query engine URL must be http or https, got %q", u.Scheme)
	}

	return &ClickHouse{
		client:   &http.Client{Transport: &ochttp.Transport{}},
		baseURL:  u,
		user:     cfg.User,
		password: cfg.Password,
		database: cfg.Database,
		timeout:  cfg.Timeout,
	}, nil
}

// Query POSTs the SQL as the request body and returns the raw response body.
// Callers choose the output format in the SQL itself.
func (c *ClickHouse) Query(ctx context.Context, sql string) ([]byte, error) {
	queryID := uuid.New().String()

	logger := logging.FromContext(ctx).Named("queryengine.ClickHouse")
	logger.Debugw("running query", "query_id", queryID, "sql", strings.Join(strings.Fields(sql), " "))

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := *c.baseURL
	params := u.Query()
	params.Set("query_id", queryID)
	if c.database != "" {
		params.Set("database", c.database)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewBufferString(sql))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if c.user != "" || c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s failed: %w", queryID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response for query %s: %w", queryID, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("query %s returned %d: %s", queryID, resp.StatusCode, truncate(body, maxErrorBody))
	}

	logger.Debugw("query finished", "query_id", queryID, "bytes", len(body))
	return body, nil
}

// Ping calls the /ping endpoint.
func (c *ClickHouse) Ping(ctx context.Context) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/ping"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("ping returned %d: %s", resp.StatusCode, truncate(body, maxErrorBody))
	}
	return nil
}

// Close releases idle connections.
func (c *ClickHouse) Close(_ context.Context) error {
	c.client.CloseIdleConnections()
	return nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
