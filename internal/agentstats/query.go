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
	"fmt"
	"strings"

	"github.com/agentstats/agent-stats-exporter/internal/queryengine"
)

// Report column names, in output order.
const (
	ColumnAgentID = "agent_id"
	ColumnAvg     = "avg_call_length_sec"
	ColumnP90     = "p90_call_length_sec"
)

// QueryBuilder renders the count probe and aggregation SQL for one dialect.
// Only validated identifiers and formatted window instants are interpolated.
type QueryBuilder struct {
	dialect queryengine.Type
	source  Source
}

// NewQueryBuilder returns a builder for the given dialect and source.
func NewQueryBuilder(dialect queryengine.Type, source Source) (*QueryBuilder, error) {
	switch dialect {
	case queryengine.TypeClickHouse, queryengine.TypePostgres:
	default:
		return nil, fmt.Errorf("unsupported query dialect: %v", dialect)
	}
	if err := source.Validate(); err != nil {
		return nil, fmt.Errorf("invalid source: %w", err)
	}
	return &QueryBuilder{dialect: dialect, source: source}, nil
}

// CountQuery returns SQL producing a single CSV value: the number of source
// rows in the window.
func (b *QueryBuilder) CountQuery(w *Window) string {
	switch b.dialect {
	case queryengine.TypePostgres:
		q := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s", b.source.Table, b.windowPredicate(w))
		return b.copyCSV(q, false)
	default:
		return fmt.Sprintf("SELECT count() FROM %s WHERE %s FORMAT CSV", b.source.Table, b.windowPredicate(w))
	}
}

// AggregationQuery returns SQL producing the headered report, one row per
// agent ordered by agent ascending.
func (b *QueryBuilder) AggregationQuery(w *Window) string {
	s := b.source

	agent := s.AgentColumn
	if agent != ColumnAgentID {
		agent = fmt.Sprintf("%s AS %s", s.AgentColumn, ColumnAgentID)
	}

	// The 90th percentile is the non-NULL value at zero-based rank
	// floor(0.9 * n) of the sorted durations, which is how quantileExact
	// picks it. percentile_disc would take rank ceil(0.9 * n) - 1 instead.
	var p90 string
	switch b.dialect {
	case queryengine.TypePostgres:
		p90 = fmt.Sprintf("(array_agg(%[1]s ORDER BY %[1]s) FILTER (WHERE %[1]s IS NOT NULL))[floor(0.9 * count(%[1]s))::int + 1]",
			s.DurationColumn)
	default:
		p90 = fmt.Sprintf("quantileExact(0.9)(%s)", s.DurationColumn)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s, avg(%s) AS %s, %s AS %s", agent, s.DurationColumn, ColumnAvg, p90, ColumnP90)
	fmt.Fprintf(&sb, " FROM %s WHERE %s", s.Table, b.windowPredicate(w))
	fmt.Fprintf(&sb, " GROUP BY %s ORDER BY %s ASC", s.AgentColumn, s.AgentColumn)

	switch b.dialect {
	case queryengine.TypePostgres:
		return b.copyCSV(sb.String(), true)
	default:
		return sb.String() + " FORMAT CSVWithNames"
	}
}

// windowPredicate restricts the timestamp column to [start, end).
func (b *QueryBuilder) windowPredicate(w *Window) string {
	col := b.source.TimestampColumn
	return fmt.Sprintf("%s >= %s AND %s < %s", col, b.instant(w.StartString()), col, b.instant(w.EndString()))
}

func (b *QueryBuilder) instant(s string) string {
	switch b.dialect {
	case queryengine.TypePostgres:
		return fmt.Sprintf("TIMESTAMPTZ '%s+00'", s)
	default:
		return fmt.Sprintf("toDateTime('%s', 'UTC')", s)
	}
}

func (b *QueryBuilder) copyCSV(q string, header bool) string {
	opts := "FORMAT csv"
	if header {
		opts += ", HEADER true"
	}
	return fmt.Sprintf("COPY (%s) TO STDOUT WITH (%s)", q, opts)
}
