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
	"testing"
)

func TestObjectKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "agent_stats_2024-03-10.csv"},
		{prefix: "/", want: "agent_stats_2024-03-10.csv"},
		{prefix: "reports", want: "reports/agent_stats_2024-03-10.csv"},
		{prefix: "/reports/daily/", want: "reports/daily/agent_stats_2024-03-10.csv"},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.prefix, func(t *testing.T) {
			t.Parallel()

			if got, want := ObjectKey(tc.prefix, ReportFilename("2024-03-10")), tc.want; got != want {
				t.Errorf("expected %q to be %q", got, want)
			}
		})
	}
}

func TestFilenames(t *testing.T) {
	t.Parallel()

	if got, want := ReportFilename("2024-11-03"), "agent_stats_2024-11-03.csv"; got != want {
		t.Errorf("expected %q to be %q", got, want)
	}
	if got, want := EmptyFlagFilename("2024-11-03"), "agent_stats_2024-11-03_EMPTY.flag"; got != want {
		t.Errorf("expected %q to be %q", got, want)
	}
	if got, want := ReportHeader, "agent_id,avg_call_length_sec,p90_call_length_sec"; got != want {
		t.Errorf("expected %q to be %q", got, want)
	}
}

func TestParseCount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  int64
		err   bool
	}{
		{name: "plain", input: "42\n", want: 42},
		{name: "no_newline", input: "7", want: 7},
		{name: "zero", input: "0\n", want: 0},
		{name: "trailing_blank_lines", input: "12\n\n\n", want: 12},
		{name: "header_then_value", input: "count()\n5\n", want: 5},
		{name: "quoted", input: "\"9\"\n", want: 9},
		{name: "crlf", input: "3\r\n", want: 3},
		{name: "empty", input: "", err: true},
		{name: "blank", input: "\n \n", err: true},
		{name: "garbage", input: "Code: 62. DB::Exception: Syntax error", err: true},
		{name: "negative", input: "-1\n", err: true},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseCount([]byte(tc.input))
			if (err != nil) != tc.err {
				t.Fatalf("expected error %t, got %v", tc.err, err)
			}
			if got != tc.want {
				t.Errorf("expected %d to be %d", got, tc.want)
			}
		})
	}
}

func TestCountDataRows(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  int
	}{
		{name: "empty", input: "", want: 0},
		{name: "header_only", input: "agent_id,avg_call_length_sec,p90_call_length_sec\n", want: 0},
		{name: "header_blank_lines", input: "agent_id,avg_call_length_sec,p90_call_length_sec\n\n\n", want: 0},
		{name: "rows", input: "agent_id,avg_call_length_sec,p90_call_length_sec\na1,1,2\na2,3,4\n", want: 2},
		{name: "quoted_newline", input: "agent_id,avg_call_length_sec,p90_call_length_sec\n\"a\nb\",1,2\n", want: 1},
		{name: "malformed", input: "agent_id,avg\n\"a1,1\nb,2\n", want: 2},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got, want := countDataRows([]byte(tc.input)), tc.want; got != want {
				t.Errorf("expected %d to be %d", got, want)
			}
		})
	}
}
