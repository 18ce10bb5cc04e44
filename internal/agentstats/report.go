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
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReportHeader is the header row of the report.
var ReportHeader = strings.Join([]string{ColumnAgentID, ColumnAvg, ColumnP90}, ",")

// emptyFlagContents is written to the zero-count sentinel.
const emptyFlagContents = "empty"

// ReportFilename is the object name of the report for a date.
func ReportFilename(date string) string {
	return fmt.Sprintf("agent_stats_%s.csv", date)
}

// EmptyFlagFilename is the sentinel written when a date has no source rows.
func EmptyFlagFilename(date string) string {
	return fmt.Sprintf("agent_stats_%s_EMPTY.flag", date)
}

// ObjectKey joins a prefix and filename. Leading and trailing slashes on the
// prefix are ignored; an empty prefix yields the bare filename.
func ObjectKey(prefix, filename string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return filename
	}
	return prefix + "/" + filename
}

// parseCount reads the count probe response: the last non-empty line, as an
// integer.
func parseCount(b []byte) (int64, error) {
	var last string
	for _, line := range strings.Split(string(b), "\n") {
		if l := strings.TrimSpace(line); l != "" {
			last = l
		}
	}
	if last == "" {
		return 0, fmt.Errorf("empty count response")
	}

	r := csv.NewReader(strings.NewReader(last))
	record, err := r.Read()
	if err != nil || len(record) == 0 {
		return 0, fmt.Errorf("failed to parse count response %q", last)
	}

	n, err := strconv.ParseInt(strings.TrimSpace(record[len(record)-1]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse count response %q: %w", last, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

// countDataRows returns the number of data rows in a headered CSV body. Blank
// lines are ignored. Bodies that are not valid CSV are counted line by line.
func countDataRows(b []byte) int {
	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1

	records := 0
	for {
		_, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return countLines(b)
		}
		records++
	}

	if records == 0 {
		return 0
	}
	return records - 1
}

func countLines(b []byte) int {
	lines := 0
	for _, line := range strings.Split(string(b), "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	if lines == 0 {
		return 0
	}
	return lines - 1
}
