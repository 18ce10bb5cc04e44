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
	"errors"
	"fmt"
)

// Stage names the step of a run that failed.
type Stage string

const (
	StageConfig      Stage = "config"
	StageResolve     Stage = "resolve"
	StageCountProbe  Stage = "count_probe"
	StageAggregation Stage = "aggregation"
	StageUpload      Stage = "upload"
)

// StageError is a failure tagged with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage lets the HTTP renderer report the stage of a failure.
func (e *StageError) FailedStage() string {
	return string(e.Stage)
}

// Status is the terminal outcome of a run.
type Status string

const (
	StatusSuccess      Status = "success"
	StatusEmptySkipped Status = "empty_skipped"
	StatusFailure      Status = "failure"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitSetup       = 1
	ExitConfig      = 2
	ExitQueryEngine = 3
	ExitUpload      = 4
	ExitEmpty       = 5
)

// Result is the outcome of a single run. Exactly one of the success,
// empty-skipped or failure shapes is populated, selected by Status.
type Result struct {
	Status Status `json:"status"`

	Date        string `json:"date,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	WindowStart string `json:"window_start,omitempty"`
	WindowEnd   string `json:"window_end,omitempty"`
	ProbeCount  int64  `json:"probe_count"`

	// Rows is the number of agent rows in the report.
	Rows           int    `json:"rows"`
	LocalPath      string `json:"local_path,omitempty"`
	Key            string `json:"key,omitempty"`
	UploadAttempts int    `json:"upload_attempts"`
	SkipReason     string `json:"skip_reason,omitempty"`

	Stage Stage  `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`
	Err   error  `json:"-"`
}

// FailedResult returns a failure result for an error that happened outside
// of Run, such as loading configuration.
func FailedResult(stage Stage, err error) *Result {
	return (&Result{}).fail(stage, err)
}

func (r *Result) fail(stage Stage, err error) *Result {
	r.Status = StatusFailure
	r.Stage = stage
	r.Err = &StageError{Stage: stage, Err: err}
	r.Error = r.Err.Error()
	return r
}

func (r *Result) setWindow(w *Window) {
	r.Date = w.DateString()
	r.Timezone = w.Location.String()
	r.WindowStart = w.StartString()
	r.WindowEnd = w.EndString()
}

// ExitCode maps the result to a process exit status.
func (r *Result) ExitCode() int {
	switch r.Status {
	case StatusSuccess:
		return ExitOK
	case StatusEmptySkipped:
		return ExitEmpty
	}

	switch r.Stage {
	case StageConfig, StageResolve:
		if errors.Is(r.Err, ErrInvalidConfig) || errors.Is(r.Err, ErrInvalidDate) {
			return ExitConfig
		}
		return ExitSetup
	case StageCountProbe, StageAggregation:
		return ExitQueryEngine
	case StageUpload:
		return ExitUpload
	}
	return ExitSetup
}
