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

package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// StagedError is an error that names the step of an export it came from.
type StagedError interface {
	error
	FailedStage() string
}

// ErrorResponse is the body written for errors.
type ErrorResponse struct {
	Stage string `json:"stage,omitempty"`
	Error string `json:"error"`
}

// RenderJSON writes data as JSON with the given status code. Errors are
// written as an ErrorResponse, carrying the stage when the error chain
// contains a StagedError. Anything else is encoded as is.
//
// Responses describe a single run and are never cacheable. If encoding
// fails a 500 is written instead, so clients never see a partial body.
func (r *Renderer) RenderJSON(w http.ResponseWriter, code int, data interface{}) {
	if err, ok := data.(error); ok {
		resp := &ErrorResponse{Error: err.Error()}
		var staged StagedError
		if errors.As(err, &staged) {
			resp.Stage = staged.FailedStage()
		}
		data = resp
	}

	b := r.buffer()
	defer r.pool.Put(b)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	if err := json.NewEncoder(b).Encode(data); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, jsonErrTmpl, http.StatusText(http.StatusInternalServerError))
		return
	}

	w.WriteHeader(code)
	_, _ = b.WriteTo(w)
}

// jsonErrTmpl is rendered with Printf, so values must already be escaped.
const jsonErrTmpl = `{"error":"%s"}`
