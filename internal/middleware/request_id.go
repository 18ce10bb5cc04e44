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

package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

const contextKeyRequestID = contextKey("request_id")

// PopulateRequestID stores a request ID in the context and echoes it in the
// response. A caller's X-Request-ID is kept when it is a UUID, so a scheduler
// can correlate its trigger with the export's logs. Otherwise a new random
// UUID is used.
func PopulateRequestID() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := requestID(r)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			w.Header().Set(HeaderRequestID, id)
			r = r.Clone(withRequestID(r.Context(), id))

			next.ServeHTTP(w, r)
		})
	}
}

func requestID(r *http.Request) (string, error) {
	if v := r.Header.Get(HeaderRequestID); v != "" {
		if u, err := uuid.Parse(v); err == nil {
			return u.String(), nil
		}
	}

	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// RequestIDFromContext returns the request ID, or "" if there is none.
func RequestIDFromContext(ctx context.Context) string {
	t, _ := ctx.Value(contextKeyRequestID).(string)
	return t
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}
