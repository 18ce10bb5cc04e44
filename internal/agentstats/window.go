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
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	// Embed the zone database so resolution works in minimal images.
	_ "time/tzdata"

	"github.com/agentstats/agent-stats-exporter/pkg/logging"
	"github.com/agentstats/agent-stats-exporter/pkg/timeutils"
)

const (
	// DateLayout is the format of an export date.
	DateLayout = "2006-01-02"

	// InstantLayout is the format of window bounds interpolated into queries.
	// Instants are always UTC and carry no zone suffix.
	InstantLayout = "2006-01-02 15:04:05"
)

// ErrInvalidDate is returned when an explicit export date is malformed.
var ErrInvalidDate = errors.New("invalid export date")

// Window is the half-open UTC interval [Start, End) covering one calendar day
// in Location.
type Window struct {
	// Date is the calendar date, stored as midnight UTC.
	Date time.Time

	// Location is the zone the day was computed in. It is UTC when no timezone
	// was configured or the configured one could not be loaded.
	Location *time.Location

	// TimezoneFallback is true when a configured timezone was rejected.
	TimezoneFallback bool

	Start time.Time
	End   time.Time
}

// DateString returns the calendar date as YYYY-MM-DD.
func (w *Window) DateString() string {
	return w.Date.Format(DateLayout)
}

// StartString returns the inclusive lower bound formatted for a query.
func (w *Window) StartString() string {
	return w.Start.UTC().Format(InstantLayout)
}

// EndString returns the exclusive upper bound formatted for a query.
func (w *Window) EndString() string {
	return w.End.UTC().Format(InstantLayout)
}

// Duration is the length of the window: 23, 24 or 25 hours.
func (w *Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// ParseDate strictly parses a YYYY-MM-DD date. Surrounding whitespace is
// ignored; anything else that does not round-trip is rejected.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: expected YYYY-MM-DD", ErrInvalidDate, s)
	}
	if t.Format(DateLayout) != s {
		return time.Time{}, fmt.Errorf("%w: %q: expected YYYY-MM-DD", ErrInvalidDate, s)
	}
	return t, nil
}

// LoadLocation resolves a timezone name. An empty name is UTC. A name that
// cannot be loaded, or the host-dependent "Local", also resolves to UTC and
// reports ok=false.
func LoadLocation(name string) (loc *time.Location, ok bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, true
	}
	if name == "Local" {
		return time.UTC, false
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, false
	}
	return loc, true
}

// ResolveWindow computes the export window. When date is empty the target is
// yesterday according to the local calendar of timezone at now. An invalid
// timezone is logged and replaced by UTC; an invalid date is an error wrapping
// ErrInvalidDate.
func ResolveWindow(ctx context.Context, date, timezone string, now time.Time) (*Window, error) {
	logger := logging.FromContext(ctx).Named("agentstats.ResolveWindow")

	loc, ok := LoadLocation(timezone)
	if !ok {
		logger.Warnw("invalid timezone, falling back to UTC", "timezone", timezone)
	}

	var day time.Time
	if strings.TrimSpace(date) != "" {
		parsed, err := ParseDate(date)
		if err != nil {
			return nil, err
		}
		day = parsed
	} else {
		y, m, d := now.In(loc).Date()
		day = time.Date(y, m, d-1, 0, 0, 0, 0, time.UTC)
	}

	start, end := timeutils.DayBounds(day, loc)

	return &Window{
		Date:             day,
		Location:         loc,
		TimezoneFallback: !ok,
		Start:            start.UTC(),
		End:              end.UTC(),
	}, nil
}
