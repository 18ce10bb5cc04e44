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

// Package timeutils defines functions to close the gaps present in Golang's
// default implementation of Time.
package timeutils

import (
	"time"
)

// Midnight returns midnight of the calendar day containing t, in t's
// location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// UTCMidnight returns midnight of the UTC calendar day containing t.
func UTCMidnight(t time.Time) time.Time {
	return Midnight(t.UTC())
}

// AddDays adds the given number of calendar days to t, keeping the wall clock
// in t's location. Across a DST transition the elapsed duration is not a
// multiple of 24 hours.
func AddDays(t time.Time, days int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+days, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// SubtractDays subtracts the given number of calendar days from t.
func SubtractDays(t time.Time, days uint) time.Time {
	return AddDays(t, -int(days))
}

// DayBounds returns the half-open interval [start, end) covering the calendar
// date of t, interpreted in loc. Only the year, month and day of t are used, so
// callers should pass a date already expressed in the intended calendar. Both
// bounds are local midnights, so the interval is 23 or 25 hours long on DST
// transition days. When a zone skips midnight, time.Date normalizes to the
// first instant of the day that exists.
func DayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}
