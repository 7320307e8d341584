/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package wmb

import (
	"math"
	"time"
)

// Watermark is the monotonically increasing watermark. It is a lower bound on the event time of the data
// that is still expected; it is totally ordered through its underlying time.
type Watermark time.Time

var (
	// InitialWatermark is the minimum sentinel, earlier than any event time including pre-epoch ones.
	// A port that has never emitted reports it. Kept within the int64 millisecond range.
	InitialWatermark = Watermark(time.UnixMilli(-1 << 62))
	// InactiveWatermark is the maximum representable watermark. An output that is not event-time aware
	// reports it, so it never holds back the minimum computed across several ports.
	InactiveWatermark = Watermark(time.UnixMilli(math.MaxInt64))
)

// FromUnixMilli returns the watermark for the given epoch milliseconds.
func FromUnixMilli(ms int64) Watermark {
	return Watermark(time.UnixMilli(ms))
}

func (w Watermark) String() string {
	if w.IsInactive() {
		return "inactive"
	}
	var location, _ = time.LoadLocation("UTC")
	var t = time.Time(w).In(location)
	return t.Format(time.RFC3339Nano)
}

func (w Watermark) UnixMilli() int64 {
	return time.Time(w).UnixMilli()
}

func (w Watermark) After(t time.Time) bool {
	return time.Time(w).After(t)
}

func (w Watermark) AfterWatermark(compare Watermark) bool {
	return w.After(time.Time(compare))
}

func (w Watermark) Before(t time.Time) bool {
	return time.Time(w).Before(t)
}

func (w Watermark) BeforeWatermark(compare Watermark) bool {
	return w.Before(time.Time(compare))
}

func (w Watermark) EqualWatermark(compare Watermark) bool {
	return time.Time(w).Equal(time.Time(compare))
}

func (w Watermark) Add(t time.Duration) time.Time {
	return time.Time(w).Add(t)
}

// IsInitial reports whether w is the "never emitted" sentinel.
func (w Watermark) IsInitial() bool {
	return w.EqualWatermark(InitialWatermark)
}

// IsInactive reports whether w is the "not event-time aware" sentinel.
func (w Watermark) IsInactive() bool {
	return w.EqualWatermark(InactiveWatermark)
}

// Min returns the smaller of the two watermarks.
func Min(a, b Watermark) Watermark {
	if a.BeforeWatermark(b) {
		return a
	}
	return b
}
