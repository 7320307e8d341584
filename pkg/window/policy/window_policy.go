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

// Package policy defines the policies that configure a window: the window policy, which decides when tuples are
// evicted or when the window fires, and the partition eviction policy, which bounds the number of partitions.
//
// Policies are immutable values. A policy is copied by assignment or Clone, and the copy is independent.
package policy

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the kind of a window policy.
type Kind int

const (
	// Count bounds the window by the number of tuples.
	Count Kind = iota
	// Delta bounds the window by the distance of a numeric attribute from the newest tuple.
	Delta
	// Punctuation bounds the window by the punctuations of the stream.
	Punctuation
	// Time bounds the window by the wall clock time the tuples were inserted at.
	Time
	// EventTime bounds the window by aligned event time intervals which close with the watermark.
	EventTime
)

func (k Kind) String() string {
	switch k {
	case Count:
		return "count"
	case Delta:
		return "delta"
	case Punctuation:
		return "punct"
	case Time:
		return "time"
	case EventTime:
		return "eventTime"
	default:
		return "unknown"
	}
}

// ParseKind parses the name returned by Kind.String. The match is case-insensitive.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{Count, Delta, Punctuation, Time, EventTime} {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	if strings.EqualFold(s, "punctuation") {
		return Punctuation, nil
	}
	return 0, fmt.Errorf("unknown window policy kind %q", s)
}

// WindowPolicy is one of the window policy kinds with its parameters. Only the parameters of its kind are set.
type WindowPolicy struct {
	kind      Kind
	count     int
	delta     float64
	attribute string
	interval  time.Duration
	offset    time.Duration
}

// NewCount returns a Count policy of n tuples.
func NewCount(n int) (WindowPolicy, error) {
	if n <= 0 {
		return WindowPolicy{}, fmt.Errorf("count policy requires a positive size, got %d", n)
	}
	return WindowPolicy{kind: Count, count: n}, nil
}

// NewDelta returns a Delta policy. The attribute is an expression over the tuple payload, e.g. "payload.price".
func NewDelta(attribute string, delta float64) (WindowPolicy, error) {
	if strings.TrimSpace(attribute) == "" {
		return WindowPolicy{}, fmt.Errorf("delta policy requires an attribute")
	}
	if delta < 0 {
		return WindowPolicy{}, fmt.Errorf("delta policy requires a non negative delta, got %v", delta)
	}
	return WindowPolicy{kind: Delta, attribute: attribute, delta: delta}, nil
}

// NewPunctuation returns a Punctuation policy.
func NewPunctuation() WindowPolicy {
	return WindowPolicy{kind: Punctuation}
}

// NewTime returns a Time policy with the given interval.
func NewTime(interval time.Duration) (WindowPolicy, error) {
	if interval <= 0 {
		return WindowPolicy{}, fmt.Errorf("time policy requires a positive interval, got %v", interval)
	}
	return WindowPolicy{kind: Time, interval: interval}, nil
}

// NewEventTime returns an EventTime policy. Buckets are [k*interval+offset, (k+1)*interval+offset).
func NewEventTime(interval, offset time.Duration) (WindowPolicy, error) {
	if interval <= 0 {
		return WindowPolicy{}, fmt.Errorf("event time policy requires a positive interval, got %v", interval)
	}
	if offset < 0 || offset >= interval {
		return WindowPolicy{}, fmt.Errorf("event time policy offset must be in [0, %v), got %v", interval, offset)
	}
	return WindowPolicy{kind: EventTime, interval: interval, offset: offset}, nil
}

func must(p WindowPolicy, err error) WindowPolicy {
	if err != nil {
		panic(err)
	}
	return p
}

// MustCount is like NewCount but panics on invalid parameters.
func MustCount(n int) WindowPolicy {
	return must(NewCount(n))
}

// MustDelta is like NewDelta but panics on invalid parameters.
func MustDelta(attribute string, delta float64) WindowPolicy {
	return must(NewDelta(attribute, delta))
}

// MustTime is like NewTime but panics on invalid parameters.
func MustTime(interval time.Duration) WindowPolicy {
	return must(NewTime(interval))
}

// MustEventTime is like NewEventTime but panics on invalid parameters.
func MustEventTime(interval, offset time.Duration) WindowPolicy {
	return must(NewEventTime(interval, offset))
}

// Kind returns the kind of the policy.
func (p WindowPolicy) Kind() Kind {
	return p.kind
}

// Count returns the size of a Count policy.
func (p WindowPolicy) Count() int {
	return p.count
}

// Delta returns the maximum distance of a Delta policy.
func (p WindowPolicy) Delta() float64 {
	return p.delta
}

// Attribute returns the attribute expression of a Delta policy.
func (p WindowPolicy) Attribute() string {
	return p.attribute
}

// Interval returns the interval of a Time or EventTime policy.
func (p WindowPolicy) Interval() time.Duration {
	return p.interval
}

// Offset returns the bucket offset of an EventTime policy.
func (p WindowPolicy) Offset() time.Duration {
	return p.offset
}

// TypeToString returns the stable name of the policy kind.
func (p WindowPolicy) TypeToString() string {
	return p.kind.String()
}

// Clone returns an independent copy of the policy.
func (p WindowPolicy) Clone() WindowPolicy {
	return p
}

// BucketStart returns the start of the EventTime bucket the event time falls into. Buckets are aligned to the
// Unix epoch.
func (p WindowPolicy) BucketStart(eventTime time.Time) time.Time {
	ns := eventTime.UnixNano() - int64(p.offset)
	rem := ns % int64(p.interval)
	if rem < 0 {
		rem += int64(p.interval)
	}
	return time.Unix(0, ns-rem+int64(p.offset))
}

func (p WindowPolicy) String() string {
	switch p.kind {
	case Count:
		return fmt.Sprintf("count(%d)", p.count)
	case Delta:
		return fmt.Sprintf("delta(%s, %v)", p.attribute, p.delta)
	case Punctuation:
		return "punct()"
	case Time:
		return fmt.Sprintf("time(%v)", p.interval)
	case EventTime:
		return fmt.Sprintf("eventTime(%v, %v)", p.interval, p.offset)
	default:
		return "unknown()"
	}
}
