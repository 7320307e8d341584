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

package window

import (
	"context"
	"time"

	"github.com/numaproj/numawindow/pkg/watermark/wmb"
)

// EventType is the type of the events a window reports to its handlers.
type EventType int

const (
	// BeforeTupleInsertion is reported before a tuple is added to its partition.
	BeforeTupleInsertion EventType = iota
	// AfterTupleInsertion is reported once the tuple is buffered.
	AfterTupleInsertion
	// BeforeTupleEviction is reported for every record a sliding window evicts, while it is still buffered.
	BeforeTupleEviction
	// AfterTupleEviction is reported once the record left the partition.
	AfterTupleEviction
	// WindowTrigger is reported when the trigger policy of a sliding window fires.
	WindowTrigger
	// WindowInitialFull is reported the first time a partition of a sliding count window is full.
	WindowInitialFull
	// BeforeWindowFlush is reported before a tumbling window flushes a partition, or an event time bucket of it.
	BeforeWindowFlush
	// AfterWindowFlush is reported once the flushed records left the partition.
	AfterWindowFlush
	// EmptyWindowPunct is reported for a punctuation on a window without buffered tuples.
	EmptyWindowPunct
	// PartitionEviction is reported for every partition discarded by the partition eviction policy.
	PartitionEviction
	// LateTuple is reported for a tuple whose event time bucket was already closed by the watermark.
	LateTuple
)

// EventTypes lists every event type in declaration order.
var EventTypes = []EventType{
	BeforeTupleInsertion, AfterTupleInsertion, BeforeTupleEviction, AfterTupleEviction, WindowTrigger,
	WindowInitialFull, BeforeWindowFlush, AfterWindowFlush, EmptyWindowPunct, PartitionEviction, LateTuple,
}

func (e EventType) String() string {
	switch e {
	case BeforeTupleInsertion:
		return "BeforeTupleInsertion"
	case AfterTupleInsertion:
		return "AfterTupleInsertion"
	case BeforeTupleEviction:
		return "BeforeTupleEviction"
	case AfterTupleEviction:
		return "AfterTupleEviction"
	case WindowTrigger:
		return "WindowTrigger"
	case WindowInitialFull:
		return "WindowInitialFull"
	case BeforeWindowFlush:
		return "BeforeWindowFlush"
	case AfterWindowFlush:
		return "AfterWindowFlush"
	case EmptyWindowPunct:
		return "EmptyWindowPunct"
	case PartitionEviction:
		return "PartitionEviction"
	case LateTuple:
		return "LateTuple"
	default:
		return "Unknown"
	}
}

// Event is what a handler receives.
type Event struct {
	Type   EventType
	Window *Window
	// PartitionKey is empty for window wide events.
	PartitionKey string
	// Tuple is set for the insertion events and LateTuple.
	Tuple *Tuple
	// Records are the evicted, flushed or, for WindowTrigger and WindowInitialFull, the buffered records.
	Records []*Record
	// BucketStart and BucketEnd are set for the flushes of an event time window.
	BucketStart time.Time
	BucketEnd   time.Time
	// Watermark is the watermark of the window when the event happened.
	Watermark wmb.Watermark
}

// Handler handles the events of a window. An error aborts the operation that caused the event and is returned to
// its caller.
type Handler interface {
	Handle(ctx context.Context, e *Event) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, e *Event) error

// Handle calls f(ctx, e).
func (f HandlerFunc) Handle(ctx context.Context, e *Event) error {
	return f(ctx, e)
}

// VictimSelector picks the partitions to evict when the partition eviction policy is operator defined. It gets all
// the candidates and how far the window is over its bound: the number of partitions for PartitionAge and
// PartitionCount, the number of tuples for TupleCount. Exactly the returned keys are evicted.
type VictimSelector func(ctx context.Context, candidates []*Partition, excess int) ([]string, error)

// AttributeFunc returns the delta attribute of a tuple.
type AttributeFunc func(t Tuple) (float64, error)
