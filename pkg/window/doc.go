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

// Package window buffers the tuples of an operator input port per partition and decides when the buffered tuples
// are evicted or fired.
//
// A Window has a type and policies. A sliding window keeps the most recent tuples of every partition, bounded by its
// eviction policy (count, delta or time), and fires WindowTrigger events according to its optional trigger policy.
// A tumbling window accumulates tuples and flushes a partition as a whole once the eviction policy says the window
// is complete: after N tuples (count), when an attribute moved too far (delta), after an interval (time), on a
// punctuation, or, for event time windows, when the watermark passes the end of a bucket.
//
// The partitions of a window can be bounded by a partition eviction policy. Partitions are then discarded either
// least recently used first or by an operator supplied selector.
//
// Everything the window does is reported synchronously to the handlers registered per EventType. A Window is not
// safe for concurrent use, operators that are multi-threaded on input serialise the calls through
// operator.Context.CriticalSection.
//
// For example, a sliding window of 3 tuples per key with a trigger every 2 tuples
//
//	eviction := policy.MustCount(3)
//	trigger := policy.MustCount(2)
//	w, err := window.New(ctx, opCtx, 0, window.Config{Type: window.Sliding, Eviction: eviction, Trigger: &trigger},
//		window.WithHandler(window.WindowTrigger, window.HandlerFunc(fire)))
package window
