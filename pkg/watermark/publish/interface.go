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

// Package publish publishes the watermarks of output ports and delivers the watermarks of input ports.
//
// A Sender publishes the watermark of one output port, either to a KV bucket watched by the downstream operators
// or only locally. The Watcher consumes such a bucket and hands the watermark of every upstream entity to a
// Handler, usually a Combiner which keeps the minimum over all the input ports.
package publish

import (
	"context"
	"io"

	"github.com/numaproj/numawindow/pkg/watermark/wmb"
)

// Sender sends the watermark of one output port.
type Sender interface {
	io.Closer
	// SendWatermark publishes wm. Watermarks that do not advance the current one are skipped.
	SendWatermark(ctx context.Context, wm wmb.Watermark) error
	// Watermark returns the last sent watermark.
	Watermark() wmb.Watermark
	// IsInactive returns true if the output is not event-time aware.
	IsInactive() bool
	// SetInactive marks the output as not event-time aware. Its watermark becomes the inactive watermark.
	SetInactive()
}

// Handler handles the watermark of an input port.
type Handler interface {
	HandleWatermark(ctx context.Context, port int, wm wmb.Watermark) error
}

// HandlerFunc is an adapter to use a function as a Handler.
type HandlerFunc func(ctx context.Context, port int, wm wmb.Watermark) error

func (f HandlerFunc) HandleWatermark(ctx context.Context, port int, wm wmb.Watermark) error {
	return f(ctx, port, wm)
}
