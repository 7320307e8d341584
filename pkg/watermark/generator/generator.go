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

// Package generator derives watermarks from event times and emits them to the output port they belong to.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/numaproj/numawindow/pkg/shared/logging"
	"github.com/numaproj/numawindow/pkg/watermark/publish"
	"github.com/numaproj/numawindow/pkg/watermark/wmb"
)

// Generator emits monotonically increasing watermarks, at least the min gap apart, through a Sender.
// There is one Generator per output port and a single goroutine drives it.
type Generator struct {
	sender    publish.Sender
	lag       time.Duration
	minGap    time.Duration
	nextWmOut wmb.Watermark
	log       *zap.SugaredLogger
}

// New returns a Generator sending through sender.
func New(ctx context.Context, sender publish.Sender, opts ...Option) (*Generator, error) {
	if sender == nil {
		return nil, errors.New("watermark generator needs a sender")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.lag < 0 {
		return nil, fmt.Errorf("watermark lag must not be negative, got %s", o.lag)
	}
	if o.minGap < 0 {
		return nil, fmt.Errorf("watermark min gap must not be negative, got %s", o.minGap)
	}
	return &Generator{
		sender:    sender,
		lag:       o.lag,
		minGap:    o.minGap,
		nextWmOut: wmb.InitialWatermark,
		log:       logging.FromContext(ctx).With("lag", o.lag.String(), "minGap", o.minGap.String()),
	}, nil
}

// WatermarkFor returns the watermark derived from the event time.
func (g *Generator) WatermarkFor(eventTime time.Time) wmb.Watermark {
	return wmb.Watermark(eventTime.Add(-g.lag))
}

// SetWatermark emits the candidate unless it is below the next watermark that may be emitted. It returns whether
// the candidate was emitted. A failed send leaves the generator unchanged.
func (g *Generator) SetWatermark(ctx context.Context, candidate wmb.Watermark) (bool, error) {
	if candidate.BeforeWatermark(g.nextWmOut) {
		emittedWatermarks.WithLabelValues(resultDiscarded).Inc()
		g.log.Debugw("Discarding watermark", zap.String("candidate", candidate.String()), zap.String("next", g.nextWmOut.String()))
		return false, nil
	}
	if err := g.sender.SendWatermark(ctx, candidate); err != nil {
		emittedWatermarks.WithLabelValues(resultFailed).Inc()
		return false, fmt.Errorf("failed to send watermark %s: %w", candidate, err)
	}
	g.nextWmOut = wmb.Watermark(candidate.Add(g.minGap))
	emittedWatermarks.WithLabelValues(resultEmitted).Inc()
	return true, nil
}

// Observe emits the watermark derived from the event time.
func (g *Generator) Observe(ctx context.Context, eventTime time.Time) (bool, error) {
	return g.SetWatermark(ctx, g.WatermarkFor(eventTime))
}

// NextWatermarkOut returns the smallest watermark that would be emitted.
func (g *Generator) NextWatermarkOut() wmb.Watermark {
	return g.nextWmOut
}

// Sender returns the sender of the generator.
func (g *Generator) Sender() publish.Sender {
	return g.sender
}
