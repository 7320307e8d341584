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
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/numaproj/numawindow/pkg/watermark/wmb"
	"github.com/numaproj/numawindow/pkg/window/policy"
)

// Punctuate handles a punctuation of the input stream. A punctuation tumbling window flushes and destroys all its
// partitions, or reports EmptyWindowPunct when nothing is buffered. Other windows ignore punctuations.
func (w *Window) Punctuate(ctx context.Context) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if w.cfg.Type != Tumbling || w.cfg.Eviction.Kind() != policy.Punctuation {
		return nil
	}
	if w.tupleCount == 0 {
		if err := w.emit(ctx, &Event{Type: EmptyWindowPunct}); err != nil {
			return err
		}
		for _, key := range w.Keys() {
			w.destroy(key)
		}
		w.updateGauges()
		return nil
	}
	now := w.opts.clock.Now()
	for _, key := range w.Keys() {
		p := w.partitions[key]
		if len(p.records) > 0 {
			if err := w.flush(ctx, p, now); err != nil {
				return err
			}
		}
		w.destroy(key)
	}
	w.updateGauges()
	return nil
}

// OnWatermark advances the watermark of the window. An event time window flushes every bucket that ends at or
// before the watermark, oldest bucket first, and destroys the partitions left empty. Watermarks that do not advance
// are ignored.
func (w *Window) OnWatermark(ctx context.Context, wm wmb.Watermark) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if !wm.AfterWatermark(w.watermark) {
		w.log.Debugw("Ignoring watermark that does not advance", zap.String("watermark", wm.String()), zap.String("current", w.watermark.String()))
		return nil
	}
	w.watermark = wm
	if w.cfg.Type != Tumbling || w.cfg.Eviction.Kind() != policy.EventTime {
		return nil
	}

	eviction := w.cfg.Eviction
	starts := make(map[int64]time.Time)
	for _, p := range w.partitions {
		for _, r := range p.records {
			start := eviction.BucketStart(r.EventTime)
			if !wm.Before(start.Add(eviction.Interval())) {
				starts[start.UnixNano()] = start
			}
		}
	}
	ordered := make([]time.Time, 0, len(starts))
	for _, s := range starts {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	for _, start := range ordered {
		end := start.Add(eviction.Interval())
		for _, key := range w.Keys() {
			if err := w.flushBucket(ctx, w.partitions[key], start, end); err != nil {
				return err
			}
		}
	}
	for _, key := range w.Keys() {
		if len(w.partitions[key].records) == 0 {
			w.destroy(key)
		}
	}
	w.updateGauges()
	return nil
}

// flushBucket flushes the records of the partition in the event time bucket [start, end).
func (w *Window) flushBucket(ctx context.Context, p *Partition, start, end time.Time) error {
	var bucket []*Record
	for _, r := range p.records {
		if w.cfg.Eviction.BucketStart(r.EventTime).Equal(start) {
			bucket = append(bucket, r)
		}
	}
	if len(bucket) == 0 {
		return nil
	}
	if err := w.emit(ctx, &Event{Type: BeforeWindowFlush, PartitionKey: p.key, Records: bucket, BucketStart: start, BucketEnd: end}); err != nil {
		return err
	}
	kept := p.records[:0]
	for _, r := range p.records {
		if !w.cfg.Eviction.BucketStart(r.EventTime).Equal(start) {
			kept = append(kept, r)
		}
	}
	for i := len(kept); i < len(p.records); i++ {
		p.records[i] = nil
	}
	p.records = kept
	w.tupleCount -= len(bucket)
	tuplesEvicted.WithLabelValues(append(w.metricLabels, reasonFlush)...).Add(float64(len(bucket)))
	return w.emit(ctx, &Event{Type: AfterWindowFlush, PartitionKey: p.key, Records: bucket, BucketStart: start, BucketEnd: end})
}

// Flush flushes the partition of a tumbling window regardless of its policy, e.g. at operator shutdown.
func (w *Window) Flush(ctx context.Context, key string) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if w.cfg.Type != Tumbling {
		return fmt.Errorf("flush of partition %q: only tumbling windows can be flushed", key)
	}
	p, ok := w.partitions[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPartition, key)
	}
	if len(p.records) == 0 {
		return nil
	}
	if err := w.flush(ctx, p, w.opts.clock.Now()); err != nil {
		return err
	}
	w.updateGauges()
	return nil
}
