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
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/numaproj/numawindow/pkg/window/policy"
)

const (
	reasonEviction     = "eviction"
	reasonFlush        = "flush"
	reasonPartitionEvi = "partition_eviction"
)

// Insert buffers the tuple in its partition. Depending on the policies this evicts records, fires the trigger,
// flushes the partition and evicts partitions, reporting every step to the handlers.
func (w *Window) Insert(ctx context.Context, t Tuple) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	now := w.opts.clock.Now()
	eviction := w.cfg.Eviction

	if w.cfg.Type == Tumbling && eviction.Kind() == policy.EventTime {
		start := eviction.BucketStart(t.EventTime)
		end := start.Add(eviction.Interval())
		if !w.watermark.IsInitial() && !w.watermark.Before(end) {
			w.log.Debugw("Late tuple", zap.Time("eventTime", t.EventTime), zap.Time("bucketEnd", end), zap.String("watermark", w.watermark.String()))
			lateTuples.WithLabelValues(w.metricLabels...).Inc()
			tc := t
			return w.emit(ctx, &Event{Type: LateTuple, PartitionKey: t.PartitionKey(), Tuple: &tc, BucketStart: start, BucketEnd: end})
		}
	}

	var attr float64
	if w.attribute != nil {
		var err error
		if attr, err = w.attribute(t); err != nil {
			return fmt.Errorf("failed to extract the delta attribute of the tuple: %w", err)
		}
	}

	key := t.PartitionKey()
	_, existed := w.partitions[key]
	p := w.partitionFor(key, now)
	tc := t
	if err := w.emit(ctx, &Event{Type: BeforeTupleInsertion, PartitionKey: key, Tuple: &tc}); err != nil {
		w.dropIfNew(key, p, existed)
		return err
	}

	if err := w.evictBeforeInsert(ctx, p, attr, now); err != nil {
		w.dropIfNew(key, p, existed)
		return err
	}

	r := &Record{Tuple: t, Seq: w.nextSeq, InsertedAt: now, Attribute: attr}
	w.nextSeq++
	if len(p.records) == 0 {
		p.openedAt = now
	}
	p.records = append(p.records, r)
	p.touch(now, r.Seq)
	w.tupleCount++
	tuplesInserted.WithLabelValues(w.metricLabels...).Inc()
	if err := w.emit(ctx, &Event{Type: AfterTupleInsertion, PartitionKey: key, Tuple: &tc, Records: []*Record{r}}); err != nil {
		return err
	}

	if err := w.afterInsert(ctx, p, attr, now); err != nil {
		return err
	}
	if err := w.evictPartitions(ctx, now); err != nil {
		return err
	}
	w.updateGauges()
	return nil
}

// dropIfNew removes a partition created for a tuple that was never inserted.
func (w *Window) dropIfNew(key string, p *Partition, existed bool) {
	if existed || len(p.records) > 0 || w.partitions[key] != p {
		return
	}
	w.destroy(key)
	w.updateGauges()
}

// evictBeforeInsert makes room for the new record according to the eviction policy.
func (w *Window) evictBeforeInsert(ctx context.Context, p *Partition, attr float64, now time.Time) error {
	eviction := w.cfg.Eviction
	if w.cfg.Type == Sliding {
		switch eviction.Kind() {
		case policy.Count:
			for len(p.records) >= eviction.Count() {
				if err := w.evictRecord(ctx, p, 0); err != nil {
					return err
				}
			}
		case policy.Delta:
			for i := 0; i < len(p.records); {
				if math.Abs(p.records[i].Attribute-attr) > eviction.Delta() {
					if err := w.evictRecord(ctx, p, i); err != nil {
						return err
					}
					continue
				}
				i++
			}
		case policy.Time:
			return w.evictExpired(ctx, p, now)
		}
		return nil
	}

	if len(p.records) == 0 {
		return nil
	}
	switch eviction.Kind() {
	case policy.Delta:
		if math.Abs(p.records[0].Attribute-attr) > eviction.Delta() {
			return w.flush(ctx, p, now)
		}
	case policy.Time:
		if now.Sub(p.openedAt) >= eviction.Interval() {
			return w.flush(ctx, p, now)
		}
	}
	return nil
}

// evictExpired evicts the records of a sliding time window inserted more than the interval ago.
func (w *Window) evictExpired(ctx context.Context, p *Partition, now time.Time) error {
	horizon := now.Add(-w.cfg.Eviction.Interval())
	for len(p.records) > 0 && p.records[0].InsertedAt.Before(horizon) {
		if err := w.evictRecord(ctx, p, 0); err != nil {
			return err
		}
	}
	return nil
}

// evictRecord evicts one record of a sliding window.
func (w *Window) evictRecord(ctx context.Context, p *Partition, i int) error {
	r := p.records[i]
	if err := w.emit(ctx, &Event{Type: BeforeTupleEviction, PartitionKey: p.key, Records: []*Record{r}}); err != nil {
		return err
	}
	p.removeAt(i)
	w.tupleCount--
	tuplesEvicted.WithLabelValues(append(w.metricLabels, reasonEviction)...).Inc()
	return w.emit(ctx, &Event{Type: AfterTupleEviction, PartitionKey: p.key, Records: []*Record{r}})
}

// afterInsert fires the trigger of a sliding window, or flushes a full tumbling count window.
func (w *Window) afterInsert(ctx context.Context, p *Partition, attr float64, now time.Time) error {
	if w.cfg.Type == Tumbling {
		if w.cfg.Eviction.Kind() == policy.Count && len(p.records) >= w.cfg.Eviction.Count() {
			return w.flush(ctx, p, now)
		}
		return nil
	}

	if w.cfg.Eviction.Kind() == policy.Count && !p.initialFull && len(p.records) == w.cfg.Eviction.Count() {
		p.initialFull = true
		if err := w.emit(ctx, &Event{Type: WindowInitialFull, PartitionKey: p.key, Records: p.Records()}); err != nil {
			return err
		}
	}

	trigger := w.cfg.Trigger
	if trigger == nil {
		return nil
	}
	fire := false
	switch trigger.Kind() {
	case policy.Count:
		p.sinceTrigger++
		if p.sinceTrigger >= trigger.Count() {
			p.sinceTrigger = 0
			fire = true
		}
	case policy.Delta:
		if !p.hasTriggerRef {
			p.hasTriggerRef = true
			p.triggerRef = attr
		} else if math.Abs(attr-p.triggerRef) > trigger.Delta() {
			p.triggerRef = attr
			fire = true
		}
	case policy.Time:
		fire = w.timeTriggerDue(p, now)
	}
	if !fire {
		return nil
	}
	return w.emit(ctx, &Event{Type: WindowTrigger, PartitionKey: p.key, Records: p.Records()})
}

func (w *Window) timeTriggerDue(p *Partition, now time.Time) bool {
	if now.Sub(p.lastTrigger) >= w.cfg.Trigger.Interval() {
		p.lastTrigger = now
		return true
	}
	return false
}

// flush empties the partition of a tumbling window. The partition itself stays.
func (w *Window) flush(ctx context.Context, p *Partition, now time.Time) error {
	records := p.Records()
	if err := w.emit(ctx, &Event{Type: BeforeWindowFlush, PartitionKey: p.key, Records: records}); err != nil {
		return err
	}
	w.tupleCount -= len(p.records)
	p.records = p.records[:0]
	p.openedAt = now
	tuplesEvicted.WithLabelValues(append(w.metricLabels, reasonFlush)...).Add(float64(len(records)))
	w.log.Debugw("Flushed partition", zap.String("key", p.key), zap.Int("records", len(records)))
	return w.emit(ctx, &Event{Type: AfterWindowFlush, PartitionKey: p.key, Records: records})
}

// Tick applies the time policies at the current clock time without an insert: it evicts the expired records of a
// sliding time window, fires the due time triggers and flushes the due partitions of a tumbling time window.
// Operators call it periodically, the window has no timer of its own.
func (w *Window) Tick(ctx context.Context) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	now := w.opts.clock.Now()
	for _, key := range w.Keys() {
		p, ok := w.partitions[key]
		if !ok {
			continue
		}
		switch {
		case w.cfg.Type == Sliding && w.cfg.Eviction.Kind() == policy.Time:
			if err := w.evictExpired(ctx, p, now); err != nil {
				return err
			}
		case w.cfg.Type == Tumbling && w.cfg.Eviction.Kind() == policy.Time:
			if len(p.records) > 0 && now.Sub(p.openedAt) >= w.cfg.Eviction.Interval() {
				if err := w.flush(ctx, p, now); err != nil {
					return err
				}
			}
		}
		if w.cfg.Type == Sliding && w.cfg.Trigger != nil && w.cfg.Trigger.Kind() == policy.Time && len(p.records) > 0 {
			if w.timeTriggerDue(p, now) {
				if err := w.emit(ctx, &Event{Type: WindowTrigger, PartitionKey: p.key, Records: p.Records()}); err != nil {
					return err
				}
			}
		}
	}
	w.updateGauges()
	return nil
}
