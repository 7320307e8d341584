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
	"time"

	"go.uber.org/zap"

	"github.com/numaproj/numawindow/pkg/shared/util"
	"github.com/numaproj/numawindow/pkg/window/policy"
	"github.com/numaproj/numawindow/pkg/window/tracker"
)

// EvictPartitions applies the partition eviction policy now. Insert does the same after every tuple, an operator
// calls it to age out the partitions of an idle window.
func (w *Window) EvictPartitions(ctx context.Context) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if err := w.evictPartitions(ctx, w.opts.clock.Now()); err != nil {
		return err
	}
	w.updateGauges()
	return nil
}

func (w *Window) evictPartitions(ctx context.Context, now time.Time) error {
	pe := w.cfg.PartitionEviction
	if pe == nil || len(w.partitions) == 0 {
		return nil
	}

	switch pe.When() {
	case policy.PartitionAge:
		var candidates []*Partition
		for _, key := range w.order {
			p := w.partitions[key]
			if now.Sub(p.lastTouched) >= pe.Age() {
				candidates = append(candidates, p)
			}
		}
		if len(candidates) == 0 {
			return nil
		}
		if pe.How() == policy.OperatorDefined {
			return w.evictSelected(ctx, candidates, len(candidates))
		}
		sortLRU(candidates)
		for _, p := range candidates {
			if err := w.evictPartition(ctx, p); err != nil {
				return err
			}
		}
	case policy.PartitionCount:
		excess := len(w.partitions) - pe.Count()
		if excess <= 0 {
			return nil
		}
		if pe.How() == policy.OperatorDefined {
			return w.evictSelected(ctx, w.livePartitions(), excess)
		}
		lru := w.livePartitions()
		sortLRU(lru)
		for _, p := range lru[:excess] {
			if err := w.evictPartition(ctx, p); err != nil {
				return err
			}
		}
	case policy.TupleCount:
		excess := w.tupleCount - pe.Count()
		if excess <= 0 {
			return nil
		}
		if pe.How() == policy.OperatorDefined {
			return w.evictSelected(ctx, w.livePartitions(), excess)
		}
		lru := w.livePartitions()
		sortLRU(lru)
		for _, p := range lru {
			if w.tupleCount <= pe.Count() {
				break
			}
			if err := w.evictPartition(ctx, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// livePartitions returns the partitions in creation order.
func (w *Window) livePartitions() []*Partition {
	out := make([]*Partition, 0, len(w.order))
	for _, key := range w.order {
		out = append(out, w.partitions[key])
	}
	return out
}

// evictSelected asks the victim selector which candidates to evict and evicts exactly those.
func (w *Window) evictSelected(ctx context.Context, candidates []*Partition, excess int) error {
	var victims []string
	err := tracker.Scope(ctx, w, func(ctx context.Context) error {
		var err error
		victims, err = w.opts.victimSelector(ctx, candidates, excess)
		return err
	})
	if err != nil {
		return fmt.Errorf("victim selector of window %s failed: %w", w.name, err)
	}
	keys := make([]string, 0, len(candidates))
	for _, c := range candidates {
		keys = append(keys, c.key)
	}
	for _, v := range victims {
		if !util.StringSliceContains(keys, v) {
			return fmt.Errorf("%w: victim selector of window %s returned %q which is not a candidate", ErrUnknownPartition, w.name, v)
		}
	}
	for _, v := range victims {
		p, ok := w.partitions[v]
		if !ok {
			// returned twice
			continue
		}
		if err := w.evictPartition(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// evictPartition reports the partition with its records and destroys it.
func (w *Window) evictPartition(ctx context.Context, p *Partition) error {
	records := p.Records()
	w.log.Debugw("Evicting partition", zap.String("key", p.key), zap.Int("records", len(records)), zap.Time("lastTouched", p.lastTouched))
	if err := w.emit(ctx, &Event{Type: PartitionEviction, PartitionKey: p.key, Records: records}); err != nil {
		return err
	}
	w.destroy(p.key)
	tuplesEvicted.WithLabelValues(append(w.metricLabels, reasonPartitionEvi)...).Add(float64(len(records)))
	return nil
}
