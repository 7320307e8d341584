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
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/numaproj/numawindow/pkg/checkpoint"
	"github.com/numaproj/numawindow/pkg/shared/util"
)

// CheckpointKey returns the key the window state is written under.
func (w *Window) CheckpointKey() string {
	return fmt.Sprintf("window-%d-%s", w.port, util.KeyHash(w.name))
}

// Checkpoint writes the complete state of the window to the batch. The caller commits the batch.
func (w *Window) Checkpoint(_ context.Context, batch checkpoint.Batch) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	data, err := newEncoder().encodeState(w)
	if err != nil {
		return fmt.Errorf("failed to encode the state of window %s: %w", w.name, err)
	}
	if err = batch.Write(w.CheckpointKey(), data); err != nil {
		return fmt.Errorf("failed to checkpoint window %s: %w", w.name, err)
	}
	w.log.Debugw("Checkpointed window", zap.Int("partitions", len(w.partitions)), zap.Int("tuples", w.tupleCount), zap.Int("bytes", len(data)))
	return nil
}

// Restore replaces the state of the window with the state in the batch. No events are reported.
func (w *Window) Restore(_ context.Context, batch checkpoint.Batch) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	data, err := batch.Read(w.CheckpointKey())
	if errors.Is(err, checkpoint.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNoCheckpoint, w.name)
	}
	if err != nil {
		return fmt.Errorf("failed to restore window %s: %w", w.name, err)
	}
	st, err := newDecoder().decodeState(data)
	if err != nil {
		return fmt.Errorf("failed to decode the state of window %s: %w", w.name, err)
	}
	if Type(st.header.WindowType) != w.cfg.Type || int(st.header.EvictionKind) != int(w.cfg.Eviction.Kind()) {
		return fmt.Errorf("state of window %s was written by a %s window with %d eviction, the window is %s", w.name,
			Type(st.header.WindowType), st.header.EvictionKind, w.cfg)
	}

	w.partitions = make(map[string]*Partition, len(st.partitions))
	w.order = make([]string, 0, len(st.partitions))
	w.tupleCount = 0
	for _, p := range st.partitions {
		w.partitions[p.key] = p
		w.order = append(w.order, p.key)
		w.tupleCount += len(p.records)
	}
	w.nextSeq = st.header.NextSeq
	w.nextPartSeq = st.header.NextPartSeq
	w.watermark = st.watermark
	w.updateGauges()
	w.log.Infow("Restored window", zap.Int("partitions", len(w.partitions)), zap.Int("tuples", w.tupleCount), zap.String("watermark", w.watermark.String()))
	return nil
}
