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

package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/numaproj/numawindow/pkg/shared/logging"
)

type batchState int32

const (
	stateOpen batchState = iota
	stateCommitting
	stateCommitted
	stateAborted
)

func (s batchState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateCommitting:
		return "committing"
	case stateCommitted:
		return "committed"
	case stateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// StagedBatch keeps the writes in memory until Commit, then hands the encoded checkpoint to a CommitFunc.
// Stores build their batches on it.
type StagedBatch struct {
	ctx    context.Context
	id     ID
	store  string
	base   map[string][]byte
	commit CommitFunc
	opts   *options

	sync.RWMutex
	staged map[string][]byte
	state  *atomic.Int32
	doneCh chan struct{}
	result error
	log    *zap.SugaredLogger
}

var _ Batch = (*StagedBatch)(nil)

// NewStagedBatch returns a batch which reads through to base and commits with the given function.
func NewStagedBatch(ctx context.Context, id ID, store string, base map[string][]byte, commit CommitFunc, opts ...Option) *StagedBatch {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if base == nil {
		base = make(map[string][]byte)
	}
	return &StagedBatch{
		ctx:    ctx,
		id:     id,
		store:  store,
		base:   base,
		commit: commit,
		opts:   o,
		staged: make(map[string][]byte),
		state:  atomic.NewInt32(int32(stateOpen)),
		doneCh: make(chan struct{}),
		log:    logging.FromContext(ctx).With("store", store, "checkpoint", string(id)),
	}
}

// ID returns the checkpoint ID.
func (b *StagedBatch) ID() ID {
	return b.id
}

func (b *StagedBatch) currentState() batchState {
	return batchState(b.state.Load())
}

// Write stages a copy of the value.
func (b *StagedBatch) Write(key string, value []byte) error {
	b.Lock()
	defer b.Unlock()
	if b.currentState() != stateOpen {
		return ErrBatchClosed
	}
	v := make([]byte, len(value))
	copy(v, value)
	b.staged[key] = v
	return nil
}

// Read returns the staged value, or the value of the base checkpoint.
func (b *StagedBatch) Read(key string) ([]byte, error) {
	b.RLock()
	defer b.RUnlock()
	if b.currentState() == stateAborted {
		return nil, ErrBatchClosed
	}
	if v, ok := b.staged[key]; ok {
		return v, nil
	}
	if v, ok := b.base[key]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
}

// Commit encodes the base and the staged writes into one checkpoint and starts the commit in the background.
func (b *StagedBatch) Commit() error {
	b.Lock()
	defer b.Unlock()
	if !b.state.CompareAndSwap(int32(stateOpen), int32(stateCommitting)) {
		return ErrBatchClosed
	}
	merged := make(map[string][]byte, len(b.base)+len(b.staged))
	for k, v := range b.base {
		merged[k] = v
	}
	for k, v := range b.staged {
		merged[k] = v
	}
	blob, err := Encode(merged)
	if err != nil {
		b.result = fmt.Errorf("failed to encode checkpoint %s: %w", b.id, err)
		b.state.Store(int32(stateCommitted))
		close(b.doneCh)
		return b.result
	}
	go b.runCommit(blob)
	return nil
}

func (b *StagedBatch) runCommit(blob []byte) {
	defer close(b.doneCh)
	start := time.Now()
	var lastErr error
	err := wait.ExponentialBackoffWithContext(b.ctx, b.opts.commitBackoff, func(ctx context.Context) (bool, error) {
		if lastErr = b.commit(ctx, b.id, blob); lastErr != nil {
			commitErrors.WithLabelValues(b.store).Inc()
			b.log.Errorw("Failed to commit checkpoint, retrying", zap.Error(lastErr))
			return false, nil
		}
		return true, nil
	})
	if lastErr != nil {
		err = lastErr
	}
	if err == nil {
		commitDuration.WithLabelValues(b.store).Observe(time.Since(start).Seconds())
		commitBytes.WithLabelValues(b.store).Add(float64(len(blob)))
		b.log.Debugw("Committed checkpoint", zap.Int("bytes", len(blob)))
	}
	b.Lock()
	b.result = err
	b.state.Store(int32(stateCommitted))
	b.Unlock()
}

// Abort drops the staged writes. Aborting a committing or committed batch fails.
func (b *StagedBatch) Abort() error {
	b.Lock()
	defer b.Unlock()
	if !b.state.CompareAndSwap(int32(stateOpen), int32(stateAborted)) {
		return fmt.Errorf("%w: batch is %s", ErrBatchClosed, b.currentState())
	}
	b.staged = nil
	abortedBatches.WithLabelValues(b.store).Inc()
	return nil
}

// Wait blocks until the commit finishes and returns its result.
func (b *StagedBatch) Wait() error {
	switch b.currentState() {
	case stateOpen:
		return ErrBatchNotCommitted
	case stateAborted:
		return ErrBatchClosed
	}
	<-b.doneCh
	b.RLock()
	defer b.RUnlock()
	return b.result
}
