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

package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/numaproj/numawindow/pkg/shared/kvs"
	"github.com/numaproj/numawindow/pkg/shared/logging"
	"github.com/numaproj/numawindow/pkg/watermark/wmb"
)

// kvSender publishes the watermark of an entity as a WMB value under the entity key of a KV bucket.
type kvSender struct {
	ctx    context.Context
	entity string
	store  kvs.KVStorer
	opts   *options
	// sendLock serializes the publications, head can be read without it.
	sendLock sync.Mutex
	// head is the last published watermark in epoch milliseconds.
	head   *atomic.Int64
	offset *atomic.Int64
	log    *zap.SugaredLogger
}

var _ Sender = (*kvSender)(nil)

// NewKVSender returns a Sender publishing to the given store. A random entity name is used if entity is empty. If
// the store already holds a watermark for the entity, publishing resumes from it.
func NewKVSender(ctx context.Context, store kvs.KVStorer, entity string, opts ...Option) Sender {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if entity == "" {
		entity = uuid.New().String()
	}
	s := &kvSender{
		ctx:    ctx,
		entity: entity,
		store:  store,
		opts:   o,
		head:   atomic.NewInt64(wmb.InitialWatermark.UnixMilli()),
		offset: atomic.NewInt64(0),
		log:    logging.FromContext(ctx).With("entity", entity).With("store", store.GetStoreName()),
	}
	s.loadLatestFromStore()
	s.log.Info("Created a new watermark sender")
	return s
}

// loadLatestFromStore loads the last published watermark of the entity, it is absent on the first start.
func (s *kvSender) loadLatestFromStore() {
	value, err := s.store.GetValue(s.ctx, s.entity)
	if errors.Is(err, kvs.ErrKeyNotFound) {
		return
	}
	if err != nil {
		s.log.Warnw("Unable to load the latest watermark from the store", zap.Error(err))
		return
	}
	v, err := wmb.DecodeToWMB(value)
	if err != nil {
		s.log.Errorw("Unable to decode the latest watermark in the store", zap.Error(err))
		return
	}
	s.head.Store(v.ToWatermark().UnixMilli())
	s.offset.Store(v.Offset)
	s.log.Infow("Resuming from the latest watermark in the store", zap.String("watermark", v.ToWatermark().String()), zap.Int64("offset", v.Offset))
}

// SendWatermark publishes wm and retries the put with the configured backoff. The head watermark moves only after
// a successful put.
func (s *kvSender) SendWatermark(ctx context.Context, wm wmb.Watermark) error {
	s.sendLock.Lock()
	defer s.sendLock.Unlock()

	head := s.head.Load()
	if wm.UnixMilli() <= head {
		watermarksSkipped.WithLabelValues(s.store.GetStoreName(), s.entity).Inc()
		s.log.Debugw("Skip publishing the watermark because it does not advance the head watermark", zap.Int64("head", head), zap.Int64("new", wm.UnixMilli()))
		return nil
	}
	if err := s.put(ctx, wmb.WMB{Watermark: wm.UnixMilli()}); err != nil {
		return fmt.Errorf("failed to publish watermark %s of %s: %w", wm, s.entity, err)
	}
	s.head.Store(wm.UnixMilli())
	headWatermark.WithLabelValues(s.store.GetStoreName(), s.entity).Set(float64(wm.UnixMilli()))
	s.log.Debugw("New watermark published", zap.Int64("head", head), zap.Int64("new", wm.UnixMilli()))
	return nil
}

func (s *kvSender) put(ctx context.Context, v wmb.WMB) error {
	v.Offset = s.offset.Inc()
	value, err := v.EncodeToBytes()
	if err != nil {
		return err
	}
	var lastErr error
	err = wait.ExponentialBackoffWithContext(ctx, s.opts.retryBackoff, func(ctx context.Context) (bool, error) {
		if lastErr = s.store.PutKV(ctx, s.entity, value); lastErr != nil {
			publishErrors.WithLabelValues(s.store.GetStoreName(), s.entity).Inc()
			s.log.Errorw("Unable to publish watermark", zap.Int64("offset", v.Offset), zap.Error(lastErr))
			return false, nil
		}
		return true, nil
	})
	if err != nil && lastErr != nil {
		return lastErr
	}
	if err == nil {
		watermarksPublished.WithLabelValues(s.store.GetStoreName(), s.entity).Inc()
	}
	return err
}

// Watermark returns the head watermark.
func (s *kvSender) Watermark() wmb.Watermark {
	return wmb.FromUnixMilli(s.head.Load())
}

func (s *kvSender) IsInactive() bool {
	return s.Watermark().IsInactive()
}

// SetInactive publishes an idle WMB for the entity. Later watermarks never advance it.
func (s *kvSender) SetInactive() {
	s.sendLock.Lock()
	defer s.sendLock.Unlock()
	if s.IsInactive() {
		return
	}
	s.head.Store(wmb.InactiveWatermark.UnixMilli())
	if err := s.put(s.ctx, wmb.WMB{Idle: true, Watermark: wmb.InactiveWatermark.UnixMilli()}); err != nil {
		s.log.Errorw("Unable to publish the inactive watermark", zap.Error(err))
		return
	}
	s.log.Info("Output is no longer event-time aware")
}

// Close removes the entity from the bucket unless it should be kept. The store is closed by its owner.
func (s *kvSender) Close() error {
	s.log.Info("Closing watermark sender")
	headWatermark.DeleteLabelValues(s.store.GetStoreName(), s.entity)
	if !s.opts.deleteOnClose {
		return nil
	}
	if err := s.store.DeleteKey(s.ctx, s.entity); err != nil && !errors.Is(err, kvs.ErrKeyNotFound) {
		s.log.Errorw("Failed to delete the key of the entity", zap.Error(err))
		return err
	}
	return nil
}
