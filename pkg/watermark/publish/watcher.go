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
	"fmt"

	"go.uber.org/zap"

	"github.com/numaproj/numawindow/pkg/shared/kvs"
	"github.com/numaproj/numawindow/pkg/shared/logging"
	"github.com/numaproj/numawindow/pkg/watermark/wmb"
)

// Watcher delivers the watermarks published to a KV bucket by the upstream entities to a Handler.
type Watcher struct {
	store   kvs.KVStorer
	ports   map[string]int
	handler Handler
	log     *zap.SugaredLogger
}

// NewWatcher returns a Watcher which maps every upstream entity of the store to an input port. Entities that are
// not in ports are ignored.
func NewWatcher(ctx context.Context, store kvs.KVStorer, ports map[string]int, handler Handler) *Watcher {
	p := make(map[string]int, len(ports))
	for entity, port := range ports {
		p[entity] = port
	}
	return &Watcher{
		store:   store,
		ports:   p,
		handler: handler,
		log:     logging.FromContext(ctx).With("store", store.GetStoreName()),
	}
}

// Run watches the store until the context is done or the store is closed. It returns the first handler error.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info("Watching for upstream watermarks")
	updates := w.store.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-updates:
			if !ok {
				w.log.Info("Watermark watch stopped")
				return nil
			}
			if err := w.handle(ctx, entry); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) handle(ctx context.Context, entry kvs.KVEntry) error {
	port, ok := w.ports[entry.Key()]
	if !ok {
		w.log.Debugw("Ignoring the watermark of an unknown entity", zap.String("entity", entry.Key()))
		return nil
	}
	switch entry.Operation() {
	case kvs.KVPut:
		v, err := wmb.DecodeToWMB(entry.Value())
		if err != nil {
			w.log.Errorw("Unable to decode the watermark", zap.String("entity", entry.Key()), zap.Error(err))
			return nil
		}
		if err = w.handler.HandleWatermark(ctx, port, v.ToWatermark()); err != nil {
			return fmt.Errorf("failed to handle the watermark of %s on port %d: %w", entry.Key(), port, err)
		}
	case kvs.KVDelete, kvs.KVPurge:
		// the port keeps the last watermark of the entity
		w.log.Infow("Upstream entity is gone", zap.String("entity", entry.Key()), zap.Int("port", port))
	}
	return nil
}
