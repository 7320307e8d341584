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

/*
Package jetstream package implements the kv store and watcher using Jetstream.
*/
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	jsclient "github.com/numaproj/numawindow/pkg/shared/clients/nats"
	"github.com/numaproj/numawindow/pkg/shared/kvs"
	"github.com/numaproj/numawindow/pkg/shared/logging"
)

// jetStreamStore implements the KV store backed up by Jetstream.
type jetStreamStore struct {
	ctx    context.Context
	kvName string
	client *jsclient.Client
	kv     nats.KeyValue
	doneCh chan struct{}

	log  *zap.SugaredLogger
	opts *options
}

var _ kvs.KVStorer = (*jetStreamStore)(nil)

// NewKVJetStreamKVStore returns KVJetStreamStore.
func NewKVJetStreamKVStore(ctx context.Context, kvName string, client *jsclient.Client, opts ...Option) (kvs.KVStorer, error) {
	kvOpts := defaultOptions()
	for _, o := range opts {
		o(kvOpts)
	}

	var (
		kvStore nats.KeyValue
		err     error
	)
	if kvOpts.createBucket {
		kvStore, err = client.CreateKVStore(kvName, kvOpts.history)
	} else {
		kvStore, err = client.BindKVStore(kvName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to bind kv store: %w", err)
	}

	return &jetStreamStore{
		ctx:    ctx,
		kvName: kvName,
		kv:     kvStore,
		client: client,
		opts:   kvOpts,
		doneCh: make(chan struct{}),
		log:    logging.FromContext(ctx).With("kvName", kvName),
	}, nil
}

// GetAllKeys returns all the keys in the key-value store.
func (jss *jetStreamStore) GetAllKeys(_ context.Context) ([]string, error) {
	keys, err := jss.kv.Keys()
	if errors.Is(err, nats.ErrNoKeysFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// GetValue returns the value for a given key.
func (jss *jetStreamStore) GetValue(_ context.Context, k string) ([]byte, error) {
	keyValueEntry, err := jss.kv.Get(k)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", kvs.ErrKeyNotFound, k)
	}
	if err != nil {
		return nil, err
	}
	return keyValueEntry.Value(), nil
}

// GetStoreName returns the store name.
func (jss *jetStreamStore) GetStoreName() string {
	return jss.kv.Bucket()
}

// DeleteKey deletes the key from the JS key-value store.
func (jss *jetStreamStore) DeleteKey(_ context.Context, k string) error {
	// will return error if nats connection is closed
	err := jss.kv.Delete(k)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", kvs.ErrKeyNotFound, k)
	}
	return err
}

// PutKV puts an element to the JS key-value store.
func (jss *jetStreamStore) PutKV(_ context.Context, k string, v []byte) error {
	// will return error if nats connection is closed
	_, err := jss.kv.Put(k, v)
	return err
}

// Watch watches the key-value store (aka bucket) and returns the updates channel to read the updates on the KV store.
func (jss *jetStreamStore) Watch(ctx context.Context) <-chan kvs.KVEntry {
	var updates = make(chan kvs.KVEntry)
	go func() {
		defer close(updates)
		// if kvWatcher is nil, it means the context is done
		kvWatcher := jss.newWatcher(ctx)
		for kvWatcher != nil {
			select {
			case <-ctx.Done():
				jss.log.Infow("stopping WatchAll", zap.String("watcher", jss.kvName))
				jss.stopWatcher(kvWatcher)
				return
			case <-jss.doneCh:
				jss.log.Infow("Stopping WatchAll", zap.String("watcher", jss.kvName))
				jss.stopWatcher(kvWatcher)
				return
			case value, ok := <-kvWatcher.Updates():
				if !ok {
					// the channel is closed but the context is not done yet, meaning there could be an auto
					// reconnection to JetStream, therefore recreate the watcher.
					jss.stopWatcher(kvWatcher)
					kvWatcher = jss.newWatcher(ctx)
					continue
				}
				// nil marks the end of the initial values
				if value == nil {
					continue
				}
				var op kvs.KVWatchOp
				switch value.Operation() {
				case nats.KeyValuePut:
					op = kvs.KVPut
				case nats.KeyValueDelete:
					op = kvs.KVDelete
				case nats.KeyValuePurge:
					op = kvs.KVPurge
				}
				jss.log.Debugw("Received a value from the watcher", zap.String("key", value.Key()), zap.String("op", op.String()))
				select {
				case updates <- kvs.Entry{K: value.Key(), V: value.Value(), Op: op}:
				case <-ctx.Done():
					jss.stopWatcher(kvWatcher)
					return
				case <-jss.doneCh:
					jss.stopWatcher(kvWatcher)
					return
				}
			}
		}
	}()
	return updates
}

// newWatcher creates a new watcher for the key-value store. It keeps retrying until the context is done.
func (jss *jetStreamStore) newWatcher(ctx context.Context) nats.KeyWatcher {
	for {
		kvWatcher, err := jss.kv.WatchAll(nats.Context(ctx))
		if err == nil {
			jss.log.Infow("Successfully created watcher", zap.String("watcher", jss.kvName))
			return kvWatcher
		}
		jss.log.Errorw("Creating watcher failed", zap.String("watcher", jss.kvName), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-jss.doneCh:
			return nil
		case <-time.After(jss.opts.watcherRetryInterval):
		}
	}
}

func (jss *jetStreamStore) stopWatcher(w nats.KeyWatcher) {
	if err := w.Stop(); err != nil {
		jss.log.Warnw("Failed to stop the watcher", zap.String("watcher", jss.kvName), zap.Error(err))
	}
}

// Close we don't need to close the JetStream connection. It will be closed by the caller.
// give the signal to watchers to stop watching
func (jss *jetStreamStore) Close() {
	select {
	case <-jss.doneCh:
	default:
		close(jss.doneCh)
	}
}
