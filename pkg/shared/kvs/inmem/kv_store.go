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
Package inmem implements the KV store in memory. It is used for tests and for single process deployments where
watermarks and checkpoints do not have to survive the process.
*/
package inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/numaproj/numawindow/pkg/shared/kvs"
	"github.com/numaproj/numawindow/pkg/shared/logging"
)

// inMemStore implements the KV store backed up by in mem store.
type inMemStore struct {
	bucketName string
	kv         map[string][]byte
	lock       sync.RWMutex
	// kvHistory is an ever growing list of operations, replayed to every new watcher.
	kvHistory []kvs.KVEntry
	// updated is closed and replaced on every operation to wake up the watchers.
	updated  chan struct{}
	isClosed bool
	doneCh   chan struct{}
	log      *zap.SugaredLogger
}

var _ kvs.KVStorer = (*inMemStore)(nil)

// NewKVInMemKVStore returns inMemStore.
func NewKVInMemKVStore(ctx context.Context, bucketName string) (kvs.KVStorer, error) {
	s := &inMemStore{
		bucketName: bucketName,
		kv:         make(map[string][]byte),
		kvHistory:  make([]kvs.KVEntry, 0),
		updated:    make(chan struct{}),
		doneCh:     make(chan struct{}),
		log:        logging.FromContext(ctx).With("bucketName", bucketName),
	}
	return s, nil
}

// GetAllKeys returns all the keys in the key-value store.
func (kv *inMemStore) GetAllKeys(_ context.Context) ([]string, error) {
	kv.lock.RLock()
	defer kv.lock.RUnlock()
	var keys []string
	for key := range kv.kv {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// GetValue returns the value for a given key.
func (kv *inMemStore) GetValue(_ context.Context, k string) ([]byte, error) {
	kv.lock.RLock()
	defer kv.lock.RUnlock()
	if val, ok := kv.kv[k]; ok {
		out := make([]byte, len(val))
		copy(out, val)
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", kvs.ErrKeyNotFound, k)
}

// GetStoreName returns the store name.
func (kv *inMemStore) GetStoreName() string {
	return kv.bucketName
}

// DeleteKey deletes the key from the in mem key-value store.
func (kv *inMemStore) DeleteKey(_ context.Context, k string) error {
	kv.lock.Lock()
	defer kv.lock.Unlock()
	val, ok := kv.kv[k]
	if !ok {
		return fmt.Errorf("%w: %s", kvs.ErrKeyNotFound, k)
	}
	delete(kv.kv, k)
	kv.appendHistory(kvs.Entry{K: k, V: val, Op: kvs.KVDelete})
	return nil
}

// PutKV puts an element to the in mem key-value store.
func (kv *inMemStore) PutKV(_ context.Context, k string, v []byte) error {
	kv.lock.Lock()
	defer kv.lock.Unlock()
	if kv.isClosed {
		return fmt.Errorf("kv store %s is closed", kv.bucketName)
	}
	var val = make([]byte, len(v))
	copy(val, v)
	kv.kv[k] = val
	kv.appendHistory(kvs.Entry{K: k, V: val, Op: kvs.KVPut})
	return nil
}

// appendHistory records the operation and wakes up the watchers. Caller holds the write lock.
func (kv *inMemStore) appendHistory(e kvs.KVEntry) {
	kv.kvHistory = append(kv.kvHistory, e)
	close(kv.updated)
	kv.updated = make(chan struct{})
}

// Watch replays the history of the store and then streams every new operation until the context is done or the
// store is closed.
func (kv *inMemStore) Watch(ctx context.Context) <-chan kvs.KVEntry {
	var updates = make(chan kvs.KVEntry)
	go func() {
		defer close(updates)
		cursor := 0
		for {
			kv.lock.RLock()
			pending := kv.kvHistory[cursor:]
			wake := kv.updated
			kv.lock.RUnlock()

			for _, e := range pending {
				select {
				case updates <- e:
				case <-ctx.Done():
					kv.log.Infow("stopping watching", zap.String("watcher", kv.bucketName))
					return
				case <-kv.doneCh:
					return
				}
			}
			cursor += len(pending)
			if len(pending) > 0 {
				continue
			}

			select {
			case <-wake:
			case <-ctx.Done():
				kv.log.Infow("stopping watching", zap.String("watcher", kv.bucketName))
				return
			case <-kv.doneCh:
				return
			}
		}
	}()
	return updates
}

// Close closes the in mem key-value store. It will close all the watchers.
func (kv *inMemStore) Close() {
	kv.lock.Lock()
	defer kv.lock.Unlock()
	if kv.isClosed {
		return
	}
	kv.isClosed = true
	close(kv.doneCh)
}
