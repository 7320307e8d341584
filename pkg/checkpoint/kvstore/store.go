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

// Package kvstore stores checkpoints in a KV bucket. A checkpoint is one value, which makes the commit atomic on
// every KV backend. Once the checkpoint value is written, the "latest" key is moved to it.
package kvstore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/numaproj/numawindow/pkg/checkpoint"
	"github.com/numaproj/numawindow/pkg/shared/kvs"
	"github.com/numaproj/numawindow/pkg/shared/logging"
	"github.com/numaproj/numawindow/pkg/shared/util"
)

const (
	latestKey       = "latest"
	checkpointKeyPx = "checkpoint-"
)

type kvCheckpointStore struct {
	kv   kvs.KVStorer
	opts []checkpoint.Option
	log  *zap.SugaredLogger
}

var _ checkpoint.Store = (*kvCheckpointStore)(nil)

// NewKVCheckpointStore returns a checkpoint store over the KV bucket. The store owns the bucket handle and closes it.
func NewKVCheckpointStore(ctx context.Context, kv kvs.KVStorer, opts ...checkpoint.Option) checkpoint.Store {
	return &kvCheckpointStore{
		kv:   kv,
		opts: opts,
		log:  logging.FromContext(ctx).With("store", kv.GetStoreName()),
	}
}

func checkpointKey(id checkpoint.ID) string {
	return checkpointKeyPx + util.KeyHash(string(id))
}

func (s *kvCheckpointStore) dataStoreErr(op string, err error) error {
	return checkpoint.DataStoreErr{Store: s.kv.GetStoreName(), Op: op, Err: err}
}

// Begin returns an empty batch.
func (s *kvCheckpointStore) Begin(ctx context.Context, id checkpoint.ID) (checkpoint.Batch, error) {
	return checkpoint.NewStagedBatch(ctx, id, s.kv.GetStoreName(), nil, s.commit, s.opts...), nil
}

// Open returns a batch over the committed checkpoint.
func (s *kvCheckpointStore) Open(ctx context.Context, id checkpoint.ID) (checkpoint.Batch, error) {
	blob, err := s.kv.GetValue(ctx, checkpointKey(id))
	if errors.Is(err, kvs.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", checkpoint.ErrCheckpointNotFound, id)
	}
	if err != nil {
		return nil, s.dataStoreErr("get", err)
	}
	entries, err := checkpoint.Decode(blob)
	if err != nil {
		return nil, s.dataStoreErr("decode", err)
	}
	return checkpoint.NewStagedBatch(ctx, id, s.kv.GetStoreName(), entries, s.commit, s.opts...), nil
}

func (s *kvCheckpointStore) commit(ctx context.Context, id checkpoint.ID, blob []byte) error {
	if err := s.kv.PutKV(ctx, checkpointKey(id), blob); err != nil {
		return s.dataStoreErr("put", err)
	}
	if err := s.kv.PutKV(ctx, latestKey, []byte(id)); err != nil {
		return s.dataStoreErr("put", err)
	}
	s.log.Debugw("Checkpoint committed", zap.String("checkpoint", string(id)), zap.Int("bytes", len(blob)))
	return nil
}

// LatestID returns the last committed checkpoint.
func (s *kvCheckpointStore) LatestID(ctx context.Context) (checkpoint.ID, error) {
	v, err := s.kv.GetValue(ctx, latestKey)
	if errors.Is(err, kvs.ErrKeyNotFound) {
		return "", checkpoint.ErrCheckpointNotFound
	}
	if err != nil {
		return "", s.dataStoreErr("get", err)
	}
	return checkpoint.ID(v), nil
}

// Delete deletes the checkpoint, and the latest pointer if it points to it.
func (s *kvCheckpointStore) Delete(ctx context.Context, id checkpoint.ID) error {
	err := s.kv.DeleteKey(ctx, checkpointKey(id))
	if errors.Is(err, kvs.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", checkpoint.ErrCheckpointNotFound, id)
	}
	if err != nil {
		return s.dataStoreErr("delete", err)
	}
	latest, err := s.LatestID(ctx)
	if errors.Is(err, checkpoint.ErrCheckpointNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if latest == id {
		if err := s.kv.DeleteKey(ctx, latestKey); err != nil && !errors.Is(err, kvs.ErrKeyNotFound) {
			return s.dataStoreErr("delete", err)
		}
	}
	return nil
}

// Close closes the bucket handle.
func (s *kvCheckpointStore) Close() error {
	s.kv.Close()
	return nil
}
