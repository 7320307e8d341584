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

package kvstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/numaproj/numawindow/pkg/checkpoint"
	"github.com/numaproj/numawindow/pkg/shared/kvs/inmem"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newStore(t *testing.T) checkpoint.Store {
	kv, err := inmem.NewKVInMemKVStore(context.Background(), "checkpoints")
	require.NoError(t, err)
	return NewKVCheckpointStore(context.Background(), kv, checkpoint.WithCommitBackoff(wait.Backoff{Steps: 1}))
}

func TestKVCheckpointStore_CommitAndOpen(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	defer func() { _ = s.Close() }()

	_, err := s.LatestID(ctx)
	assert.True(t, errors.Is(err, checkpoint.ErrCheckpointNotFound))
	_, err = s.Open(ctx, "c1")
	assert.True(t, errors.Is(err, checkpoint.ErrCheckpointNotFound))

	b, err := s.Begin(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, b.Write("w/0", []byte("state")))
	require.NoError(t, b.Commit())
	require.NoError(t, b.Wait())

	latest, err := s.LatestID(ctx)
	require.NoError(t, err)
	assert.Equal(t, checkpoint.ID("c1"), latest)

	ob, err := s.Open(ctx, "c1")
	require.NoError(t, err)
	v, err := ob.Read("w/0")
	require.NoError(t, err)
	assert.Equal(t, []byte("state"), v)

	// overwrite a key of the existing checkpoint, the other keys survive
	require.NoError(t, ob.Write("w/1", []byte("more")))
	require.NoError(t, ob.Commit())
	require.NoError(t, ob.Wait())

	ob2, err := s.Open(ctx, "c1")
	require.NoError(t, err)
	for k, want := range map[string]string{"w/0": "state", "w/1": "more"} {
		got, err := ob2.Read(k)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
	require.NoError(t, ob2.Abort())
}

func TestKVCheckpointStore_AbortedBatchIsNotVisible(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	defer func() { _ = s.Close() }()

	b, err := s.Begin(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, b.Write("k", []byte("v")))
	require.NoError(t, b.Abort())

	_, err = s.Open(ctx, "c1")
	assert.True(t, errors.Is(err, checkpoint.ErrCheckpointNotFound))
}

func TestKVCheckpointStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	defer func() { _ = s.Close() }()

	for _, id := range []checkpoint.ID{"c1", "c2"} {
		b, err := s.Begin(ctx, id)
		require.NoError(t, err)
		require.NoError(t, b.Commit())
		require.NoError(t, b.Wait())
	}

	require.NoError(t, s.Delete(ctx, "c1"))
	latest, err := s.LatestID(ctx)
	require.NoError(t, err)
	assert.Equal(t, checkpoint.ID("c2"), latest)

	require.NoError(t, s.Delete(ctx, "c2"))
	_, err = s.LatestID(ctx)
	assert.True(t, errors.Is(err, checkpoint.ErrCheckpointNotFound))

	assert.True(t, errors.Is(s.Delete(ctx, "c2"), checkpoint.ErrCheckpointNotFound))
}

func TestKVCheckpointStore_DataStoreFailure(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	b, err := s.Begin(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, b.Write("k", []byte("v")))
	// a closed bucket refuses writes
	require.NoError(t, s.Close())
	require.NoError(t, b.Commit())
	err = b.Wait()
	require.Error(t, err)
	assert.True(t, checkpoint.IsDataStoreErr(err))
}
