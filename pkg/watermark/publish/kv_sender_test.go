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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/goleak"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/numaproj/numawindow/pkg/shared/kvs"
	"github.com/numaproj/numawindow/pkg/shared/kvs/inmem"
	"github.com/numaproj/numawindow/pkg/watermark/wmb"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var noRetry = WithRetryBackoff(wait.Backoff{Steps: 1})

func newInMemStore(t *testing.T) kvs.KVStorer {
	kv, err := inmem.NewKVInMemKVStore(context.Background(), "watermarks")
	require.NoError(t, err)
	t.Cleanup(kv.Close)
	return kv
}

func storedWMB(t *testing.T, kv kvs.KVStorer, entity string) wmb.WMB {
	value, err := kv.GetValue(context.Background(), entity)
	require.NoError(t, err)
	v, err := wmb.DecodeToWMB(value)
	require.NoError(t, err)
	return v
}

// failingStore fails every put.
type failingStore struct {
	kvs.KVStorer
	puts *atomic.Int32
}

var errPut = errors.New("bucket unavailable")

func (f failingStore) PutKV(context.Context, string, []byte) error {
	f.puts.Inc()
	return errPut
}

func TestKVSender_SendWatermark(t *testing.T) {
	ctx := context.Background()
	kv := newInMemStore(t)
	s := NewKVSender(ctx, kv, "op-0", noRetry)
	assert.True(t, s.Watermark().IsInitial())

	require.NoError(t, s.SendWatermark(ctx, wmb.FromUnixMilli(1000)))
	require.NoError(t, s.SendWatermark(ctx, wmb.FromUnixMilli(2000)))
	// neither older nor equal watermarks are published
	require.NoError(t, s.SendWatermark(ctx, wmb.FromUnixMilli(1500)))
	require.NoError(t, s.SendWatermark(ctx, wmb.FromUnixMilli(2000)))

	assert.Equal(t, int64(2000), s.Watermark().UnixMilli())
	v := storedWMB(t, kv, "op-0")
	assert.Equal(t, wmb.WMB{Offset: 2, Watermark: 2000}, v)
	assert.False(t, s.IsInactive())

	require.NoError(t, s.Close())
	_, err := kv.GetValue(ctx, "op-0")
	assert.True(t, errors.Is(err, kvs.ErrKeyNotFound))
}

func TestKVSender_Retry(t *testing.T) {
	ctx := context.Background()
	puts := atomic.NewInt32(0)
	store := failingStore{KVStorer: newInMemStore(t), puts: puts}
	s := NewKVSender(ctx, store, "op-0", WithRetryBackoff(wait.Backoff{Steps: 3, Duration: time.Millisecond, Factor: 1}))

	err := s.SendWatermark(ctx, wmb.FromUnixMilli(1000))
	assert.True(t, errors.Is(err, errPut))
	assert.Equal(t, int32(3), puts.Load())
	// the head does not move
	assert.True(t, s.Watermark().IsInitial())
}

func TestKVSender_ResumeFromStore(t *testing.T) {
	ctx := context.Background()
	kv := newInMemStore(t)
	s := NewKVSender(ctx, kv, "op-0", noRetry, WithKeepOnClose())
	require.NoError(t, s.SendWatermark(ctx, wmb.FromUnixMilli(5000)))
	require.NoError(t, s.Close())

	s2 := NewKVSender(ctx, kv, "op-0", noRetry)
	assert.Equal(t, int64(5000), s2.Watermark().UnixMilli())
	require.NoError(t, s2.SendWatermark(ctx, wmb.FromUnixMilli(4000)))
	require.NoError(t, s2.SendWatermark(ctx, wmb.FromUnixMilli(6000)))
	assert.Equal(t, wmb.WMB{Offset: 2, Watermark: 6000}, storedWMB(t, kv, "op-0"))
	require.NoError(t, s2.Close())
}

func TestKVSender_SetInactive(t *testing.T) {
	ctx := context.Background()
	kv := newInMemStore(t)
	s := NewKVSender(ctx, kv, "op-0", noRetry)
	require.NoError(t, s.SendWatermark(ctx, wmb.FromUnixMilli(1000)))

	s.SetInactive()
	assert.True(t, s.IsInactive())
	assert.True(t, s.Watermark().IsInactive())
	v := storedWMB(t, kv, "op-0")
	assert.True(t, v.Idle)
	assert.True(t, v.ToWatermark().IsInactive())

	require.NoError(t, s.SendWatermark(ctx, wmb.FromUnixMilli(2000)))
	assert.True(t, s.IsInactive())
	require.NoError(t, s.Close())
}

func TestKVSender_GeneratedEntity(t *testing.T) {
	ctx := context.Background()
	kv := newInMemStore(t)
	s := NewKVSender(ctx, kv, "", noRetry, WithKeepOnClose())
	require.NoError(t, s.SendWatermark(ctx, wmb.FromUnixMilli(1)))
	keys, err := kv.GetAllKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Len(t, keys[0], 36)
	require.NoError(t, s.Close())
}

func TestLocalSender(t *testing.T) {
	ctx := context.Background()
	s := NewLocalSender()
	assert.True(t, s.Watermark().IsInitial())
	require.NoError(t, s.SendWatermark(ctx, wmb.FromUnixMilli(-3000)))
	assert.Equal(t, int64(-3000), s.Watermark().UnixMilli())
	require.NoError(t, s.SendWatermark(ctx, wmb.FromUnixMilli(10)))
	require.NoError(t, s.SendWatermark(ctx, wmb.FromUnixMilli(5)))
	assert.Equal(t, int64(10), s.Watermark().UnixMilli())
	s.SetInactive()
	assert.True(t, s.IsInactive())
	require.NoError(t, s.Close())
}
