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

package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/numaproj/numawindow/pkg/shared/clients/redis"
	"github.com/numaproj/numawindow/pkg/shared/kvs"
	"github.com/numaproj/numawindow/pkg/shared/util"
)

func newTestClient(t *testing.T) *redisclient.RedisClient {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is not set, skipping redis tests")
	}
	return redisclient.NewRedisClientFromAddrs(addr, "", "")
}

func TestNewKVRedisStore_EmptyBucket(t *testing.T) {
	_, err := NewKVRedisStore(context.Background(), "", redisclient.NewRedisClientFromAddrs("localhost:0", "", ""))
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	client := newTestClient(t)
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bucket := "kv-test-" + util.RandomLowerCaseString(8)
	defer func() { _ = client.DeleteKeys(ctx, bucket) }()

	store, err := NewKVRedisStore(ctx, bucket, client)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, bucket, store.GetStoreName())

	_, err = store.GetValue(ctx, "missing")
	assert.True(t, errors.Is(err, kvs.ErrKeyNotFound))
	assert.True(t, errors.Is(store.DeleteKey(ctx, "missing"), kvs.ErrKeyNotFound))

	watchCtx, stopWatch := context.WithCancel(ctx)
	updates := store.Watch(watchCtx)
	// give the subscription time to be established
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, store.PutKV(ctx, "k1", []byte("v1")))
	v, err := store.GetValue(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	keys, err := store.GetAllKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, keys)

	select {
	case e := <-updates:
		assert.Equal(t, "k1", e.Key())
		assert.Equal(t, kvs.KVPut, e.Operation())
	case <-ctx.Done():
		t.Fatal("timed out waiting for the put event")
	}

	require.NoError(t, store.DeleteKey(ctx, "k1"))
	select {
	case e := <-updates:
		assert.Equal(t, kvs.KVDelete, e.Operation())
	case <-ctx.Done():
		t.Fatal("timed out waiting for the delete event")
	}

	stopWatch()
	for range updates {
	}
}
