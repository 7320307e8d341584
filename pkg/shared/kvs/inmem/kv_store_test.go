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

package inmem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/numaproj/numawindow/pkg/shared/kvs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestInMemStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s, err := NewKVInMemKVStore(ctx, "test-bucket")
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "test-bucket", s.GetStoreName())
	_, err = s.GetValue(ctx, "missing")
	assert.True(t, errors.Is(err, kvs.ErrKeyNotFound))

	value := []byte("v1")
	require.NoError(t, s.PutKV(ctx, "b", value))
	require.NoError(t, s.PutKV(ctx, "a", []byte("v2")))
	// the store owns a copy of the value
	value[0] = 'x'
	got, err := s.GetValue(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	keys, err := s.GetAllKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, s.DeleteKey(ctx, "a"))
	assert.True(t, errors.Is(s.DeleteKey(ctx, "a"), kvs.ErrKeyNotFound))
}

func TestInMemStore_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, err := NewKVInMemKVStore(ctx, "watch-bucket")
	require.NoError(t, err)
	defer s.Close()

	// history is replayed to late watchers
	require.NoError(t, s.PutKV(ctx, "k1", []byte("1")))
	updates := s.Watch(ctx)
	require.NoError(t, s.PutKV(ctx, "k2", []byte("2")))
	require.NoError(t, s.DeleteKey(ctx, "k1"))

	var got []kvs.KVEntry
	timeout := time.After(5 * time.Second)
	for len(got) < 3 {
		select {
		case e := <-updates:
			got = append(got, e)
		case <-timeout:
			t.Fatal("timed out waiting for watch updates")
		}
	}
	assert.Equal(t, "k1", got[0].Key())
	assert.Equal(t, kvs.KVPut, got[0].Operation())
	assert.Equal(t, "k2", got[1].Key())
	assert.Equal(t, kvs.KVDelete, got[2].Operation())

	cancel()
	for range updates {
	}
}

func TestInMemStore_Close(t *testing.T) {
	ctx := context.Background()
	s, err := NewKVInMemKVStore(ctx, "closed")
	require.NoError(t, err)
	updates := s.Watch(ctx)
	s.Close()
	s.Close()
	_, ok := <-updates
	assert.False(t, ok)
	assert.Error(t, s.PutKV(ctx, "k", nil))
}
