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

// Package redis implements the kv store and watcher on top of Redis. A bucket is one Redis hash, updates are
// fanned out on the "<bucket>.updates" pub/sub channel.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	redisclient "github.com/numaproj/numawindow/pkg/shared/clients/redis"
	"github.com/numaproj/numawindow/pkg/shared/kvs"
	"github.com/numaproj/numawindow/pkg/shared/logging"
)

// update is the pub/sub payload announcing a change in the bucket.
type update struct {
	Op    kvs.KVWatchOp `json:"op"`
	Key   string        `json:"key"`
	Value []byte        `json:"value,omitempty"`
}

// redisStore implements the KV store backed up by a Redis hash.
type redisStore struct {
	bucket    string
	client    *redisclient.RedisClient
	doneCh    chan struct{}
	closeOnce sync.Once
	log       *zap.SugaredLogger
}

var _ kvs.KVStorer = (*redisStore)(nil)

// NewKVRedisStore returns a KV store over the given bucket (hash) name.
func NewKVRedisStore(ctx context.Context, bucket string, client *redisclient.RedisClient) (kvs.KVStorer, error) {
	if bucket == "" {
		return nil, fmt.Errorf("empty bucket name")
	}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach redis for bucket %q: %w", bucket, err)
	}
	return &redisStore{
		bucket: bucket,
		client: client,
		doneCh: make(chan struct{}),
		log:    logging.FromContext(ctx).With("kvName", bucket, "backend", "redis"),
	}, nil
}

func (rs *redisStore) updatesChannel() string {
	return rs.bucket + ".updates"
}

// GetAllKeys returns all the keys in the bucket.
func (rs *redisStore) GetAllKeys(_ context.Context) ([]string, error) {
	keys, err := rs.client.Client.HKeys(redisclient.RedisContext, rs.bucket).Result()
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// GetValue returns the value for a given key.
func (rs *redisStore) GetValue(_ context.Context, k string) ([]byte, error) {
	val, err := rs.client.Client.HGet(redisclient.RedisContext, rs.bucket, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", kvs.ErrKeyNotFound, k)
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// GetStoreName returns the bucket name.
func (rs *redisStore) GetStoreName() string {
	return rs.bucket
}

// PutKV sets the key in the hash and announces the change within the same transaction.
func (rs *redisStore) PutKV(_ context.Context, k string, v []byte) error {
	payload, err := json.Marshal(update{Op: kvs.KVPut, Key: k, Value: v})
	if err != nil {
		return err
	}
	_, err = rs.client.Client.TxPipelined(redisclient.RedisContext, func(pipe redis.Pipeliner) error {
		pipe.HSet(redisclient.RedisContext, rs.bucket, k, v)
		pipe.Publish(redisclient.RedisContext, rs.updatesChannel(), payload)
		return nil
	})
	return err
}

// DeleteKey removes the key from the hash and announces the deletion.
func (rs *redisStore) DeleteKey(_ context.Context, k string) error {
	payload, err := json.Marshal(update{Op: kvs.KVDelete, Key: k})
	if err != nil {
		return err
	}
	var deleted *redis.IntCmd
	_, err = rs.client.Client.TxPipelined(redisclient.RedisContext, func(pipe redis.Pipeliner) error {
		deleted = pipe.HDel(redisclient.RedisContext, rs.bucket, k)
		pipe.Publish(redisclient.RedisContext, rs.updatesChannel(), payload)
		return nil
	})
	if err != nil {
		return err
	}
	if deleted.Val() == 0 {
		return fmt.Errorf("%w: %s", kvs.ErrKeyNotFound, k)
	}
	return nil
}

// Watch subscribes to the update channel of the bucket. Only changes made after the subscription are delivered.
func (rs *redisStore) Watch(ctx context.Context) <-chan kvs.KVEntry {
	updates := make(chan kvs.KVEntry)
	sub := rs.client.Client.Subscribe(ctx, rs.updatesChannel())
	go func() {
		defer close(updates)
		defer func() {
			if err := sub.Close(); err != nil {
				rs.log.Warnw("Failed to close the subscription", zap.Error(err))
			}
		}()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-rs.doneCh:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var u update
				if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
					rs.log.Errorw("Failed to decode the update", zap.String("payload", msg.Payload), zap.Error(err))
					continue
				}
				select {
				case updates <- kvs.Entry{K: u.Key, V: u.Value, Op: u.Op}:
				case <-ctx.Done():
					return
				case <-rs.doneCh:
					return
				}
			}
		}
	}()
	return updates
}

// Close signals the watchers to stop. The client is owned by the caller.
func (rs *redisStore) Close() {
	rs.closeOnce.Do(func() {
		close(rs.doneCh)
	})
}
