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

package config

import (
	"context"
	"fmt"

	"github.com/numaproj/numawindow/pkg/checkpoint"
	ckptfs "github.com/numaproj/numawindow/pkg/checkpoint/fs"
	"github.com/numaproj/numawindow/pkg/checkpoint/kvstore"
	jsclient "github.com/numaproj/numawindow/pkg/shared/clients/nats"
	redisclient "github.com/numaproj/numawindow/pkg/shared/clients/redis"
	"github.com/numaproj/numawindow/pkg/shared/kvs"
	"github.com/numaproj/numawindow/pkg/shared/kvs/inmem"
	"github.com/numaproj/numawindow/pkg/shared/kvs/jetstream"
	kvsredis "github.com/numaproj/numawindow/pkg/shared/kvs/redis"
	"github.com/numaproj/numawindow/pkg/watermark/publish"
)

// OpenKV opens the KV bucket of the store. The returned function closes the bucket and its client.
func (sc StoreConfig) OpenKV(ctx context.Context) (kvs.KVStorer, func(), error) {
	switch sc.Kind {
	case StoreMemory:
		kv, err := inmem.NewKVInMemKVStore(ctx, sc.Bucket)
		if err != nil {
			return nil, nil, err
		}
		return kv, kv.Close, nil
	case StoreJetStream:
		client, err := jsclient.NewNATSClient(ctx, sc.URL)
		if err != nil {
			return nil, nil, err
		}
		kv, err := jetstream.NewKVJetStreamKVStore(ctx, sc.Bucket, client, jetstream.WithCreateBucket(1))
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return kv, func() {
			kv.Close()
			client.Close()
		}, nil
	case StoreRedis:
		client := redisclient.NewRedisClientFromAddrs(sc.Addrs, sc.MasterName, sc.Password)
		kv, err := kvsredis.NewKVRedisStore(ctx, sc.Bucket, client)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return kv, func() {
			kv.Close()
			_ = client.Close()
		}, nil
	}
	return nil, nil, fmt.Errorf("store kind %q has no KV bucket", sc.Kind)
}

// CheckpointStore opens the checkpoint store. It returns a nil store if checkpointing is disabled.
func (c *Config) CheckpointStore(ctx context.Context, opts ...checkpoint.Option) (checkpoint.Store, func(), error) {
	sc := c.Checkpoint.Store
	switch sc.Kind {
	case "", StoreNone:
		return nil, func() {}, nil
	case StoreFS:
		s, err := ckptfs.NewFSCheckpointStore(ctx, sc.Dir, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	kv, closeKV, err := sc.OpenKV(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open the checkpoint store: %w", err)
	}
	s := kvstore.NewKVCheckpointStore(ctx, kv, opts...)
	return s, func() {
		_ = s.Close()
		closeKV()
	}, nil
}

// WatermarkSender returns the sender of the output watermark. Without a store the watermark is only kept locally.
func (c *Config) WatermarkSender(ctx context.Context, opts ...publish.Option) (publish.Sender, func(), error) {
	sc := c.Watermark.Store
	switch sc.Kind {
	case "", StoreNone:
		s := publish.NewLocalSender()
		return s, func() { _ = s.Close() }, nil
	}
	kv, closeKV, err := sc.OpenKV(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open the watermark store: %w", err)
	}
	entity := c.Watermark.Entity
	if entity == "" {
		entity = c.Operator.Name
	}
	s := publish.NewKVSender(ctx, kv, entity, opts...)
	return s, func() {
		_ = s.Close()
		closeKV()
	}, nil
}
