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
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisContext is used to pass the context specifically for REDIS operations.
// A cancelled context during SIGTERM or Ctrl-C that is propagated down will throw a context cancelled error because
// redis uses context to obtain connection from the connection pool. Checkpoint commits and watermark publishes use the
// below no-op context to finish in-flight operations started before the cancellation.
var RedisContext = context.Background()

// RedisClient datatype to hold redis client attributes.
type RedisClient struct {
	Client redis.UniversalClient
}

// NewRedisClient returns a new Redis Client.
func NewRedisClient(options *redis.UniversalOptions) *RedisClient {
	client := new(RedisClient)
	client.Client = redis.NewUniversalClient(options)
	return client
}

// NewRedisClientFromAddrs returns a new Redis Client for a comma separated address list. A sentinel master name
// switches the client to failover mode.
func NewRedisClientFromAddrs(addrs string, masterName string, password string) *RedisClient {
	opts := &redis.UniversalOptions{
		Addrs:      strings.Split(addrs, ","),
		MasterName: masterName,
		Password:   password,
	}
	return NewRedisClient(opts)
}

// DeleteKeys deletes a redis keys
func (cl *RedisClient) DeleteKeys(ctx context.Context, keys ...string) error {
	return cl.Client.Del(ctx, keys...).Err()
}

// Ping checks the connectivity to the redis server.
func (cl *RedisClient) Ping(ctx context.Context) error {
	return cl.Client.Ping(ctx).Err()
}

// Close closes the underlying client and its connection pool.
func (cl *RedisClient) Close() error {
	return cl.Client.Close()
}
