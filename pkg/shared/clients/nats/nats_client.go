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

package nats

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/numaproj/numawindow/pkg/shared/logging"
)

// Client is a client for NATS server which is shared by the KV stores (watermark buckets, checkpoint buckets).
type Client struct {
	sync.Mutex
	nc  *nats.Conn
	log *zap.SugaredLogger
}

// NewNATSClient creates a new NATS client connected to the given url.
func NewNATSClient(ctx context.Context, url string, natsOptions ...nats.Option) (*Client, error) {
	log := logging.FromContext(ctx)
	opts := []nats.Option{
		// Enable Nats auto reconnect
		// if max reconnects is set to -1, it will try to reconnect forever
		nats.MaxReconnects(-1),
		// every three seconds we will try to ping the server, if we don't get a pong back
		// after two attempts, we will consider the connection lost and try to reconnect
		nats.PingInterval(3 * time.Second),
		nats.MaxPingsOutstanding(2),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Errorw("Nats default: error occurred for subscription", zap.Error(err))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("Nats default: connection closed")
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Errorw("Nats default: disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("Nats default: reconnected")
		}),
		// Write (and flush) timeout
		nats.FlusherTimeout(10 * time.Second),
	}
	opts = append(opts, natsOptions...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats url=%s: %w", url, err)
	}
	return &Client{nc: nc, log: log}, nil
}

// BindKVStore lookup and bind to an existing KeyValue store and return the KeyValue interface
func (c *Client) BindKVStore(kvName string) (nats.KeyValue, error) {
	jsContext, err := c.nc.JetStream()
	if err != nil {
		return nil, err
	}
	return jsContext.KeyValue(kvName)
}

// CreateKVStore creates the KeyValue bucket if it does not exist yet and binds to it.
func (c *Client) CreateKVStore(kvName string, history uint8) (nats.KeyValue, error) {
	c.Lock()
	defer c.Unlock()
	jsContext, err := c.nc.JetStream()
	if err != nil {
		return nil, err
	}
	if kv, err := jsContext.KeyValue(kvName); err == nil {
		return kv, nil
	}
	return jsContext.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:  kvName,
		History: history,
		Storage: nats.FileStorage,
	})
}

// Close closes the NATS client
func (c *Client) Close() {
	c.nc.Close()
}

// NewTestClient creates a new NATS client for testing
// only use this for testing
func NewTestClient(t *testing.T, url string) *Client {
	t.Helper()
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("failed to connect to nats: %v", err)
	}
	return &Client{nc: nc, log: zap.NewNop().Sugar()}
}

// NewTestClientWithServer is used to get a testing NATS client instance connected to the given server.
func NewTestClientWithServer(t *testing.T, s *server.Server) *Client {
	return NewTestClient(t, s.ClientURL())
}
