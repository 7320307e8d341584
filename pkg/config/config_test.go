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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/numawindow/pkg/watermark/generator"
	"github.com/numaproj/numawindow/pkg/watermark/publish"
	"github.com/numaproj/numawindow/pkg/watermark/wmb"
	"github.com/numaproj/numawindow/pkg/window"
	"github.com/numaproj/numawindow/pkg/window/policy"
)

const slidingYAML = `
operator:
  name: prices
  inputPorts: 2
  multiThreadedOnInput: true
window:
  name: avg
  type: sliding
  eviction:
    kind: delta
    attribute: payload.price
    delta: 2.5
  trigger:
    kind: count
    count: 10
  partitionEviction:
    when: partitionAge
    how: lru
    age: 1m
watermark:
  lag: 2s
  minGap: 500ms
checkpoint:
  store:
    kind: memory
`

type nopSender struct {
	publish.Sender
}

func (nopSender) SendWatermark(context.Context, wmb.Watermark) error {
	return nil
}

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "numawindow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	conf, err := Load(writeConfig(t, slidingYAML))
	require.NoError(t, err)

	assert.Equal(t, "prices", conf.Operator.Name)
	assert.Equal(t, 2, conf.Operator.InputPorts)
	assert.True(t, conf.Operator.MultiThreadedOnInput)
	assert.Equal(t, 2*time.Second, conf.Watermark.Lag)
	assert.Equal(t, 500*time.Millisecond, conf.Watermark.MinGap)
	assert.Equal(t, StoreNone, conf.Watermark.Store.Kind)
	assert.Equal(t, StoreMemory, conf.Checkpoint.Store.Kind)
	assert.Equal(t, "checkpoints", conf.Checkpoint.Store.Bucket)

	cfg, opts, err := conf.WindowConfig()
	require.NoError(t, err)
	assert.Len(t, opts, 1)
	assert.Equal(t, window.Sliding, cfg.Type)
	assert.Equal(t, policy.Delta, cfg.Eviction.Kind())
	assert.Equal(t, "payload.price", cfg.Eviction.Attribute())
	assert.Equal(t, 2.5, cfg.Eviction.Delta())
	require.NotNil(t, cfg.Trigger)
	assert.Equal(t, 10, cfg.Trigger.Count())
	require.NotNil(t, cfg.PartitionEviction)
	assert.Equal(t, policy.PartitionAge, cfg.PartitionEviction.When())
	assert.Equal(t, time.Minute, cfg.PartitionEviction.Age())

	g, err := generator.New(context.Background(), &nopSender{}, conf.GeneratorOptions()...)
	require.NoError(t, err)
	assert.True(t, time.Time(g.WatermarkFor(time.Unix(10, 0))).Equal(time.Unix(8, 0)))
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("NUMAWINDOW_WATERMARK_LAG", "3s")
	t.Setenv("NUMAWINDOW_OPERATOR_NAME", "from-env")
	conf, err := Load(writeConfig(t, slidingYAML))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, conf.Watermark.Lag)
	assert.Equal(t, "from-env", conf.Operator.Name)
}

func TestLoad_Tumbling(t *testing.T) {
	conf, err := Load(writeConfig(t, `
window:
  type: tumbling
  eviction:
    kind: eventTime
    interval: 1m
    offset: 10s
`))
	require.NoError(t, err)
	assert.Equal(t, "numawindow", conf.Operator.Name)
	assert.Equal(t, 1, conf.Operator.InputPorts)
	cfg, opts, err := conf.WindowConfig()
	require.NoError(t, err)
	assert.Empty(t, opts)
	assert.Equal(t, window.Tumbling, cfg.Type)
	assert.Equal(t, time.Minute, cfg.Eviction.Interval())
	assert.Equal(t, 10*time.Second, cfg.Eviction.Offset())
	assert.Nil(t, cfg.Trigger)
	assert.Nil(t, cfg.PartitionEviction)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"no eviction":        "window:\n  type: sliding\n",
		"unknown type":       "window:\n  type: hopping\n  eviction:\n    kind: count\n    count: 1\n",
		"zero count":         "window:\n  eviction:\n    kind: count\n    count: 0\n",
		"negative lag":       "window:\n  eviction:\n    kind: count\n    count: 1\nwatermark:\n  lag: -1s\n",
		"unknown store":      "window:\n  eviction:\n    kind: count\n    count: 1\ncheckpoint:\n  store:\n    kind: s3\n",
		"fs without dir":     "window:\n  eviction:\n    kind: count\n    count: 1\ncheckpoint:\n  store:\n    kind: fs\n",
		"fs watermarks":      "window:\n  eviction:\n    kind: count\n    count: 1\nwatermark:\n  store:\n    kind: fs\n    dir: /tmp\n",
		"redis without addr": "window:\n  eviction:\n    kind: count\n    count: 1\ncheckpoint:\n  store:\n    kind: redis\n",
		"bad partition when": "window:\n  eviction:\n    kind: count\n    count: 1\n  partitionEviction:\n    when: sometimes\n",
		"no ports":           "operator:\n  inputPorts: 0\nwindow:\n  eviction:\n    kind: count\n    count: 1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}

	_, err := Load("")
	assert.Error(t, err)
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	conf, err := Load(writeConfig(t, slidingYAML))
	require.NoError(t, err)

	sender, closeSender, err := conf.WatermarkSender(ctx)
	require.NoError(t, err)
	defer closeSender()
	require.NoError(t, sender.SendWatermark(ctx, wmb.FromUnixMilli(10)))
	assert.Equal(t, int64(10), sender.Watermark().UnixMilli())

	store, closeStore, err := conf.CheckpointStore(ctx)
	require.NoError(t, err)
	defer closeStore()
	require.NotNil(t, store)
	b, err := store.Begin(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, b.Write("k", []byte("v")))
	require.NoError(t, b.Commit())
	require.NoError(t, b.Wait())
	latest, err := store.LatestID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c1", string(latest))

	conf.Checkpoint.Store = StoreConfig{Kind: StoreFS, Dir: t.TempDir()}
	fsStore, closeFS, err := conf.CheckpointStore(ctx)
	require.NoError(t, err)
	require.NotNil(t, fsStore)
	closeFS()

	conf.Checkpoint.Store = StoreConfig{Kind: StoreNone}
	none, closeNone, err := conf.CheckpointStore(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)
	closeNone()

	_, _, err = StoreConfig{Kind: StoreFS}.OpenKV(ctx)
	assert.Error(t, err)
}

func TestLoadGlobalConfig(t *testing.T) {
	path := writeConfig(t, slidingYAML)
	g, err := LoadGlobalConfig(path, func(error) {})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, g.Get().Watermark.Lag)

	updated := strings.Replace(slidingYAML, "lag: 2s", "lag: 5s", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	assert.Eventually(t, func() bool { return g.Get().Watermark.Lag == 5*time.Second }, 5*time.Second, 20*time.Millisecond)
}
