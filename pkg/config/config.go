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

// Package config loads the configuration of a windowed operator from a YAML file and the NUMAWINDOW_ environment
// variables.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/numaproj/numawindow/pkg/watermark/generator"
	"github.com/numaproj/numawindow/pkg/window"
	"github.com/numaproj/numawindow/pkg/window/policy"
)

// EnvPrefix is the prefix of the environment variables overriding the file, e.g. NUMAWINDOW_WATERMARK_LAG.
const EnvPrefix = "NUMAWINDOW"

// Store kinds.
const (
	StoreNone      = "none"
	StoreMemory    = "memory"
	StoreFS        = "fs"
	StoreJetStream = "jetstream"
	StoreRedis     = "redis"
)

type Config struct {
	Operator   OperatorConfig   `json:"operator"`
	Window     WindowConfig     `json:"window"`
	Watermark  WatermarkConfig  `json:"watermark"`
	Checkpoint CheckpointConfig `json:"checkpoint"`
}

type OperatorConfig struct {
	Name                 string `json:"name"`
	InputPorts           int    `json:"inputPorts"`
	MultiThreadedOnInput bool   `json:"multiThreadedOnInput"`
}

type WindowConfig struct {
	Name              string                   `json:"name"`
	Type              string                   `json:"type"`
	Eviction          PolicyConfig             `json:"eviction"`
	Trigger           *PolicyConfig            `json:"trigger"`
	PartitionEviction *PartitionEvictionConfig `json:"partitionEviction"`
}

// PolicyConfig describes a window policy. Only the fields of the kind are used.
type PolicyConfig struct {
	Kind      string        `json:"kind"`
	Count     int           `json:"count"`
	Attribute string        `json:"attribute"`
	Delta     float64       `json:"delta"`
	Interval  time.Duration `json:"interval"`
	Offset    time.Duration `json:"offset"`
}

type PartitionEvictionConfig struct {
	When  string        `json:"when"`
	How   string        `json:"how"`
	Count int           `json:"count"`
	Age   time.Duration `json:"age"`
}

type WatermarkConfig struct {
	Lag    time.Duration `json:"lag"`
	MinGap time.Duration `json:"minGap"`
	// Entity is the key the watermark is published under.
	Entity string      `json:"entity"`
	Store  StoreConfig `json:"store"`
}

type CheckpointConfig struct {
	Store StoreConfig `json:"store"`
}

// StoreConfig selects a KV bucket or a directory.
type StoreConfig struct {
	Kind   string `json:"kind"`
	Bucket string `json:"bucket"`
	// URL of the NATS server.
	URL string `json:"url"`
	// Addrs is the comma separated list of redis addresses.
	Addrs      string `json:"addrs"`
	MasterName string `json:"masterName"`
	Password   string `json:"password"`
	Dir        string `json:"dir"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("operator.name", "numawindow")
	v.SetDefault("operator.inputPorts", 1)
	v.SetDefault("operator.multiThreadedOnInput", false)
	v.SetDefault("window.name", "")
	v.SetDefault("window.type", window.Sliding.String())
	v.SetDefault("watermark.lag", "0s")
	v.SetDefault("watermark.minGap", "0s")
	v.SetDefault("watermark.entity", "")
	v.SetDefault("watermark.store.kind", StoreNone)
	v.SetDefault("watermark.store.bucket", "watermarks")
	v.SetDefault("watermark.store.url", "")
	v.SetDefault("watermark.store.addrs", "")
	v.SetDefault("checkpoint.store.kind", StoreNone)
	v.SetDefault("checkpoint.store.bucket", "checkpoints")
	v.SetDefault("checkpoint.store.url", "")
	v.SetDefault("checkpoint.store.addrs", "")
	v.SetDefault("checkpoint.store.dir", "")
	return v
}

// Load reads the configuration file and validates it. Without a path only the defaults and the environment are
// used.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load configuration file. %w", err)
		}
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("failed unmarshal configuration file. %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks that every part of the configuration can be built.
func (c *Config) Validate() error {
	if c.Operator.Name == "" {
		return fmt.Errorf("operator name is required")
	}
	if c.Operator.InputPorts <= 0 {
		return fmt.Errorf("operator needs at least one input port, got %d", c.Operator.InputPorts)
	}
	if _, err := c.Window.Build(); err != nil {
		return err
	}
	if c.Watermark.Lag < 0 || c.Watermark.MinGap < 0 {
		return fmt.Errorf("watermark lag and min gap must not be negative")
	}
	if err := c.Watermark.Store.validate(false); err != nil {
		return fmt.Errorf("watermark store: %w", err)
	}
	if err := c.Checkpoint.Store.validate(true); err != nil {
		return fmt.Errorf("checkpoint store: %w", err)
	}
	return nil
}

// WindowConfig returns the window configuration and the options of the window.
func (c *Config) WindowConfig() (window.Config, []window.Option, error) {
	cfg, err := c.Window.Build()
	if err != nil {
		return window.Config{}, nil, err
	}
	var opts []window.Option
	if c.Window.Name != "" {
		opts = append(opts, window.WithName(c.Window.Name))
	}
	return cfg, opts, nil
}

// GeneratorOptions returns the options of the watermark generator.
func (c *Config) GeneratorOptions() []generator.Option {
	return []generator.Option{generator.WithLag(c.Watermark.Lag), generator.WithMinGap(c.Watermark.MinGap)}
}

// Build returns the window configuration.
func (wc WindowConfig) Build() (window.Config, error) {
	t, err := window.ParseType(wc.Type)
	if err != nil {
		return window.Config{}, err
	}
	eviction, err := wc.Eviction.Build()
	if err != nil {
		return window.Config{}, fmt.Errorf("eviction policy: %w", err)
	}
	cfg := window.Config{Type: t, Eviction: eviction}
	if wc.Trigger != nil {
		trigger, err := wc.Trigger.Build()
		if err != nil {
			return window.Config{}, fmt.Errorf("trigger policy: %w", err)
		}
		cfg.Trigger = &trigger
	}
	if wc.PartitionEviction != nil {
		pe, err := wc.PartitionEviction.Build()
		if err != nil {
			return window.Config{}, fmt.Errorf("partition eviction policy: %w", err)
		}
		cfg.PartitionEviction = &pe
	}
	return cfg, nil
}

// Build returns the window policy.
func (pc PolicyConfig) Build() (policy.WindowPolicy, error) {
	kind, err := policy.ParseKind(pc.Kind)
	if err != nil {
		return policy.WindowPolicy{}, err
	}
	switch kind {
	case policy.Count:
		return policy.NewCount(pc.Count)
	case policy.Delta:
		return policy.NewDelta(pc.Attribute, pc.Delta)
	case policy.Punctuation:
		return policy.NewPunctuation(), nil
	case policy.Time:
		return policy.NewTime(pc.Interval)
	case policy.EventTime:
		return policy.NewEventTime(pc.Interval, pc.Offset)
	}
	return policy.WindowPolicy{}, fmt.Errorf("unsupported policy kind %q", pc.Kind)
}

// Build returns the partition eviction policy. The how defaults to lru.
func (pc PartitionEvictionConfig) Build() (policy.PartitionEvictionPolicy, error) {
	when, err := policy.ParseWhen(pc.When)
	if err != nil {
		return policy.PartitionEvictionPolicy{}, err
	}
	how := policy.LRU
	if pc.How != "" {
		if how, err = policy.ParseHow(pc.How); err != nil {
			return policy.PartitionEvictionPolicy{}, err
		}
	}
	switch when {
	case policy.PartitionAge:
		return policy.NewPartitionAge(pc.Age, how)
	case policy.PartitionCount:
		return policy.NewPartitionCount(pc.Count, how)
	case policy.TupleCount:
		return policy.NewTupleCount(pc.Count, how)
	}
	return policy.PartitionEvictionPolicy{}, fmt.Errorf("unsupported partition eviction %q", pc.When)
}

func (sc StoreConfig) validate(allowFS bool) error {
	switch sc.Kind {
	case "", StoreNone, StoreMemory:
		return nil
	case StoreFS:
		if !allowFS {
			return fmt.Errorf("store kind %q is not supported here", sc.Kind)
		}
		if sc.Dir == "" {
			return fmt.Errorf("fs store needs a dir")
		}
	case StoreJetStream:
		if sc.URL == "" || sc.Bucket == "" {
			return fmt.Errorf("jetstream store needs a url and a bucket")
		}
	case StoreRedis:
		if sc.Addrs == "" || sc.Bucket == "" {
			return fmt.Errorf("redis store needs addrs and a bucket")
		}
	default:
		return fmt.Errorf("unknown store kind %q", sc.Kind)
	}
	return nil
}

// GlobalConfig is a configuration that is reloaded when its file changes.
type GlobalConfig struct {
	conf *Config
	lock *sync.RWMutex
}

// Get returns the current configuration.
func (g *GlobalConfig) Get() *Config {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return g.conf
}

// LoadGlobalConfig loads the file and watches it. A changed file that does not load or validate is reported to
// onErrorReloading and the previous configuration stays.
func LoadGlobalConfig(path string, onErrorReloading func(error)) (*GlobalConfig, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration file. %w", err)
	}
	conf, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	r := &GlobalConfig{
		conf: conf,
		lock: new(sync.RWMutex),
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cf, err := unmarshal(v)
		if err != nil {
			onErrorReloading(err)
			return
		}
		r.lock.Lock()
		defer r.lock.Unlock()
		r.conf = cf
	})
	v.WatchConfig()
	return r, nil
}
