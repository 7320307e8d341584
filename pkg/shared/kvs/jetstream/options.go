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

package jetstream

import "time"

// options for the JetStream KV store.
type options struct {
	// createBucket creates the bucket when it does not exist yet instead of failing the bind.
	createBucket bool
	// history is the number of historical values kept per key when the bucket is created.
	history uint8
	// watcherRetryInterval is the pause between attempts to (re)create the bucket watcher.
	watcherRetryInterval time.Duration
}

func defaultOptions() *options {
	return &options{
		createBucket:         false,
		history:              1,
		watcherRetryInterval: 100 * time.Millisecond,
	}
}

// Option is a function on the options of the JetStream KV store
type Option func(*options)

// WithCreateBucket creates the bucket with the given history if it does not exist.
func WithCreateBucket(history uint8) Option {
	return func(o *options) {
		o.createBucket = true
		o.history = history
	}
}

// WithWatcherRetryInterval sets the pause between watcher creation attempts.
func WithWatcherRetryInterval(d time.Duration) Option {
	return func(o *options) {
		o.watcherRetryInterval = d
	}
}
