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

package generator

import "time"

type options struct {
	// lag is subtracted from the event time to derive a watermark.
	lag time.Duration
	// minGap is the minimum distance between two emitted watermarks.
	minGap time.Duration
}

func defaultOptions() *options {
	return &options{}
}

// Option to configure the generator.
type Option func(*options)

// WithLag sets the lag between the event time of a tuple and the watermark derived from it.
func WithLag(lag time.Duration) Option {
	return func(o *options) {
		o.lag = lag
	}
}

// WithMinGap sets the minimum gap between two emitted watermarks.
func WithMinGap(gap time.Duration) Option {
	return func(o *options) {
		o.minGap = gap
	}
}
