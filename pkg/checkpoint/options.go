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

package checkpoint

import (
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

type options struct {
	// commitBackoff is the retry policy of a failing commit.
	commitBackoff wait.Backoff
}

func defaultOptions() *options {
	return &options{
		commitBackoff: wait.Backoff{
			Steps:    3,
			Duration: 100 * time.Millisecond,
			Factor:   2.0,
			Jitter:   0.1,
		},
	}
}

// Option to configure a batch.
type Option func(*options)

// WithCommitBackoff sets the retry policy of a failing commit. Steps of 1 disables the retries.
func WithCommitBackoff(b wait.Backoff) Option {
	return func(o *options) {
		o.commitBackoff = b
	}
}
