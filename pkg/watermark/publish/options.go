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

package publish

import (
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/numaproj/numawindow/pkg/shared/util"
)

type options struct {
	// retryBackoff is used for the puts of the kv sender.
	retryBackoff wait.Backoff
	// deleteOnClose removes the key of the entity when the sender is closed.
	deleteOnClose bool
}

func defaultOptions() *options {
	return &options{
		retryBackoff:  util.DefaultRetryBackoff,
		deleteOnClose: true,
	}
}

// Option to configure the kv sender.
type Option func(*options)

// WithRetryBackoff sets the backoff for the puts of the watermark.
func WithRetryBackoff(b wait.Backoff) Option {
	return func(o *options) {
		o.retryBackoff = b
	}
}

// WithKeepOnClose keeps the last published watermark in the bucket when the sender is closed.
func WithKeepOnClose() Option {
	return func(o *options) {
		o.deleteOnClose = false
	}
}
