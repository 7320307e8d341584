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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/numaproj/numawindow/pkg/metrics"
)

// commitDuration is the time taken to make a batch durable, retries included.
var commitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem: "checkpoint",
	Name:      "commit_duration_seconds",
	Help:      "Duration of checkpoint commits",
	Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
}, []string{metrics.LabelStore})

var commitBytes = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "checkpoint",
	Name:      "commit_bytes_total",
	Help:      "Total number of bytes committed",
}, []string{metrics.LabelStore})

var commitErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "checkpoint",
	Name:      "commit_errors_total",
	Help:      "Total number of failed commit attempts",
}, []string{metrics.LabelStore})

var abortedBatches = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "checkpoint",
	Name:      "aborted_batches_total",
	Help:      "Total number of aborted batches",
}, []string{metrics.LabelStore})
