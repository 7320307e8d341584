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

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/numaproj/numawindow/pkg/metrics"
)

const (
	resultEmitted   = "emitted"
	resultDiscarded = "discarded"
	resultFailed    = "failed"
)

var emittedWatermarks = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "watermark",
	Name:      "generated_total",
	Help:      "Total number of watermark candidates by result",
}, []string{metrics.LabelReason})
