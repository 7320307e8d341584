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

package window

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/numaproj/numawindow/pkg/metrics"
)

const (
	labelWindow = "window"
)

// tuplesInserted is the number of tuples buffered by the window.
var tuplesInserted = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "window",
	Name:      "tuples_inserted_total",
	Help:      "Total number of tuples inserted into the window",
}, []string{metrics.LabelOperator, metrics.LabelPort, labelWindow})

var tuplesEvicted = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "window",
	Name:      "tuples_evicted_total",
	Help:      "Total number of tuples that left the window, by reason",
}, []string{metrics.LabelOperator, metrics.LabelPort, labelWindow, metrics.LabelReason})

var lateTuples = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "window",
	Name:      "late_tuples_total",
	Help:      "Total number of tuples that arrived after their event time bucket was closed",
}, []string{metrics.LabelOperator, metrics.LabelPort, labelWindow})

var windowEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "window",
	Name:      "events_total",
	Help:      "Total number of events reported to handlers",
}, []string{metrics.LabelOperator, metrics.LabelPort, labelWindow, metrics.LabelEventType})

var activePartitions = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "window",
	Name:      "partitions",
	Help:      "Number of live partitions in the window",
}, []string{metrics.LabelOperator, metrics.LabelPort, labelWindow})

var bufferedTuples = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "window",
	Name:      "buffered_tuples",
	Help:      "Number of tuples buffered in the window",
}, []string{metrics.LabelOperator, metrics.LabelPort, labelWindow})
