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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/numaproj/numawindow/pkg/metrics"
)

// watermarksPublished is the number of watermarks written to the store.
var watermarksPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "watermark",
	Name:      "published_total",
	Help:      "Total number of watermarks published",
}, []string{metrics.LabelStore, metrics.LabelEntity})

var watermarksSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "watermark",
	Name:      "skipped_total",
	Help:      "Total number of watermarks not published because they do not advance the head watermark",
}, []string{metrics.LabelStore, metrics.LabelEntity})

var publishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "watermark",
	Name:      "publish_errors_total",
	Help:      "Total number of failed watermark puts",
}, []string{metrics.LabelStore, metrics.LabelEntity})

// headWatermark is the last published watermark in epoch milliseconds.
var headWatermark = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "watermark",
	Name:      "head_milliseconds",
	Help:      "Head watermark of the entity in epoch milliseconds",
}, []string{metrics.LabelStore, metrics.LabelEntity})

// combinedWatermark is the minimum over the input ports.
var combinedWatermark = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "watermark",
	Name:      "combined_milliseconds",
	Help:      "Minimum watermark over the input ports in epoch milliseconds",
}, []string{metrics.LabelOperator})
