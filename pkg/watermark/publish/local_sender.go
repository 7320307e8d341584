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
	"context"

	"go.uber.org/atomic"

	"github.com/numaproj/numawindow/pkg/watermark/wmb"
)

// localSender keeps the watermark of an output that has no downstream bucket.
type localSender struct {
	head *atomic.Int64
}

var _ Sender = (*localSender)(nil)

// NewLocalSender returns a Sender which only records the watermark.
func NewLocalSender() Sender {
	return &localSender{head: atomic.NewInt64(wmb.InitialWatermark.UnixMilli())}
}

func (s *localSender) SendWatermark(_ context.Context, wm wmb.Watermark) error {
	for {
		head := s.head.Load()
		if wm.UnixMilli() <= head || s.head.CompareAndSwap(head, wm.UnixMilli()) {
			return nil
		}
	}
}

func (s *localSender) Watermark() wmb.Watermark {
	return wmb.FromUnixMilli(s.head.Load())
}

func (s *localSender) IsInactive() bool {
	return s.Watermark().IsInactive()
}

func (s *localSender) SetInactive() {
	s.head.Store(wmb.InactiveWatermark.UnixMilli())
}

func (s *localSender) Close() error {
	return nil
}
