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
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/numaproj/numawindow/pkg/shared/logging"
	"github.com/numaproj/numawindow/pkg/watermark/wmb"
)

// Combiner keeps the watermark of every input port and forwards the minimum over the ports whenever it advances.
// Inactive ports are left out of the minimum. A port that never reported holds it at the initial watermark.
type Combiner struct {
	name    string
	forward func(ctx context.Context, wm wmb.Watermark) error

	sync.Mutex
	ports    []wmb.Watermark
	combined wmb.Watermark
	log      *zap.SugaredLogger
}

var _ Handler = (*Combiner)(nil)

// NewCombiner returns a Combiner for numPorts input ports of the named operator.
func NewCombiner(ctx context.Context, name string, numPorts int, forward func(ctx context.Context, wm wmb.Watermark) error) (*Combiner, error) {
	if numPorts <= 0 {
		return nil, fmt.Errorf("combiner %s needs at least one input port, got %d", name, numPorts)
	}
	if forward == nil {
		return nil, fmt.Errorf("combiner %s needs a forward function", name)
	}
	ports := make([]wmb.Watermark, numPorts)
	for i := range ports {
		ports[i] = wmb.InitialWatermark
	}
	return &Combiner{
		name:     name,
		forward:  forward,
		ports:    ports,
		combined: wmb.InitialWatermark,
		log:      logging.FromContext(ctx).With("operator", name),
	}, nil
}

// HandleWatermark records the watermark of the port. A watermark older than the one the port already reported is
// ignored. If the forward function fails, the combined watermark is not moved and the next advance retries it.
func (c *Combiner) HandleWatermark(ctx context.Context, port int, wm wmb.Watermark) error {
	c.Lock()
	defer c.Unlock()
	if port < 0 || port >= len(c.ports) {
		return fmt.Errorf("combiner %s has no input port %d", c.name, port)
	}
	if wm.BeforeWatermark(c.ports[port]) {
		c.log.Debugw("Ignoring a watermark older than the one of the port", zap.Int("port", port), zap.String("watermark", wm.String()), zap.String("current", c.ports[port].String()))
		return nil
	}
	c.ports[port] = wm

	minimum := c.minimum()
	if !minimum.AfterWatermark(c.combined) {
		return nil
	}
	if err := c.forward(ctx, minimum); err != nil {
		return fmt.Errorf("failed to forward the watermark %s of combiner %s: %w", minimum, c.name, err)
	}
	c.combined = minimum
	if !minimum.IsInactive() {
		combinedWatermark.WithLabelValues(c.name).Set(float64(minimum.UnixMilli()))
	}
	return nil
}

// minimum returns the smallest watermark of the active ports, or the inactive watermark if no port is active.
func (c *Combiner) minimum() wmb.Watermark {
	minimum := wmb.InactiveWatermark
	for _, wm := range c.ports {
		if wm.IsInactive() {
			continue
		}
		minimum = wmb.Min(minimum, wm)
	}
	return minimum
}

// Watermark returns the last forwarded watermark.
func (c *Combiner) Watermark() wmb.Watermark {
	c.Lock()
	defer c.Unlock()
	return c.combined
}

// PortWatermark returns the last watermark of the port.
func (c *Combiner) PortWatermark(port int) (wmb.Watermark, bool) {
	c.Lock()
	defer c.Unlock()
	if port < 0 || port >= len(c.ports) {
		return wmb.Watermark{}, false
	}
	return c.ports[port], true
}
