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

// Package operator holds the execution context of an operator: its name, its input ports, the windows attached to
// the ports and the serialisation of the tuple processing when the operator is multi-threaded on its input.
package operator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/numaproj/numawindow/pkg/shared/logging"
)

var (
	// ErrInvalidPort is returned for a port outside of [0, NumInputPorts).
	ErrInvalidPort = errors.New("invalid input port")
	// ErrPortTaken is returned when a second window is registered on a port.
	ErrPortTaken = errors.New("input port already has a window")
	// ErrWindowNotRegistered is returned when unregistering a window which is not registered on the port.
	ErrWindowNotRegistered = errors.New("window is not registered on the input port")
)

// Window is what the execution context knows about a window.
type Window interface {
	Name() string
	Port() int
}

type options struct {
	multiThreadedOnInput bool
}

func defaultOptions() *options {
	return &options{
		multiThreadedOnInput: false,
	}
}

// Option to configure the execution context.
type Option func(*options)

// WithMultiThreadedOnInput declares that tuples may arrive on several goroutines at the same time.
func WithMultiThreadedOnInput() Option {
	return func(o *options) {
		o.multiThreadedOnInput = true
	}
}

// Context is the execution context of one operator.
type Context struct {
	name          string
	numInputPorts int
	opts          *options

	// processing serialises the critical sections when multi-threaded on input.
	processing sync.Mutex
	lock       sync.RWMutex
	windows    map[int]Window
	log        *zap.SugaredLogger
}

// NewContext returns the execution context of the operator.
func NewContext(ctx context.Context, name string, numInputPorts int, opts ...Option) (*Context, error) {
	if name == "" {
		return nil, fmt.Errorf("operator name is required")
	}
	if numInputPorts < 0 {
		return nil, fmt.Errorf("number of input ports must not be negative, got %d", numInputPorts)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Context{
		name:          name,
		numInputPorts: numInputPorts,
		opts:          o,
		windows:       make(map[int]Window),
		log:           logging.FromContext(ctx).With("operator", name),
	}, nil
}

// Name returns the operator name.
func (c *Context) Name() string {
	return c.name
}

// NumInputPorts returns the number of input ports.
func (c *Context) NumInputPorts() int {
	return c.numInputPorts
}

// IsMultiThreadedOnInput returns whether the critical sections are serialised.
func (c *Context) IsMultiThreadedOnInput() bool {
	return c.opts.multiThreadedOnInput
}

func (c *Context) checkPort(port int) error {
	if port < 0 || port >= c.numInputPorts {
		return fmt.Errorf("%w: %d, operator %s has %d input ports", ErrInvalidPort, port, c.name, c.numInputPorts)
	}
	return nil
}

// RegisterWindow attaches the window to the input port. A port has at most one window.
func (c *Context) RegisterWindow(port int, w Window) error {
	if err := c.checkPort(port); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if existing, ok := c.windows[port]; ok {
		return fmt.Errorf("%w: port %d has window %q", ErrPortTaken, port, existing.Name())
	}
	c.windows[port] = w
	c.log.Infow("Registered window", zap.Int("port", port), zap.String("window", w.Name()))
	return nil
}

// UnregisterWindow detaches the window from the input port.
func (c *Context) UnregisterWindow(port int, w Window) error {
	if err := c.checkPort(port); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if existing, ok := c.windows[port]; !ok || existing != w {
		return fmt.Errorf("%w: port %d, window %q", ErrWindowNotRegistered, port, w.Name())
	}
	delete(c.windows, port)
	c.log.Infow("Unregistered window", zap.Int("port", port), zap.String("window", w.Name()))
	return nil
}

// Window returns the window of the input port.
func (c *Context) Window(port int) (Window, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	w, ok := c.windows[port]
	return w, ok
}

// CriticalSection runs fn. When the operator is multi-threaded on input the critical sections run one at a time.
func (c *Context) CriticalSection(fn func() error) error {
	if c.opts.multiThreadedOnInput {
		c.processing.Lock()
		defer c.processing.Unlock()
	}
	return fn()
}
