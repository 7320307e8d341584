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
	"k8s.io/utils/clock"
)

type options struct {
	name           string
	handlers       map[EventType][]Handler
	victimSelector VictimSelector
	attributeFunc  AttributeFunc
	clock          clock.PassiveClock
}

func defaultOptions() *options {
	return &options{
		handlers: make(map[EventType][]Handler),
		clock:    clock.RealClock{},
	}
}

// Option to configure a window.
type Option func(*options)

// WithName sets the name of the window, used in logs, metrics and the checkpoint key.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithHandler registers a handler for the event type. Handlers of the same type are called in registration order.
func WithHandler(t EventType, h Handler) Option {
	return func(o *options) {
		o.handlers[t] = append(o.handlers[t], h)
	}
}

// WithVictimSelector sets the selector of an operator defined partition eviction policy.
func WithVictimSelector(s VictimSelector) Option {
	return func(o *options) {
		o.victimSelector = s
	}
}

// WithAttributeFunc sets the delta attribute extractor. Without it the attribute of the delta policy is evaluated as
// an expression over the tuple payload.
func WithAttributeFunc(f AttributeFunc) Option {
	return func(o *options) {
		o.attributeFunc = f
	}
}

// WithClock sets the clock used by the time policies.
func WithClock(c clock.PassiveClock) Option {
	return func(o *options) {
		o.clock = c
	}
}
