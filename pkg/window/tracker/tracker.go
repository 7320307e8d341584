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

// Package tracker tracks the window whose handler or eviction callback is currently running. The stack of windows
// is carried by the context, so it is scoped to one call chain. Work handed to another goroutine without the context
// does not see it.
package tracker

import "context"

type frameKey struct{}

// frame is one immutable entry of the stack. Pushing creates a new frame pointing to the previous one.
type frame struct {
	window any
	depth  int
	prev   *frame
}

func top(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)
	return f
}

// Push returns a context in which w is the current window.
func Push(ctx context.Context, w any) context.Context {
	prev := top(ctx)
	depth := 1
	if prev != nil {
		depth = prev.depth + 1
	}
	return context.WithValue(ctx, frameKey{}, &frame{window: w, depth: depth, prev: prev})
}

// Pop returns a context in which the current window is the one below the top. It panics on an empty stack, which
// means a Pop without a matching Push.
func Pop(ctx context.Context) context.Context {
	f := top(ctx)
	if f == nil {
		panic("tracker: pop on an empty window stack")
	}
	return context.WithValue(ctx, frameKey{}, f.prev)
}

// Current returns the window on top of the stack.
func Current(ctx context.Context) (any, bool) {
	f := top(ctx)
	if f == nil {
		return nil, false
	}
	return f.window, true
}

// Depth returns the number of windows on the stack.
func Depth(ctx context.Context) int {
	f := top(ctx)
	if f == nil {
		return 0
	}
	return f.depth
}

// Scope runs fn with w as the current window. The caller's context is left untouched, so the push is always paired
// with a pop, even if fn fails or panics.
func Scope(ctx context.Context, w any, fn func(ctx context.Context) error) error {
	return fn(Push(ctx, w))
}
