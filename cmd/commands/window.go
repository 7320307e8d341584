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

package commands

import (
	"context"

	"github.com/numaproj/numawindow/pkg/config"
	"github.com/numaproj/numawindow/pkg/operator"
	"github.com/numaproj/numawindow/pkg/window"
)

// windowPort is the input port the window of the CLI is registered on.
const windowPort = 0

// newOperatorWindow builds the operator context and its window. Both commands build it the same way, so the
// window reads and writes the same checkpoint key.
func newOperatorWindow(ctx context.Context, conf *config.Config, opts ...window.Option) (*operator.Context, *window.Window, error) {
	var opOpts []operator.Option
	if conf.Operator.MultiThreadedOnInput {
		opOpts = append(opOpts, operator.WithMultiThreadedOnInput())
	}
	opCtx, err := operator.NewContext(ctx, conf.Operator.Name, conf.Operator.InputPorts, opOpts...)
	if err != nil {
		return nil, nil, err
	}
	cfg, wOpts, err := conf.WindowConfig()
	if err != nil {
		return nil, nil, err
	}
	w, err := window.New(ctx, opCtx, windowPort, cfg, append(wOpts, opts...)...)
	if err != nil {
		return nil, nil, err
	}
	return opCtx, w, nil
}
