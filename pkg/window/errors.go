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
	"errors"
	"fmt"
)

var (
	// ErrUnknownPartition is returned for operations on a partition key the window does not hold, or when a victim
	// selector returns such a key.
	ErrUnknownPartition = errors.New("unknown partition")
	// ErrWindowClosed is returned by the operations of a closed window.
	ErrWindowClosed = errors.New("window is closed")
	// ErrNoCheckpoint is returned by Restore when the batch holds no state for the window.
	ErrNoCheckpoint = errors.New("no checkpointed state for the window")
)

// ConfigErr is a window configuration which cannot work. It is returned at construction.
type ConfigErr struct {
	Name    string
	Message string
}

func (e ConfigErr) Error() string {
	return fmt.Sprintf("(%s) invalid window configuration: %s", e.Name, e.Message)
}

// IsConfigErr returns true if the error is, or wraps, a ConfigErr.
func IsConfigErr(err error) bool {
	var ce ConfigErr
	return errors.As(err, &ce)
}
