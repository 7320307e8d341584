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

package checkpoint

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is returned by Batch.Read when neither the staged writes nor the base checkpoint hold the key.
	ErrKeyNotFound = errors.New("key not found in checkpoint")
	// ErrBatchClosed is returned when a committed or aborted batch is used again.
	ErrBatchClosed = errors.New("checkpoint batch is closed")
	// ErrBatchNotCommitted is returned by Wait on a batch which was never committed.
	ErrBatchNotCommitted = errors.New("checkpoint batch is not committed")
	// ErrCheckpointNotFound is returned when the requested checkpoint does not exist.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// errChecksumMismatch is returned when a checkpoint blob is corrupted.
	errChecksumMismatch = errors.New("checkpoint data checksum not match")
)

// DataStoreErr is a failure of the underlying storage engine.
type DataStoreErr struct {
	Store string
	Op    string
	Err   error
}

func (e DataStoreErr) Error() string {
	return fmt.Sprintf("(%s) data store failure on %s: %v", e.Store, e.Op, e.Err)
}

func (e DataStoreErr) Unwrap() error {
	return e.Err
}

// IsDataStoreErr returns true if the error, or any error it wraps, is a DataStoreErr.
func IsDataStoreErr(err error) bool {
	var dse DataStoreErr
	return errors.As(err, &dse)
}
