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

import "context"

// ID identifies a checkpoint.
type ID string

// Batch is a group of writes that become durable together.
type Batch interface {
	// ID returns the checkpoint the batch writes to.
	ID() ID
	// Write stages a value under the key. It overwrites any earlier staged value of the key.
	Write(key string, value []byte) error
	// Read returns the staged value of the key, or the value in the checkpoint the batch was opened on.
	Read(key string) ([]byte, error)
	// Commit starts making the batch durable. It does not block, use Wait for the outcome.
	Commit() error
	// Abort discards the staged writes. The batch cannot be used afterward.
	Abort() error
	// Wait blocks until the commit is done and returns its result.
	Wait() error
}

// Store creates and opens checkpoint batches.
type Store interface {
	// Begin returns an empty batch which commits to the given checkpoint.
	Begin(ctx context.Context, id ID) (Batch, error)
	// Open returns a batch over the committed checkpoint. Committing it replaces the checkpoint.
	Open(ctx context.Context, id ID) (Batch, error)
	// LatestID returns the last committed checkpoint.
	LatestID(ctx context.Context) (ID, error)
	// Delete deletes the checkpoint.
	Delete(ctx context.Context, id ID) error
	// Close closes the store.
	Close() error
}

// CommitFunc makes the encoded checkpoint durable. It is invoked from the commit goroutine of a batch.
type CommitFunc func(ctx context.Context, id ID, blob []byte) error
