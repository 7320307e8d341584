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

// Package checkpoint is the persistence hook used by windows to save and restore their state.
//
// A Batch stages key/value writes and commits them all-or-nothing. Commit only starts the commit, the caller
// blocks on Wait until the checkpoint is durable. A Store hands out batches, either over a new checkpoint (Begin)
// or over an existing committed one (Open). Concrete stores live in the kvstore and fs sub packages.
//
// Every I/O failure coming out of a store is a DataStoreErr, so callers can tell "the storage engine failed" apart
// from contract errors such as ErrKeyNotFound.
package checkpoint
