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

// Package fs stores checkpoints as files in a directory. A commit writes a temporary file, syncs it and renames it
// over the checkpoint file, so a checkpoint file is either the previous or the new version, never a mix.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/numaproj/numawindow/pkg/checkpoint"
	"github.com/numaproj/numawindow/pkg/shared/logging"
	"github.com/numaproj/numawindow/pkg/shared/util"
)

const (
	checkpointFileSuffix = ".ckpt"
	latestFileName       = "LATEST"
	tempFilePrefix       = ".tmp-"
	storeName            = "fs"
)

type fsCheckpointStore struct {
	dir  string
	opts []checkpoint.Option
	log  *zap.SugaredLogger
}

var _ checkpoint.Store = (*fsCheckpointStore)(nil)

// NewFSCheckpointStore returns a checkpoint store in the directory. The directory is created if needed and left over
// temporary files of interrupted commits are removed.
func NewFSCheckpointStore(ctx context.Context, dir string, opts ...checkpoint.Option) (checkpoint.Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, checkpoint.DataStoreErr{Store: storeName, Op: "mkdir", Err: err}
	}
	s := &fsCheckpointStore{
		dir:  dir,
		opts: opts,
		log:  logging.FromContext(ctx).With("store", storeName, "dir", dir),
	}
	leftovers, err := filepath.Glob(filepath.Join(dir, tempFilePrefix+"*"))
	if err != nil {
		return nil, err
	}
	var errs error
	for _, f := range leftovers {
		s.log.Infow("Removing temporary file of an interrupted commit", zap.String("file", f))
		errs = multierr.Append(errs, os.Remove(f))
	}
	if errs != nil {
		return nil, checkpoint.DataStoreErr{Store: storeName, Op: "cleanup", Err: errs}
	}
	return s, nil
}

func (s *fsCheckpointStore) path(id checkpoint.ID) string {
	return filepath.Join(s.dir, util.KeyHash(string(id))+checkpointFileSuffix)
}

// Begin returns an empty batch.
func (s *fsCheckpointStore) Begin(ctx context.Context, id checkpoint.ID) (checkpoint.Batch, error) {
	return checkpoint.NewStagedBatch(ctx, id, storeName, nil, s.commit, s.opts...), nil
}

// Open returns a batch over the committed checkpoint.
func (s *fsCheckpointStore) Open(ctx context.Context, id checkpoint.ID) (checkpoint.Batch, error) {
	blob, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", checkpoint.ErrCheckpointNotFound, id)
	}
	if err != nil {
		return nil, checkpoint.DataStoreErr{Store: storeName, Op: "read", Err: err}
	}
	entries, err := checkpoint.Decode(blob)
	if err != nil {
		return nil, checkpoint.DataStoreErr{Store: storeName, Op: "decode", Err: err}
	}
	return checkpoint.NewStagedBatch(ctx, id, storeName, entries, s.commit, s.opts...), nil
}

func (s *fsCheckpointStore) commit(_ context.Context, id checkpoint.ID, blob []byte) error {
	if err := s.atomicWrite(s.path(id), blob); err != nil {
		return checkpoint.DataStoreErr{Store: storeName, Op: "write", Err: err}
	}
	if err := s.atomicWrite(filepath.Join(s.dir, latestFileName), []byte(id)); err != nil {
		return checkpoint.DataStoreErr{Store: storeName, Op: "write", Err: err}
	}
	return nil
}

// atomicWrite replaces the file with the data through a synced temporary file.
func (s *fsCheckpointStore) atomicWrite(path string, data []byte) (err error) {
	tmp := filepath.Join(s.dir, tempFilePrefix+uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, os.Remove(tmp))
		}
	}()
	if _, err = f.Write(data); err != nil {
		return multierr.Append(err, f.Close())
	}
	if err = f.Sync(); err != nil {
		return multierr.Append(err, f.Close())
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp, path); err != nil {
		return err
	}
	return s.syncDir()
}

func (s *fsCheckpointStore) syncDir() error {
	d, err := os.Open(s.dir)
	if err != nil {
		return err
	}
	return multierr.Append(d.Sync(), d.Close())
}

// LatestID returns the last committed checkpoint.
func (s *fsCheckpointStore) LatestID(_ context.Context) (checkpoint.ID, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, latestFileName))
	if errors.Is(err, os.ErrNotExist) {
		return "", checkpoint.ErrCheckpointNotFound
	}
	if err != nil {
		return "", checkpoint.DataStoreErr{Store: storeName, Op: "read", Err: err}
	}
	return checkpoint.ID(b), nil
}

// Delete removes the checkpoint file, and the latest pointer if it points to it.
func (s *fsCheckpointStore) Delete(ctx context.Context, id checkpoint.ID) error {
	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", checkpoint.ErrCheckpointNotFound, id)
	}
	if err != nil {
		return checkpoint.DataStoreErr{Store: storeName, Op: "delete", Err: err}
	}
	latest, err := s.LatestID(ctx)
	if errors.Is(err, checkpoint.ErrCheckpointNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if latest == id {
		if err := os.Remove(filepath.Join(s.dir, latestFileName)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return checkpoint.DataStoreErr{Store: storeName, Op: "delete", Err: err}
		}
	}
	return nil
}

// Close is a no-op, files are closed after every operation.
func (s *fsCheckpointStore) Close() error {
	return nil
}
