// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CacheDirName is the directory, beneath the storage root, holding blobs.
const CacheDirName = ".cache"

// tempPrefix marks in-flight writes. Such files are never listed.
const tempPrefix = ".tmp-"

// FSBucket stores each blob as a file named by its id in <root>/.cache.
type FSBucket struct {
	dir string
}

var _ Bucket = (*FSBucket)(nil)

// NewFSBucket returns a bucket beneath the storage root. Nothing is created
// until the first write.
func NewFSBucket(root string) *FSBucket {
	return &FSBucket{dir: filepath.Join(root, CacheDirName)}
}

// Dir is the directory holding the blob files.
func (b *FSBucket) Dir() string { return b.dir }

func (b *FSBucket) path(id string) string { return filepath.Join(b.dir, id) }

// Write stores data durably: it goes to a temp file in the same directory,
// is synced, and is then renamed over the final name.
func (b *FSBucket) Write(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(b.dir, 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(b.dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o600); err != nil { //nolint:mnd
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, b.path(id))
}

func (b *FSBucket) Read(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (b *FSBucket) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(b.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (b *FSBucket) Stat(ctx context.Context, id string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	fi, err := os.Stat(b.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return Info{}, ErrNotFound
	}
	if err != nil {
		return Info{}, err
	}
	return Info{ID: id, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (b *FSBucket) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(b.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		ids = append(ids, e.Name())
	}
	return ids, nil
}
