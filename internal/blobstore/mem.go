// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"context"
	"sync"
	"time"
)

// MemBucket keeps blobs in memory.
type MemBucket struct {
	mu    sync.RWMutex
	blobs map[string]memBlob
}

type memBlob struct {
	data    []byte
	modTime time.Time
}

var _ Bucket = (*MemBucket)(nil)

func NewMemBucket() *MemBucket {
	return &MemBucket{blobs: make(map[string]memBlob)}
}

func (b *MemBucket) Write(_ context.Context, id string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[id] = memBlob{data: append([]byte(nil), data...), modTime: time.Now()}
	return nil
}

func (b *MemBucket) Read(_ context.Context, id string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	blob, ok := b.blobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), blob.data...), nil
}

func (b *MemBucket) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, id)
	return nil
}

func (b *MemBucket) Stat(_ context.Context, id string) (Info, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	blob, ok := b.blobs[id]
	if !ok {
		return Info{}, ErrNotFound
	}
	return Info{ID: id, Size: int64(len(blob.data)), ModTime: blob.modTime}, nil
}

func (b *MemBucket) List(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.blobs))
	for id := range b.blobs {
		ids = append(ids, id)
	}
	return ids, nil
}
