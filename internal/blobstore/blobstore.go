// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package blobstore persists serialized function results, one blob per cache
// record id. A Store pairs a Codec (how values become bytes) and a
// Compression with a Bucket (where the bytes live).
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when no blob exists for an id.
var ErrNotFound = errors.New("blob not found")

// Info describes a stored blob.
type Info struct {
	ID      string    `json:"id"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Bucket is raw byte storage keyed by blob id. Read and Stat return
// ErrNotFound for a missing id; Delete of a missing id succeeds.
type Bucket interface {
	Write(ctx context.Context, id string, data []byte) error
	Read(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	Stat(ctx context.Context, id string) (Info, error)
	List(ctx context.Context) ([]string, error)
}

// Store is the blob store.
type Store struct {
	bucket      Bucket
	codec       Codec
	compression Compression
}

// Option customizes a Store.
type Option func(*Store)

// WithCodec sets the codec used by Put. Defaults to msgpack. Get decodes
// with the codec a blob was written with.
func WithCodec(c Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithCompression sets the compression used by Put. Get reads whatever
// compression a blob was written with.
func WithCompression(c Compression) Option {
	return func(s *Store) { s.compression = c }
}

func New(b Bucket, opts ...Option) *Store {
	s := &Store{bucket: b, codec: Msgpack, compression: None}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Codec() Codec             { return s.codec }
func (s *Store) Compression() Compression { return s.compression }

// Put serializes value and stores it under id, replacing any existing blob.
func (s *Store) Put(ctx context.Context, id string, value any) error {
	framed, err := s.Encode(value)
	if err != nil {
		return err
	}
	return s.Write(ctx, id, framed)
}

// Encode serializes and compresses value without storing it. The result is
// what Write expects.
func (s *Store) Encode(value any) ([]byte, error) {
	raw, err := s.codec.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding blob with %s: %w", s.codec.Name(), err)
	}
	framed, err := pack(s.compression, codecID(s.codec), raw)
	if err != nil {
		return nil, fmt.Errorf("compressing blob: %w", err)
	}
	return framed, nil
}

// Write stores a blob produced by Encode under id.
func (s *Store) Write(ctx context.Context, id string, framed []byte) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := s.bucket.Write(ctx, id, framed); err != nil {
		return fmt.Errorf("writing blob %s: %w", id, err)
	}
	return nil
}

// Get decodes the blob stored under id into target, which must be a pointer.
// The blob's header names its codec and compression, so blobs written under
// other settings still decode.
func (s *Store) Get(ctx context.Context, id string, target any) error {
	if err := validID(id); err != nil {
		return err
	}
	framed, err := s.bucket.Read(ctx, id)
	if err != nil {
		return fmt.Errorf("reading blob %s: %w", id, err)
	}
	cid, raw, err := unpack(framed)
	if err != nil {
		return fmt.Errorf("decompressing blob %s: %w", id, err)
	}
	codec, err := codecFromID(cid, s.codec)
	if err != nil {
		return fmt.Errorf("decoding blob %s: %w", id, err)
	}
	if err := codec.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decoding blob %s with %s: %w", id, codec.Name(), err)
	}
	return nil
}

// Delete removes the blob stored under id. A missing blob is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := s.bucket.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("deleting blob %s: %w", id, err)
	}
	return nil
}

func (s *Store) Stat(ctx context.Context, id string) (Info, error) {
	if err := validID(id); err != nil {
		return Info{}, err
	}
	info, err := s.bucket.Stat(ctx, id)
	if err != nil {
		return Info{}, fmt.Errorf("stat blob %s: %w", id, err)
	}
	return info, nil
}

// List returns the ids of every stored blob, in no particular order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids, err := s.bucket.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing blobs: %w", err)
	}
	return ids, nil
}

// validID rejects ids that could escape a bucket's namespace.
func validID(id string) error {
	switch {
	case id == "":
		return errors.New("empty blob id")
	case id == "." || id == "..",
		strings.ContainsAny(id, `/\`),
		strings.HasPrefix(id, tempPrefix):
		return fmt.Errorf("invalid blob id %q", id)
	}
	return nil
}
