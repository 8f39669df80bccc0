// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	Name  string
	Count int
	Tags  []string
}

func buckets(t *testing.T) map[string]Bucket {
	return map[string]Bucket{
		"fs":  NewFSBucket(t.TempDir()),
		"mem": NewMemBucket(),
		"s3":  NewS3Bucket(newFakeS3(), "bkt", "memo"),
	}
}

func TestBuckets(t *testing.T) {
	ctx := context.Background()

	for name, b := range buckets(t) {
		t.Run(name, func(t *testing.T) {
			ids, err := b.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, ids)

			_, err = b.Read(ctx, "a")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = b.Stat(ctx, "a")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.NoError(t, b.Delete(ctx, "a"))

			require.NoError(t, b.Write(ctx, "a", []byte("first")))
			require.NoError(t, b.Write(ctx, "a", []byte("second")))
			require.NoError(t, b.Write(ctx, "b", []byte("b")))
			require.NoError(t, b.Write(ctx, "c", []byte("c")))

			got, err := b.Read(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("second"), got)

			info, err := b.Stat(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "a", info.ID)
			assert.EqualValues(t, len("second"), info.Size)

			ids, err = b.List(ctx)
			require.NoError(t, err)
			sort.Strings(ids)
			assert.Equal(t, []string{"a", "b", "c"}, ids)

			require.NoError(t, b.Delete(ctx, "a"))
			require.NoError(t, b.Delete(ctx, "a"))
			_, err = b.Read(ctx, "a")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	in := result{Name: "n", Count: 3, Tags: []string{"x", "y"}}

	for _, codec := range []Codec{Msgpack, JSON, CBOR} {
		for _, comp := range []Compression{None, Zstd} {
			t.Run(codec.Name()+"/"+comp.String(), func(t *testing.T) {
				s := New(NewMemBucket(), WithCodec(codec), WithCompression(comp))
				require.NoError(t, s.Put(ctx, "id1", in))

				var out result
				require.NoError(t, s.Get(ctx, "id1", &out))
				assert.Equal(t, in, out)
			})
		}
	}
}

func TestStore_ReadsAnyCompression(t *testing.T) {
	ctx := context.Background()
	bucket := NewMemBucket()

	require.NoError(t, New(bucket, WithCompression(Zstd)).Put(ctx, "id1", "hello"))

	var out string
	require.NoError(t, New(bucket).Get(ctx, "id1", &out))
	assert.Equal(t, "hello", out)

	raw, err := bucket.Read(ctx, "id1")
	require.NoError(t, err)
	assert.Equal(t, byte(codecMsgpack<<4)|byte(Zstd), raw[0])
}

func TestStore_ReadsAnyCodec(t *testing.T) {
	ctx := context.Background()
	bucket := NewMemBucket()
	in := result{Name: "n", Count: 3, Tags: []string{"x"}}

	require.NoError(t, New(bucket, WithCodec(Msgpack)).Put(ctx, "mp", in))
	require.NoError(t, New(bucket, WithCodec(CBOR), WithCompression(Zstd)).Put(ctx, "cb", in))

	s := New(bucket, WithCodec(JSON))
	for _, id := range []string{"mp", "cb"} {
		var out result
		require.NoError(t, s.Get(ctx, id, &out), id)
		assert.Equal(t, in, out, id)
	}

	// A header without a codec falls back to the store's codec.
	require.NoError(t, bucket.Write(ctx, "legacy", append([]byte{byte(None)}, `{"Name":"old"}`...)))
	var out result
	require.NoError(t, s.Get(ctx, "legacy", &out))
	assert.Equal(t, "old", out.Name)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemBucket())

	var out string
	assert.ErrorIs(t, s.Get(ctx, "missing", &out), ErrNotFound)
	_, err := s.Stat(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "missing"))

	for _, id := range []string{"", ".", "..", "a/b", `a\b`, tempPrefix + "x"} {
		assert.Error(t, s.Put(ctx, id, 1), "id %q", id)
	}

	assert.Error(t, s.Put(ctx, "f", func() {}))

	require.NoError(t, s.Put(ctx, "n", 1))
	assert.Error(t, s.Get(ctx, "n", &out), "decoding an int into a string")
}

func TestStore_CorruptFrame(t *testing.T) {
	ctx := context.Background()
	bucket := NewMemBucket()
	s := New(bucket)

	var out string
	require.NoError(t, bucket.Write(ctx, "empty", nil))
	assert.ErrorIs(t, s.Get(ctx, "empty", &out), errFrame)

	require.NoError(t, bucket.Write(ctx, "unknown", []byte{0x7f, 1, 2}))
	assert.ErrorIs(t, s.Get(ctx, "unknown", &out), errFrame)

	require.NoError(t, bucket.Write(ctx, "codec", []byte{0xf0, 1, 2}))
	assert.ErrorIs(t, s.Get(ctx, "codec", &out), errFrame)
}

func TestFSBucket_Layout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	b := NewFSBucket(root)

	assert.Equal(t, filepath.Join(root, ".cache"), b.Dir())
	_, err := os.Stat(b.Dir())
	assert.True(t, os.IsNotExist(err), "cache dir is created lazily")

	require.NoError(t, b.Write(ctx, "abc", []byte("data")))
	data, err := os.ReadFile(filepath.Join(root, ".cache", "abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)

	// Leftovers from an interrupted write are not blobs.
	require.NoError(t, os.WriteFile(filepath.Join(b.Dir(), tempPrefix+"123"), nil, 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(b.Dir(), "subdir"), 0o755))
	ids, err := b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, ids)
}

func TestCodecByName(t *testing.T) {
	tests := []struct {
		name    string
		want    Codec
		wantErr bool
	}{
		{name: "", want: Msgpack},
		{name: "msgpack", want: Msgpack},
		{name: "JSON", want: JSON},
		{name: "cbor", want: CBOR},
		{name: "gob", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CodecByName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, None, c)

	c, err = ParseCompression("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, c)

	_, err = ParseCompression("gzip")
	assert.Error(t, err)
}
