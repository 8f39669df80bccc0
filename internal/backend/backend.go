// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/staranto/memoctl/internal/aws"
	"github.com/staranto/memoctl/internal/blobstore"
	"github.com/staranto/memoctl/internal/config"
	"github.com/staranto/memoctl/internal/metastore"
	"github.com/staranto/memoctl/internal/metastore/badgerstore"
	"github.com/staranto/memoctl/internal/metastore/memstore"
	"github.com/staranto/memoctl/internal/metastore/redisstore"
)

// ErrUnknown is returned for a backend name Open does not know.
var ErrUnknown = errors.New("unknown backend")

// Settings selects and configures both stores.
type Settings struct {
	// Root is the storage root. Badger keeps its files in Root/meta and the
	// fs bucket keeps blobs in Root/.cache.
	Root string

	// Meta is badger, redis or memory.
	Meta        string
	BadgerPath  string
	RedisAddr   string
	RedisPrefix string

	// Blob is fs, s3 or memory.
	Blob        string
	Codec       string
	Compression string
	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3Profile   string
	S3Endpoint  string
}

// DefaultRoot is $XDG_CACHE_HOME/memoctl or the platform equivalent.
func DefaultRoot() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "memoctl")
}

// FromConfig reads Settings from the config file, falling back to badger
// and fs under DefaultRoot.
func FromConfig() Settings {
	get := func(key, def string) string {
		v, _ := config.GetString(key, def)
		return v
	}
	return Settings{
		Root:        get("storage.root", DefaultRoot()),
		Meta:        get("metadata.backend", "badger"),
		BadgerPath:  get("metadata.badger.path", ""),
		RedisAddr:   get("metadata.redis.addr", "localhost:6379"),
		RedisPrefix: get("metadata.redis.prefix", redisstore.DefaultPrefix),
		Blob:        get("blob.backend", "fs"),
		Codec:       get("blob.codec", ""),
		Compression: get("blob.compression", "none"),
		S3Bucket:    get("blob.s3.bucket", ""),
		S3Prefix:    get("blob.s3.prefix", ""),
		S3Region:    get("blob.s3.region", ""),
		S3Profile:   get("blob.s3.profile", ""),
		S3Endpoint:  get("blob.s3.endpoint", ""),
	}
}

// Open opens both stores. The caller closes the metadata store.
func Open(ctx context.Context, s Settings, l log.Interface) (metastore.Store, *blobstore.Store, error) {
	if l == nil {
		l = log.Log
	}
	if s.Root == "" {
		s.Root = DefaultRoot()
	}

	codec, err := blobstore.CodecByName(s.Codec)
	if err != nil {
		return nil, nil, err
	}
	compression, err := blobstore.ParseCompression(s.Compression)
	if err != nil {
		return nil, nil, err
	}

	bucket, err := openBucket(ctx, s)
	if err != nil {
		return nil, nil, err
	}

	meta, err := openMeta(s, l)
	if err != nil {
		return nil, nil, err
	}

	l.WithFields(log.Fields{
		"meta":        s.Meta,
		"blob":        s.Blob,
		"codec":       codec.Name(),
		"compression": compression,
	}).Debug("opened backend")

	return meta, blobstore.New(bucket, blobstore.WithCodec(codec), blobstore.WithCompression(compression)), nil
}

func openMeta(s Settings, l log.Interface) (metastore.Store, error) {
	switch s.Meta {
	case "badger", "":
		dir := s.BadgerPath
		if dir == "" {
			dir = filepath.Join(s.Root, "meta")
		}
		return badgerstore.Open(badgerstore.Options{Dir: dir, Logger: l})
	case "redis":
		return redisstore.Dial(s.RedisAddr, s.RedisPrefix), nil
	case "memory":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("%w: metadata.backend=%q", ErrUnknown, s.Meta)
	}
}

func openBucket(ctx context.Context, s Settings) (blobstore.Bucket, error) {
	switch s.Blob {
	case "fs", "":
		return blobstore.NewFSBucket(s.Root), nil
	case "s3":
		if s.S3Bucket == "" {
			return nil, errors.New("blob.s3.bucket is required for the s3 backend")
		}
		var opts []aws.Option
		if s.S3Profile != "" {
			opts = append(opts, aws.WithProfile(s.S3Profile))
		}
		if s.S3Region != "" {
			opts = append(opts, aws.WithRegion(s.S3Region))
		}
		cfg, err := aws.LoadAWSConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}
		var s3opts []func(*s3v2.Options)
		if s.S3Endpoint != "" {
			s3opts = append(s3opts, aws.WithS3BaseEndpoint(s.S3Endpoint))
		}
		return blobstore.NewS3Bucket(aws.NewS3(cfg, s3opts...), s.S3Bucket, s.S3Prefix), nil
	case "memory":
		return blobstore.NewMemBucket(), nil
	default:
		return nil, fmt.Errorf("%w: blob.backend=%q", ErrUnknown, s.Blob)
	}
}
