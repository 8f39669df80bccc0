// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package redisstore keeps cache records in redis.
//
// Layout, for a store with prefix P:
//
//	P:rec:<id>        JSON encoded metastore.Record
//	P:idx:<digest>    set of record ids sharing an identity
//	P:all             set of every record id
package redisstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/staranto/memoctl/internal/callkey"
	"github.com/staranto/memoctl/internal/metastore"
)

const DefaultPrefix = "memoctl"

// Store is a redis backed metastore.Store.
type Store struct {
	pool   *redis.Pool
	prefix string
}

var _ metastore.Store = (*Store)(nil)

// New returns a store using pool. Keys are namespaced by prefix, or
// DefaultPrefix when prefix is empty.
func New(pool *redis.Pool, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{pool: pool, prefix: prefix}
}

// Dial returns a store backed by a new pool of connections to addr.
func Dial(addr, prefix string) *Store {
	return New(&redis.Pool{
		MaxIdle:     4,
		IdleTimeout: 5 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr)
		},
	}, prefix)
}

func (s *Store) recKey(id string) string { return s.prefix + ":rec:" + id }
func (s *Store) allKey() string         { return s.prefix + ":all" }

func (s *Store) idxKey(id callkey.Identity) string {
	return s.prefix + ":idx:" + id.Digest()
}

func (s *Store) FindOne(ctx context.Context, id callkey.Identity) (*metastore.Record, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ids, err := redis.Strings(redis.DoContext(conn, ctx, "SMEMBERS", s.idxKey(id)))
	if err != nil {
		return nil, fmt.Errorf("finding record: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	for _, rid := range ids {
		b, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", s.recKey(rid)))
		if err == redis.ErrNil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("finding record: %w", err)
		}
		rec, err := metastore.Unmarshal(b)
		if err != nil {
			return nil, err
		}
		return &rec, nil
	}
	return nil, nil
}

func (s *Store) FindAll(ctx context.Context) ([]metastore.Record, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	recs, err := s.load(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return recs, nil
}

// load reads every record in the all set, oldest first.
func (s *Store) load(ctx context.Context, conn redis.Conn) ([]metastore.Record, error) {
	ids, err := redis.Strings(redis.DoContext(conn, ctx, "SMEMBERS", s.allKey()))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, s.recKey(id))
	}
	values, err := redis.ByteSlices(redis.DoContext(conn, ctx, "MGET", args...))
	if err != nil {
		return nil, err
	}

	out := make([]metastore.Record, 0, len(values))
	for _, b := range values {
		if b == nil {
			continue
		}
		rec, err := metastore.Unmarshal(b)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, rec metastore.Record) (string, error) {
	rec, err := metastore.Prepare(rec)
	if err != nil {
		return "", err
	}
	b, err := metastore.Marshal(rec)
	if err != nil {
		return "", err
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	_ = conn.Send("MULTI")
	_ = conn.Send("SET", s.recKey(rec.ID), b)
	_ = conn.Send("SADD", s.idxKey(rec.Identity), rec.ID)
	_ = conn.Send("SADD", s.allKey(), rec.ID)
	if _, err := redis.DoContext(conn, ctx, "EXEC"); err != nil {
		return "", fmt.Errorf("inserting record: %w", err)
	}
	return rec.ID, nil
}

func (s *Store) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, s.recKey(id))
	}
	values, err := redis.ByteSlices(redis.DoContext(conn, ctx, "MGET", args...))
	if err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}

	var recs []metastore.Record
	for _, b := range values {
		if b == nil {
			continue
		}
		rec, err := metastore.Unmarshal(b)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	if len(recs) == 0 {
		return nil
	}

	_ = conn.Send("MULTI")
	for _, rec := range recs {
		_ = conn.Send("DEL", s.recKey(rec.ID))
		_ = conn.Send("SREM", s.idxKey(rec.Identity), rec.ID)
		_ = conn.Send("SREM", s.allKey(), rec.ID)
	}
	if _, err := redis.DoContext(conn, ctx, "EXEC"); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	return nil
}

// Drop removes every key under the store's prefix.
func (s *Store) Drop(ctx context.Context) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	var keys []interface{}
	cursor := 0
	for {
		reply, err := redis.Values(redis.DoContext(conn, ctx, "SCAN", cursor, "MATCH", s.prefix+":*", "COUNT", 500))
		if err != nil {
			return fmt.Errorf("dropping records: %w", err)
		}
		var batch []string
		if _, err := redis.Scan(reply, &cursor, &batch); err != nil {
			return fmt.Errorf("dropping records: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, k)
		}
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if _, err := redis.DoContext(conn, ctx, "DEL", keys...); err != nil {
		return fmt.Errorf("dropping records: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.pool.Close()
}
