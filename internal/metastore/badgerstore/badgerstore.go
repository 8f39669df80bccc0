// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package badgerstore keeps cache records in an embedded badger database.
//
// Layout:
//
//	rec/<id>              JSON encoded metastore.Record
//	idx/<digest>/<id>     empty; one per record, digest is Identity.Digest()
//
// Record ids are UUIDv7 strings, so iterating either prefix visits records in
// insertion order.
package badgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/apex/log"
	badger "github.com/dgraph-io/badger/v3"

	"github.com/staranto/memoctl/internal/callkey"
	"github.com/staranto/memoctl/internal/metastore"
)

const (
	recPrefix = "rec/"
	idxPrefix = "idx/"

	// Conflicting transactions are retried this many times.
	maxRetries = 5
)

// Store is a badger backed metastore.Store.
type Store struct {
	db *badger.DB
}

var _ metastore.Store = (*Store)(nil)

// Options configures Open.
type Options struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	// Logger receives badger's own log output. Defaults to log.Log.
	Logger log.Interface
}

// Open opens (creating if needed) the database described by o.
func Open(o Options) (*Store, error) {
	if !o.InMemory && o.Dir == "" {
		return nil, errors.New("badgerstore: no directory given")
	}
	if o.Logger == nil {
		o.Logger = log.Log
	}

	opts := badger.DefaultOptions(o.Dir).
		WithInMemory(o.InMemory).
		WithLogger(&logger{o.Logger.WithField("store", "badger")})
	if o.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database %q: %w", o.Dir, err)
	}
	return &Store{db: db}, nil
}

func recKey(id string) []byte { return []byte(recPrefix + id) }

func idxPrefixFor(id callkey.Identity) []byte {
	return []byte(idxPrefix + id.Digest() + "/")
}

func (s *Store) FindOne(ctx context.Context, id callkey.Identity) (*metastore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := idxPrefixFor(id)
	var found *metastore.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts from the largest key at or below the seek key.
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			rid := string(it.Item().Key()[len(prefix):])
			rec, err := getRecord(txn, rid)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			found = &rec
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("finding record: %w", err)
	}
	return found, nil
}

func getRecord(txn *badger.Txn, id string) (metastore.Record, error) {
	item, err := txn.Get(recKey(id))
	if err != nil {
		return metastore.Record{}, err
	}
	b, err := item.ValueCopy(nil)
	if err != nil {
		return metastore.Record{}, err
	}
	return metastore.Unmarshal(b)
}

func (s *Store) FindAll(ctx context.Context) ([]metastore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []metastore.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			b, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := metastore.Unmarshal(b)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
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
	if err := ctx.Err(); err != nil {
		return "", err
	}

	idx := append(idxPrefixFor(rec.Identity), rec.ID...)
	err = s.update(func(txn *badger.Txn) error {
		if err := txn.Set(recKey(rec.ID), b); err != nil {
			return err
		}
		return txn.Set(idx, nil)
	})
	if err != nil {
		return "", fmt.Errorf("inserting record: %w", err)
	}
	return rec.ID, nil
}

func (s *Store) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(func(txn *badger.Txn) error {
		for _, id := range ids {
			rec, err := getRecord(txn, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := txn.Delete(recKey(id)); err != nil {
				return err
			}
			if err := txn.Delete(append(idxPrefixFor(rec.Identity), id...)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	return nil
}

func (s *Store) Drop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("dropping records: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("dropping records: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("dropping records: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// logger routes badger's log output through apex/log. Badger is chatty at
// info level, so its info messages are demoted to debug.
type logger struct {
	l log.Interface
}

func (b *logger) Errorf(f string, v ...interface{})   { b.l.Errorf(f, v...) }
func (b *logger) Warningf(f string, v ...interface{}) { b.l.Warnf(f, v...) }
func (b *logger) Infof(f string, v ...interface{})    { b.l.Debugf(f, v...) }
func (b *logger) Debugf(f string, v ...interface{})   { b.l.Debugf(f, v...) }
