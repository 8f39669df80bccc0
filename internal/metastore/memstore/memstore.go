// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package memstore is an in-process metastore.Store. Records are lost when the
// process exits.
package memstore

import (
	"context"
	"sync"

	"github.com/staranto/memoctl/internal/callkey"
	"github.com/staranto/memoctl/internal/metastore"
)

// Store keeps records in memory.
type Store struct {
	mu      sync.RWMutex
	records map[string]metastore.Record
	// index maps an identity digest to record ids.
	index map[string]map[string]struct{}
}

var _ metastore.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		records: make(map[string]metastore.Record),
		index:   make(map[string]map[string]struct{}),
	}
}

func (s *Store) FindOne(_ context.Context, id callkey.Identity) (*metastore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *metastore.Record
	for rid := range s.index[id.Digest()] {
		rec := s.records[rid]
		if best == nil || rec.ID > best.ID {
			r := rec
			best = &r
		}
	}
	return best, nil
}

func (s *Store) FindAll(_ context.Context) ([]metastore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]metastore.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	metastore.SortByID(out)
	return out, nil
}

func (s *Store) Insert(_ context.Context, rec metastore.Record) (string, error) {
	rec, err := metastore.Prepare(rec)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = rec
	digest := rec.Identity.Digest()
	if s.index[digest] == nil {
		s.index[digest] = make(map[string]struct{})
	}
	s.index[digest][rec.ID] = struct{}{}
	return rec.ID, nil
}

func (s *Store) DeleteByIDs(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		rec, ok := s.records[id]
		if !ok {
			continue
		}
		delete(s.records, id)
		digest := rec.Identity.Digest()
		delete(s.index[digest], id)
		if len(s.index[digest]) == 0 {
			delete(s.index, digest)
		}
	}
	return nil
}

func (s *Store) Drop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]metastore.Record)
	s.index = make(map[string]map[string]struct{})
	return nil
}

func (s *Store) Close() error { return nil }
