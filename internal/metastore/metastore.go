// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package metastore defines the queryable store of cache records. A record
// links a call identity and the code hash it was computed with to the id of a
// blob holding the result.
//
// Implementations live in subpackages: memstore (in-process), badgerstore
// (embedded badger database) and redisstore (redis via redigo).
package metastore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/staranto/memoctl/internal/callkey"
)

// ErrEncoding is returned by Insert for records the store cannot represent.
var ErrEncoding = callkey.ErrEncoding

// Record is one cache record.
type Record struct {
	// ID is assigned by Insert and names the result blob.
	ID string `json:"id"`
	callkey.Identity
	CodeHash  string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the metadata store. Implementations are safe for concurrent use
// and make each single operation atomic, but no operation spans stores.
type Store interface {
	// FindOne returns a record matching id, or nil. Duplicates are tolerated;
	// the most recently inserted one wins.
	FindOne(ctx context.Context, id callkey.Identity) (*Record, error)
	// FindAll returns every record, oldest first.
	FindAll(ctx context.Context) ([]Record, error)
	// Insert stores rec under a new id and returns that id. rec.ID is ignored.
	Insert(ctx context.Context, rec Record) (string, error)
	// DeleteByIDs removes the named records. Unknown ids are ignored.
	DeleteByIDs(ctx context.Context, ids []string) error
	// Drop removes every record.
	Drop(ctx context.Context) error
	Close() error
}

// NewID returns a fresh record id. Ids are UUIDv7 strings, so lexical order is
// creation order.
func NewID() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Prepare validates rec and fills in a new ID and, if unset, CreatedAt. Store
// implementations call it at the start of Insert.
func Prepare(rec Record) (Record, error) {
	if err := rec.Identity.Validate(); err != nil {
		return Record{}, err
	}
	if rec.CodeHash == "" {
		return Record{}, fmt.Errorf("%w: code hash is empty", ErrEncoding)
	}
	if !utf8.ValidString(rec.CodeHash) {
		return Record{}, fmt.Errorf("%w: code hash is not valid UTF-8", ErrEncoding)
	}
	id, err := NewID()
	if err != nil {
		return Record{}, err
	}
	rec.ID = id
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec, nil
}

// Marshal encodes rec as stored by the persistent implementations.
func Marshal(rec Record) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return b, nil
}

// Unmarshal decodes a record written by Marshal.
func Unmarshal(b []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, fmt.Errorf("decoding record: %w", err)
	}
	return rec, nil
}

// SortByID orders records oldest first.
func SortByID(recs []Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}

// IDs returns the ids of recs.
func IDs(recs []Record) []string {
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	return ids
}
