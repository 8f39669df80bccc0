// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package metastoretest holds the behavior every metastore.Store must share.
package metastoretest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/memoctl/internal/callkey"
	"github.com/staranto/memoctl/internal/metastore"
)

// Identity returns a valid identity whose arguments hash is derived from n.
func Identity(n int) callkey.Identity {
	return callkey.Identity{
		Name:          "f",
		Module:        "example.com/pkg",
		Signature:     "(n int) int",
		ArgumentsHash: fmt.Sprintf("%064x", n),
	}
}

// Run exercises newStore's implementation. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) metastore.Store) {
	ctx := context.Background()

	t.Run("insert and find", func(t *testing.T) {
		s := newStore(t)

		got, err := s.FindOne(ctx, Identity(1))
		require.NoError(t, err)
		assert.Nil(t, got)

		id, err := s.Insert(ctx, metastore.Record{Identity: Identity(1), CodeHash: "c1"})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		got, err = s.FindOne(ctx, Identity(1))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, Identity(1), got.Identity)
		assert.Equal(t, "c1", got.CodeHash)
		assert.False(t, got.CreatedAt.IsZero())

		other, err := s.FindOne(ctx, Identity(2))
		require.NoError(t, err)
		assert.Nil(t, other)
	})

	t.Run("duplicates prefer the newest", func(t *testing.T) {
		s := newStore(t)

		oldID, err := s.Insert(ctx, metastore.Record{Identity: Identity(1), CodeHash: "old"})
		require.NoError(t, err)
		newID, err := s.Insert(ctx, metastore.Record{Identity: Identity(1), CodeHash: "new"})
		require.NoError(t, err)
		assert.NotEqual(t, oldID, newID)

		got, err := s.FindOne(ctx, Identity(1))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, newID, got.ID)
		assert.Equal(t, "new", got.CodeHash)

		require.NoError(t, s.DeleteByIDs(ctx, []string{newID}))
		got, err = s.FindOne(ctx, Identity(1))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, oldID, got.ID)
	})

	t.Run("find all and delete", func(t *testing.T) {
		s := newStore(t)

		var ids []string
		for i := 0; i < 5; i++ {
			id, err := s.Insert(ctx, metastore.Record{Identity: Identity(i), CodeHash: "c"})
			require.NoError(t, err)
			ids = append(ids, id)
		}

		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, ids, metastore.IDs(all))

		require.NoError(t, s.DeleteByIDs(ctx, []string{ids[1], ids[3], "no-such-id"}))
		all, err = s.FindAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{ids[0], ids[2], ids[4]}, metastore.IDs(all))

		got, err := s.FindOne(ctx, Identity(1))
		require.NoError(t, err)
		assert.Nil(t, got)

		require.NoError(t, s.DeleteByIDs(ctx, nil))
	})

	t.Run("drop", func(t *testing.T) {
		s := newStore(t)

		for i := 0; i < 3; i++ {
			_, err := s.Insert(ctx, metastore.Record{Identity: Identity(i), CodeHash: "c"})
			require.NoError(t, err)
		}
		require.NoError(t, s.Drop(ctx))

		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		got, err := s.FindOne(ctx, Identity(0))
		require.NoError(t, err)
		assert.Nil(t, got)

		// The store stays usable after a drop.
		_, err = s.Insert(ctx, metastore.Record{Identity: Identity(0), CodeHash: "c"})
		require.NoError(t, err)
	})

	t.Run("insert rejects unrepresentable records", func(t *testing.T) {
		s := newStore(t)

		bad := Identity(1)
		bad.Name = ""
		_, err := s.Insert(ctx, metastore.Record{Identity: bad, CodeHash: "c"})
		assert.ErrorIs(t, err, metastore.ErrEncoding)

		bad = Identity(1)
		bad.Signature = "(\xff)"
		_, err = s.Insert(ctx, metastore.Record{Identity: bad, CodeHash: "c"})
		assert.ErrorIs(t, err, metastore.ErrEncoding)

		_, err = s.Insert(ctx, metastore.Record{Identity: Identity(1)})
		assert.ErrorIs(t, err, metastore.ErrEncoding)

		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("concurrent inserts", func(t *testing.T) {
		s := newStore(t)

		const n = 16
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.Insert(ctx, metastore.Record{Identity: Identity(i % 4), CodeHash: "c"})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, n)
	})
}
