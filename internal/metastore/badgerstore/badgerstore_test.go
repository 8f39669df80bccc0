// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package badgerstore

import (
	"context"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/memoctl/internal/metastore"
	"github.com/staranto/memoctl/internal/metastore/metastoretest"
)

func quietLogger() log.Interface {
	return &log.Logger{Handler: discard.New(), Level: log.ErrorLevel}
}

func TestConformance(t *testing.T) {
	metastoretest.Run(t, func(t *testing.T) metastore.Store {
		s, err := Open(Options{InMemory: true, Logger: quietLogger()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}

func TestRecordsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(Options{Dir: dir, Logger: quietLogger()})
	require.NoError(t, err)
	id, err := s.Insert(ctx, metastore.Record{Identity: metastoretest.Identity(7), CodeHash: "c"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(Options{Dir: dir, Logger: quietLogger()})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.FindOne(ctx, metastoretest.Identity(7))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
}

func TestCanceledContext(t *testing.T) {
	s, err := Open(Options{InMemory: true, Logger: quietLogger()})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.FindOne(ctx, metastoretest.Identity(1))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Insert(ctx, metastore.Record{Identity: metastoretest.Identity(1), CodeHash: "c"})
	assert.ErrorIs(t, err, context.Canceled)
}
