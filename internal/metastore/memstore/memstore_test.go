// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package memstore

import (
	"testing"

	"github.com/staranto/memoctl/internal/metastore"
	"github.com/staranto/memoctl/internal/metastore/metastoretest"
)

func TestConformance(t *testing.T) {
	metastoretest.Run(t, func(t *testing.T) metastore.Store {
		return New()
	})
}
