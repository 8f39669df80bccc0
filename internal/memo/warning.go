// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package memo

import (
	"fmt"

	"github.com/staranto/memoctl/internal/callkey"
)

// Steps of storing a computed result.
const (
	OpEncode = "encode"
	OpInsert = "insert"
	OpWrite  = "write"
)

// CacheFailWarning reports that a computed result could not be cached. It is
// never returned as Run's error.
type CacheFailWarning struct {
	// Op is the step that failed: OpEncode, OpInsert or OpWrite.
	Op       string
	Identity callkey.Identity
	// ID is the record inserted before the failure, if any.
	ID  string
	Err error
}

func (w *CacheFailWarning) Error() string {
	return fmt.Sprintf("caching %s failed (%s): %v", w.Identity.Name, w.Op, w.Err)
}

func (w *CacheFailWarning) Unwrap() error { return w.Err }
