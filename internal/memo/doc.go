// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package memo memoizes function results.
//
// Run derives a call's identity, looks for a record of it in the metadata
// store, and returns the stored blob when the record was computed by the
// function's current source. Otherwise the function runs and its result is
// stored: the record first, then the blob named by the record's id. Storing
// is best effort. A record left without its blob is pruned by Reconcile, which
// Run triggers itself when it meets one.
package memo
