// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package backend opens the metadata store and blob store a cache runs on,
// as chosen by configuration.
package backend
