// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package callable defines the capability a unit of work must expose to be
// memoized: a stable name, a declaring module, a parameter list, its source
// text and a way to invoke it with arguments bound to named parameters.
//
// Two bindings are provided. Of wraps an ordinary Go func and locates its
// source with go/parser using the file and line the runtime reports for the
// func's entry point. Executable wraps a program or script on disk, treating
// the file contents as its source.
package callable
