// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = "# memoctl rm\n\n" +
	"## Short description\n\n" +
	"Remove cached results\nby id.\n\n" +
	"More text.\n\n" +
	"## Quick examples\n\n" +
	"```sh\n" +
	"# Remove one result\n" +
	"memoctl rm   0190aaaa\n\n" +
	"memoctl rm a b\n" +
	"```\n\n" +
	"## Flags\n"

func TestShortDescription(t *testing.T) {
	assert.Equal(t, "Remove cached results by id.", shortDescription(page))
	assert.Equal(t, "memoctl ls.", shortDescription("# memoctl ls\n\nbody\n"))
}

func TestQuickExamples(t *testing.T) {
	exs := quickExamples(page)
	assert.Equal(t, []example{
		{Desc: "Remove one result", Cmd: "memoctl rm 0190aaaa"},
		{Desc: "Example", Cmd: "memoctl rm a b"},
	}, exs)
	assert.Empty(t, quickExamples("# x\n"))
}

func TestTLDR(t *testing.T) {
	got := tldr("rm", "", nil)
	assert.Contains(t, got, "# memoctl-rm\n\n> memoctl rm\n")
	assert.Contains(t, got, "`memoctl rm --help`")
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	cmds := filepath.Join(root, "docs", "commands")
	require.NoError(t, os.MkdirAll(cmds, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cmds, "rm.md"), []byte(page), 0o644))

	require.NoError(t, run(root, true))

	tl, err := os.ReadFile(filepath.Join(root, "docs", "tldr", "memoctl-rm.md"))
	require.NoError(t, err)
	assert.Contains(t, string(tl), "- Remove one result:\n\n`memoctl rm 0190aaaa`\n")
	assert.FileExists(t, filepath.Join(root, "docs", "man", "share", "man1", "memoctl-rm.1"))

	// Unchanged content is not rewritten.
	require.NoError(t, run(root, true))

	assert.Error(t, run(t.TempDir(), true))
}
