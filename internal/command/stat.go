// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/staranto/memoctl/internal/memo"
	"github.com/staranto/memoctl/internal/meta"
)

// Stats summarizes a cache.
type Stats struct {
	Meta    string `json:"meta"`
	Blob    string `json:"blob"`
	Records int    `json:"records"`
	Blobs   int    `json:"blobs"`
	Bytes   int64  `json:"bytes"`
	Missing int    `json:"missing"`
	Orphans int    `json:"orphans"`
}

// Collect counts records, their blobs and the blobs no record refers to.
func Collect(ctx context.Context, cache *memo.Cache) (Stats, error) {
	var st Stats

	rows, err := Rows(ctx, cache)
	if err != nil {
		return st, err
	}
	st.Records = len(rows)
	for _, r := range rows {
		if r.Missing {
			st.Missing++
			continue
		}
		st.Blobs++
		st.Bytes += *r.Size
	}

	orphans, err := cache.Orphans(ctx)
	if err != nil {
		return st, err
	}
	st.Orphans = len(orphans)
	for _, id := range orphans {
		if info, err := cache.Blobs().Stat(ctx, id); err == nil {
			st.Blobs++
			st.Bytes += info.Size
		}
	}
	return st, nil
}

func StatCommandAction(ctx context.Context, cmd *cli.Command) error {
	al, err := BuildAttrs(cmd, "meta", "blob", "records", "blobs", "bytes::h", "missing", "orphans")
	if err != nil {
		return err
	}

	cache, closer, err := OpenCache(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer closer()

	st, err := Collect(ctx, cache)
	if err != nil {
		return err
	}
	s := Settings(cmd)
	st.Meta, st.Blob = s.Meta, s.Blob

	return Emit(cmd, []Stats{st}, al)
}

func StatCommandBuilder(meta meta.Meta) *cli.Command {
	return (&Builder{
		Name:    "stat",
		Usage:   "summarize the cache",
		Meta:    meta,
		Listing: true,
		Action:  StatCommandAction,
	}).Build()
}
