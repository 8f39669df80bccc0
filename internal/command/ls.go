// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/staranto/memoctl/internal/blobstore"
	"github.com/staranto/memoctl/internal/memo"
	"github.com/staranto/memoctl/internal/meta"
	"github.com/staranto/memoctl/internal/metastore"
)

// Row is a record as listed by ls: the record plus what the blob store knows
// about its blob.
type Row struct {
	metastore.Record
	Size    *int64 `json:"size"`
	Missing bool   `json:"missing"`
}

// Rows returns every record, oldest first, with its blob size.
func Rows(ctx context.Context, cache *memo.Cache) ([]Row, error) {
	recs, err := cache.Records(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(recs))
	for _, rec := range recs {
		row := Row{Record: rec}
		info, err := cache.Blobs().Stat(ctx, rec.ID)
		switch {
		case errors.Is(err, blobstore.ErrNotFound):
			row.Missing = true
		case err != nil:
			return nil, err
		default:
			row.Size = &info.Size
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func LsCommandAction(ctx context.Context, cmd *cli.Command) error {
	al, err := BuildAttrs(cmd, "id", "name", "module", "code::12", "created_at::h", "size::h")
	if err != nil {
		return err
	}

	cache, closer, err := OpenCache(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer closer()

	rows, err := Rows(ctx, cache)
	if err != nil {
		return err
	}
	return Emit(cmd, rows, al)
}

func LsCommandBuilder(meta meta.Meta) *cli.Command {
	return (&Builder{
		Name:      "ls",
		Usage:     "list cached results",
		UsageText: "memoctl ls [--filter EXPR] [--attrs SPEC] [--output FORMAT]",
		Meta:      meta,
		Listing:   true,
		Action:    LsCommandAction,
	}).Build()
}
