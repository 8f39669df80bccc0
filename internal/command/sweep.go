// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/memoctl/internal/meta"
)

type sweepResult struct {
	Checked int      `json:"checked"`
	Pruned  []string `json:"pruned"`
	Orphans []string `json:"orphans"`
}

// SweepCommandAction prunes records whose blob is gone and, with --orphans,
// deletes blobs that no record refers to.
func SweepCommandAction(ctx context.Context, cmd *cli.Command) error {
	al, err := BuildAttrs(cmd, "checked", "pruned", "orphans")
	if err != nil {
		return err
	}

	cache, closer, err := OpenCache(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer closer()

	report, err := cache.Reconcile(ctx)
	if err != nil {
		return err
	}
	res := sweepResult{Checked: report.Checked, Pruned: report.Pruned}

	if cmd.Bool("orphans") {
		orphans, err := cache.Orphans(ctx)
		if err != nil {
			return err
		}
		for _, id := range orphans {
			if err := cache.Blobs().Delete(ctx, id); err != nil {
				log.WithError(err).Warnf("failed to delete blob %s", id)
				continue
			}
			res.Orphans = append(res.Orphans, id)
		}
	}

	return Emit(cmd, []sweepResult{res}, al)
}

func SweepCommandBuilder(meta meta.Meta) *cli.Command {
	return (&Builder{
		Name:    "sweep",
		Usage:   "remove records whose result blob is missing",
		Meta:    meta,
		Listing: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "orphans",
				Usage: "also delete blobs that no record refers to",
			},
		},
		Action: SweepCommandAction,
	}).Build()
}
