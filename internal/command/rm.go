// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/staranto/memoctl/internal/meta"
)

func RmCommandAction(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return errors.New("rm: no record ids given")
	}

	cache, closer, err := OpenCache(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer closer()

	return cache.Remove(ctx, ids...)
}

func RmCommandBuilder(meta meta.Meta) *cli.Command {
	return (&Builder{
		Name:      "rm",
		Usage:     "remove cached results by record id",
		UsageText: "memoctl rm ID [ID...]",
		Meta:      meta,
		Action:    RmCommandAction,
	}).Build()
}
