// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/staranto/memoctl/internal/meta"
)

func ClearCommandAction(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return errors.New("clear removes every cached result; rerun with --yes")
	}

	cache, closer, err := OpenCache(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer closer()

	if err := cache.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(GetMeta(cmd).Err(), "cache cleared")
	return nil
}

func ClearCommandBuilder(meta meta.Meta) *cli.Command {
	return (&Builder{
		Name:  "clear",
		Usage: "delete every record and blob",
		Meta:  meta,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "confirm",
			},
		},
		Action: ClearCommandAction,
	}).Build()
}
