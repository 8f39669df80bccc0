// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/staranto/memoctl/internal/callable"
	"github.com/staranto/memoctl/internal/callkey"
	"github.com/staranto/memoctl/internal/memo"
	"github.com/staranto/memoctl/internal/meta"
)

// ExecCommandAction runs the program named by the first argument through the
// cache and writes its stdout, whether computed or cached.
func ExecCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)

	args := cmd.Args().Slice()
	if len(args) == 0 {
		return errors.New("exec: no command given")
	}

	dir := cmd.String("dir")
	if dir == "" {
		dir = m.StartingDir
	}
	prog, err := callable.Executable(args[0], dir)
	if err != nil {
		return err
	}
	prog.Stderr = m.Err()

	reg := prometheus.NewRegistry()
	cache, closer, err := OpenCache(ctx, cmd, reg)
	if err != nil {
		return err
	}
	defer closer()

	argv := make([]any, 0, len(args)-1)
	for _, a := range args[1:] {
		argv = append(argv, a)
	}

	if cmd.Bool("refresh") {
		if err := forget(ctx, cache, prog, argv); err != nil {
			return err
		}
	}

	stdout, out, err := memo.Do[[]byte](ctx, cache, prog, argv...)
	if err != nil {
		return err
	}
	log.WithField("id", out.ID).Debugf("exec %s: %s", prog.Name(), out.Status)

	if cmd.Bool("status") {
		fmt.Fprintf(m.Err(), "memoctl: %s %s\n", out.Status, out.ID)
	}
	if out.Warning != nil {
		fmt.Fprintf(m.Err(), "memoctl: warning: %v\n", out.Warning)
	}

	if path := cmd.String("metrics-file"); path != "" {
		if err := prometheus.WriteToTextfile(path, reg); err != nil {
			log.WithError(err).Warnf("writing metrics to %s", path)
		}
	}

	_, err = m.Out().Write(stdout)
	return err
}

// forget removes every record of the call so it is computed again.
func forget(ctx context.Context, cache *memo.Cache, prog *callable.Program, argv []any) error {
	bound, err := callable.Bind(prog, argv...)
	if err != nil {
		return err
	}
	id, err := callkey.Build(prog, bound)
	if err != nil {
		return err
	}
	for {
		rec, err := cache.Meta().FindOne(ctx, id)
		if err != nil || rec == nil {
			return err
		}
		if err := cache.Remove(ctx, rec.ID); err != nil {
			return err
		}
	}
}

func ExecCommandBuilder(meta meta.Meta) *cli.Command {
	return (&Builder{
		Name:      "exec",
		Usage:     "run a program, reusing its cached stdout when nothing changed",
		UsageText: "memoctl exec [options] -- PROGRAM [ARGS...]",
		Meta:      meta,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "working directory for the program. Part of the cache key",
			},
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "discard any cached result and run the program",
			},
			&cli.BoolFlag{
				Name:  "status",
				Usage: "report hit or miss on stderr",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "write cache metrics in Prometheus text format to this file",
			},
		},
		Action: ExecCommandAction,
	}).Build()
}
