// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/memoctl/internal/config"
	"github.com/staranto/memoctl/internal/meta"
)

// InitApp builds the memoctl command tree for args.
func InitApp(ctx context.Context, args []string) (*cli.Command, error) {
	sd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	// The arg[1] immediately following the binary is the subcommand and also
	// the namespace used when retrieving config values. It could be -h/--help,
	// so ignore it if it appears to be a flag.
	var ns string
	if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		ns = args[1]
	}

	cfg, _ := config.Load(ns)
	return NewApp(meta.Meta{
		Args:        args,
		Config:      cfg,
		Context:     ctx,
		StartingDir: sd,
	}), nil
}

// NewApp builds the command tree around m.
func NewApp(m meta.Meta) *cli.Command {
	app := &cli.Command{
		Name:      "memoctl",
		Usage:     "Memoized program execution",
		Writer:    m.Out(),
		ErrWriter: m.Err(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "memoctl version info",
				HideDefault: true,
			},
		},
	}

	app.Commands = append(app.Commands,
		ClearCommandBuilder(m),
		CompletionCommandBuilder(m),
		ExecCommandBuilder(m),
		LsCommandBuilder(m),
		RmCommandBuilder(m),
		StatCommandBuilder(m),
		SweepCommandBuilder(m),
	)

	// Make sure flags are sorted for the --help text.
	for _, cmd := range app.Commands {
		sort.Slice(cmd.Flags, func(i, j int) bool {
			return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
		})
	}

	return app
}
