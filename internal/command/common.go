// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/staranto/memoctl/internal/attrs"
	"github.com/staranto/memoctl/internal/backend"
	"github.com/staranto/memoctl/internal/memo"
	"github.com/staranto/memoctl/internal/meta"
	"github.com/staranto/memoctl/internal/output"
)

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// ShortCircuitTLDR checks the --tldr flag and, if present and available,
// runs `tldr memoctl-<subcmd>` and returns true so the caller can exit early.
func ShortCircuitTLDR(ctx context.Context, cmd *cli.Command, subcmd string) bool {
	if !cmd.Bool("tldr") {
		return false
	}
	if _, err := exec.LookPath("tldr"); err == nil {
		c := exec.CommandContext(ctx, "tldr", "memoctl-"+subcmd)
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		_ = c.Run()
	}
	return true
}

// BuildAttrs constructs an AttrList from defaults plus --attrs, then applies
// the global transform spec.
func BuildAttrs(cmd *cli.Command, defaults ...string) (attrs.AttrList, error) {
	var al attrs.AttrList
	for _, d := range defaults {
		if err := al.Set(d); err != nil {
			return nil, err
		}
	}
	if extras := cmd.String("attrs"); extras != "" {
		if err := al.Set(extras); err != nil {
			return nil, fmt.Errorf("--attrs: %w", err)
		}
	}
	al.SetGlobalTransformSpec()
	return al, nil
}

// OutputOptions gathers the presentation flags. Color follows the terminal
// unless --color or --no-color is given.
func OutputOptions(cmd *cli.Command) output.Options {
	color := cmd.Bool("color")
	if !cmd.IsSet("color") {
		color = output.IsTerminal(GetMeta(cmd).Out())
	}
	return output.Options{
		Format: cmd.String("output"),
		Filter: cmd.String("filter"),
		Sort:   cmd.String("sort"),
		Color:  color,
		Titles: cmd.Bool("titles"),
	}
}

// Emit marshals v to JSON and renders it through the output package.
func Emit(cmd *cli.Command, v any, al attrs.AttrList) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return output.Render(raw, al, OutputOptions(cmd), GetMeta(cmd).Out())
}

// Settings are the config file's backend settings with the storage flags
// applied on top.
func Settings(cmd *cli.Command) backend.Settings {
	s := backend.FromConfig()
	s.Root = cmd.String("root")
	s.Meta = cmd.String("meta")
	s.RedisAddr = cmd.String("redis")
	s.Blob = cmd.String("blob")
	s.Codec = cmd.String("codec")
	s.Compression = cmd.String("compression")
	return s
}

// OpenCache opens the configured backend. The returned func closes it.
func OpenCache(ctx context.Context, cmd *cli.Command, reg prometheus.Registerer) (*memo.Cache, func(), error) {
	meta, blobs, err := backend.Open(ctx, Settings(cmd), log.Log)
	if err != nil {
		return nil, nil, err
	}

	opts := []memo.Option{memo.WithLogger(log.Log)}
	if reg != nil {
		opts = append(opts, memo.WithRegisterer(reg))
	}
	closer := func() {
		if err := meta.Close(); err != nil {
			log.WithError(err).Warn("closing metadata store")
		}
	}
	return memo.New(meta, blobs, opts...), closer, nil
}

// Builder wires the parts every memoctl subcommand shares.
type Builder struct {
	Name      string
	Usage     string
	UsageText string
	Flags     []cli.Flag
	Action    func(context.Context, *cli.Command) error
	Meta      meta.Meta
	// Listing commands get the presentation flags.
	Listing bool
}

func newTLDRFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:        "tldr",
		Usage:       "show tldr page",
		Hidden:      !pathHas("tldr"),
		HideDefault: true,
	}
}

// Build returns a configured cli.Command from the builder.
func (b *Builder) Build() *cli.Command {
	flags := append([]cli.Flag{newTLDRFlag()}, b.Flags...)
	flags = append(flags, NewStorageFlags(b.Meta.Config)...)
	if b.Listing {
		flags = append(flags, NewGlobalFlags(b.Meta.Config, b.Name)...)
	}

	name := b.Name
	action := b.Action
	return &cli.Command{
		Name:      b.Name,
		Usage:     b.Usage,
		UsageText: b.UsageText,
		Metadata: map[string]any{
			"meta": b.Meta,
		},
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log.Debugf("Executing action for %v", GetMeta(cmd).Args)
			if ShortCircuitTLDR(ctx, cmd, name) {
				return nil
			}
			return action(ctx, cmd)
		},
	}
}

// pathHas reports whether target is on PATH.
func pathHas(target string) bool {
	_, err := exec.LookPath(target)
	return err == nil
}
