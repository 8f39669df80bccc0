// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/memoctl/internal/backend"
	"github.com/staranto/memoctl/internal/config"
)

// NewGlobalFlags returns the presentation flags of the listing commands. ns
// is the command name; `<ns>.<flag>` in the config file beats `<flag>`.
func NewGlobalFlags(cfg config.Type, ns string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "attrs",
			Aliases: []string{"a"},
			Usage:   "comma-separated list of attributes to include in results",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output. Defaults to on for a terminal",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("MEMOCTL_COLOR"),
				yaml.YAML(ns+".color", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("color", altsrc.StringSourcer(cfg.Source)),
			),
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "comma-separated list of filters to apply to results",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format (text, json, yaml, raw)",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+".output", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("output", altsrc.StringSourcer(cfg.Source)),
			),
			Value: "text",
			Validator: func(value string) error {
				return FlagValidators(value, OutputValidator)
			},
		},
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "comma-separated list of attributes to sort the results by",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+".sort", altsrc.StringSourcer(cfg.Source)),
			),
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+".titles", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("titles", altsrc.StringSourcer(cfg.Source)),
			),
			Value: false,
		},
	}
}

// NewStorageFlags returns the flags that pick the backend. Each reads its env
// variable, then the config key that backend.FromConfig uses.
func NewStorageFlags(cfg config.Type) []cli.Flag {
	def := backend.FromConfig()
	return []cli.Flag{
		storageFlag(cfg, "root", "MEMOCTL_ROOT", "storage.root", def.Root,
			"storage root for metadata and blobs", nil),
		storageFlag(cfg, "meta", "MEMOCTL_META", "metadata.backend", def.Meta,
			"metadata backend (badger, redis, memory)", OneOf("badger", "redis", "memory")),
		storageFlag(cfg, "redis", "MEMOCTL_REDIS", "metadata.redis.addr", def.RedisAddr,
			"redis address for the redis metadata backend", nil),
		storageFlag(cfg, "blob", "MEMOCTL_BLOB", "blob.backend", def.Blob,
			"blob backend (fs, s3, memory)", OneOf("fs", "s3", "memory")),
		storageFlag(cfg, "codec", "MEMOCTL_CODEC", "blob.codec", def.Codec,
			"blob codec for new results (msgpack, json, cbor)", CodecValidator),
		storageFlag(cfg, "compression", "MEMOCTL_COMPRESSION", "blob.compression", def.Compression,
			"blob compression for new results (none, zstd)", CompressionValidator),
	}
}

func storageFlag(cfg config.Type, name, env, key, value, usage string, v FlagValidatorType) *cli.StringFlag {
	f := &cli.StringFlag{
		Name:  name,
		Usage: usage,
		Sources: cli.NewValueSourceChain(
			cli.EnvVar(env),
			yaml.YAML(key, altsrc.StringSourcer(cfg.Source)),
		),
		Value: value,
	}
	if v != nil {
		f.Validator = func(value string) error {
			return FlagValidators(value, v)
		}
	}
	return f
}
