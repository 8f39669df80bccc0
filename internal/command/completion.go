// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/memoctl/internal/meta"
)

const bashCompletionScript = `# bash completion for memoctl
_memoctl()
{
    local cur prev cmd
    COMPREPLY=()
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "clear completion exec ls rm stat sweep --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    local storage="--root --meta --redis --blob --codec --compression --tldr"
    local listing="--attrs -a --color -c --filter -f --output -o --sort -s --titles -t"

    case "$prev" in
        --output|-o) COMPREPLY=( $(compgen -W "text json yaml raw" -- "$cur") ); return 0 ;;
        --meta) COMPREPLY=( $(compgen -W "badger redis memory" -- "$cur") ); return 0 ;;
        --blob) COMPREPLY=( $(compgen -W "fs s3 memory" -- "$cur") ); return 0 ;;
        --codec) COMPREPLY=( $(compgen -W "msgpack json cbor" -- "$cur") ); return 0 ;;
        --compression) COMPREPLY=( $(compgen -W "none zstd" -- "$cur") ); return 0 ;;
        --root|--dir) COMPREPLY=( $(compgen -o dirnames -- "$cur") ); return 0 ;;
    esac

    local opts
    case "$cmd" in
        exec) opts="$storage --dir --refresh --status --metrics-file" ;;
        ls|stat) opts="$storage $listing" ;;
        sweep) opts="$storage $listing --orphans" ;;
        clear) opts="$storage --yes -y" ;;
        rm) opts="$storage" ;;
        completion) COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") ); return 0 ;;
    esac

    if [[ "$cmd" == exec && "$cur" != -* ]]; then
        COMPREPLY=( $(compgen -c -- "$cur") )
        return 0
    fi
    COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
}

complete -F _memoctl memoctl
`

const zshCompletionScript = `#compdef memoctl

_memoctl() {
  local -a cmds
  cmds=(
    'clear:delete every record and blob'
    'completion:generate shell completion script'
    'exec:run a program through the cache'
    'ls:list cached results'
    'rm:remove cached results by record id'
    'stat:summarize the cache'
    'sweep:remove records whose result blob is missing'
  )

  local -a storage
  storage=(
    '--root[storage root]:dir:_directories'
    '--meta[metadata backend]:backend:(badger redis memory)'
    '--redis[redis address]:addr'
    '--blob[blob backend]:backend:(fs s3 memory)'
    '--codec[blob codec]:codec:(msgpack json cbor)'
    '--compression[blob compression]:compression:(none zstd)'
    '--tldr[show tldr page]'
  )

  local -a listing
  listing=(
    '(-a --attrs)'{-a,--attrs}'[attributes to include]:attrs'
    '(-c --color)'{-c,--color}'[enable colored text]'
    '(-f --filter)'{-f,--filter}'[filters to apply]:filters'
    '(-o --output)'{-o,--output}'[output format]:format:(text json yaml raw)'
    '(-s --sort)'{-s,--sort}'[sort attributes]:attrs'
    '(-t --titles)'{-t,--titles}'[show titles]'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'memoctl commands' cmds
    return
  fi

  case $words[2] in
    exec)
      _arguments -C $storage \
        '--dir[working directory]:dir:_directories' \
        '--refresh[discard any cached result]' \
        '--status[report hit or miss]' \
        '--metrics-file[metrics output file]:file:_files' \
        '*::command:_normal'
      ;;
    ls|stat)
      _arguments -C $storage $listing
      ;;
    sweep)
      _arguments -C $storage $listing '--orphans[delete unreferenced blobs]'
      ;;
    clear)
      _arguments -C $storage '(-y --yes)'{-y,--yes}'[confirm]'
      ;;
    rm)
      _arguments -C $storage '*:record id'
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
  esac
}

if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _memoctl memoctl
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	w := GetMeta(cmd).Out()

	shell := ""
	if args := cmd.Args().Slice(); len(args) > 0 {
		shell = args[0]
	}
	if shell == "" {
		sh := os.Getenv("SHELL")
		switch {
		case strings.HasSuffix(sh, "zsh"):
			shell = "zsh"
		case strings.HasSuffix(sh, "bash"):
			shell = "bash"
		}
	}

	switch shell {
	case "bash":
		fmt.Fprint(w, bashCompletionScript)
	case "zsh":
		fmt.Fprint(w, zshCompletionScript)
	default:
		return fmt.Errorf("usage: memoctl completion [bash|zsh]")
	}
	return nil
}

func CompletionCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "memoctl completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
