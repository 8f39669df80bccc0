// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package callable

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// ArgvParam is the single parameter of an Executable.
const ArgvParam = "argv"

// Program runs an executable or script and returns its stdout. The file's
// bytes are its source, so rebuilding a binary or editing a script
// invalidates results cached for it.
type Program struct {
	// Path is the resolved absolute path of the executable.
	Path string
	// Dir is the working directory the program runs in.
	Dir string
	// Env, if non-nil, replaces the inherited environment.
	Env []string
	// Stderr receives the program's stderr. Nil discards it.
	Stderr io.Writer
}

// Executable resolves name via PATH (or as a path) and binds it. dir is the
// working directory and becomes part of the module, because the same command
// in two directories is not the same computation.
func Executable(name, dir string) (*Program, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("callable: %w", err)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return nil, err
		}
	}
	if dir, err = filepath.Abs(dir); err != nil {
		return nil, err
	}
	return &Program{Path: abs, Dir: dir}, nil
}

func (p *Program) Name() string   { return filepath.Base(p.Path) }
func (p *Program) Module() string { return "exec:" + p.Dir }

func (p *Program) Params() []Param {
	return []Param{{Name: ArgvParam, Type: "string", Variadic: true}}
}

func (p *Program) Signature() string {
	return FormatSignature(p.Params(), []string{"[]byte", "error"})
}

// Source returns the bytes of the executable file.
func (p *Program) Source() ([]byte, error) {
	b, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("callable: reading %s: %w", p.Path, err)
	}
	return b, nil
}

// Invoke runs the program with the bound argv and returns its stdout. A
// non-zero exit is returned as an error and nothing is cached.
func (p *Program) Invoke(ctx context.Context, args Bound) (any, error) {
	argv, err := p.argv(args)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, p.Path, argv...)
	cmd.Dir = p.Dir
	cmd.Env = p.Env
	if p.Stderr != nil {
		cmd.Stderr = p.Stderr
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}
	return stdout.Bytes(), nil
}

func (p *Program) argv(args Bound) ([]string, error) {
	raw, ok := args[ArgvParam]
	if !ok {
		return nil, fmt.Errorf("%w: missing argument for parameter %q", ErrBind, ArgvParam)
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, a := range v {
			s, ok := a.(string)
			if !ok {
				return nil, fmt.Errorf("%w: argv element %v is %T, not string", ErrBind, a, a)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: argv is %T", ErrBind, raw)
	}
}
