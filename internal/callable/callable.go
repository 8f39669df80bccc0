// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package callable

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Param is one declared parameter of a Function.
type Param struct {
	Name string
	// Type is the parameter type as written in source, e.g. "[]string".
	Type string
	// Variadic is true for a trailing ...T parameter.
	Variadic bool
}

func (p Param) String() string {
	if p.Variadic {
		return p.Name + " ..." + strings.TrimPrefix(p.Type, "...")
	}
	return p.Name + " " + p.Type
}

// Function is a unit of work that can be memoized.
type Function interface {
	// Name is the function identifier, e.g. "Render" or "(*Page).Render".
	Name() string
	// Module is the declaring module or namespace, e.g. a Go import path.
	Module() string
	// Params lists the declared parameters in order.
	Params() []Param
	// Signature is the canonical text of the parameter (and result) list.
	Signature() string
	// Source returns the exact current source text of the function.
	Source() ([]byte, error)
	// Invoke runs the function with args bound by Bind.
	Invoke(ctx context.Context, args Bound) (any, error)
}

// Bound maps parameter names to argument values.
type Bound map[string]any

// ErrBind is returned (wrapped) when arguments cannot be bound to parameters.
var ErrBind = errors.New("cannot bind arguments")

// NamedArg is an argument passed by parameter name rather than by position.
type NamedArg struct {
	Name  string
	Value any
}

// Named passes v for the parameter called name.
func Named(name string, v any) NamedArg {
	return NamedArg{Name: name, Value: v}
}

// Bind maps args onto fn's parameters. Plain values bind positionally, NamedArg
// values bind by name. f(1, Named("y", 2)) and f(Named("x", 1), Named("y", 2))
// produce the same Bound.
//
// A variadic parameter collects the remaining positional values as a []any.
func Bind(fn Function, args ...any) (Bound, error) {
	params := fn.Params()
	bound := make(Bound, len(params))

	pos := 0
	var rest []any
	for _, a := range args {
		if na, ok := a.(NamedArg); ok {
			idx := paramIndex(params, na.Name)
			if idx < 0 {
				return nil, fmt.Errorf("%w: %s has no parameter %q", ErrBind, fn.Name(), na.Name)
			}
			if _, dup := bound[na.Name]; dup {
				return nil, fmt.Errorf("%w: parameter %q given more than once", ErrBind, na.Name)
			}
			bound[na.Name] = na.Value
			continue
		}

		if pos < len(params) && params[pos].Variadic {
			rest = append(rest, a)
			continue
		}
		if pos >= len(params) {
			return nil, fmt.Errorf("%w: %s takes %d arguments", ErrBind, fn.Name(), len(params))
		}
		name := params[pos].Name
		if _, dup := bound[name]; dup {
			return nil, fmt.Errorf("%w: parameter %q given more than once", ErrBind, name)
		}
		bound[name] = a
		pos++
	}

	for _, p := range params {
		if _, ok := bound[p.Name]; ok {
			if p.Variadic && rest != nil {
				return nil, fmt.Errorf("%w: variadic parameter %q given both by name and position", ErrBind, p.Name)
			}
			continue
		}
		if p.Variadic {
			if rest == nil {
				rest = []any{}
			}
			bound[p.Name] = rest
			continue
		}
		return nil, fmt.Errorf("%w: missing argument for parameter %q", ErrBind, p.Name)
	}

	return bound, nil
}

// FormatSignature renders params and results the way they appear in a Go
// func declaration.
func FormatSignature(params []Param, results []string) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p.String())
	}
	sig := "(" + strings.Join(parts, ", ") + ")"
	switch len(results) {
	case 0:
	case 1:
		sig += " " + results[0]
	default:
		sig += " (" + strings.Join(results, ", ") + ")"
	}
	return sig
}

func paramIndex(params []Param, name string) int {
	for i, p := range params {
		if p.Name == name {
			return i
		}
	}
	return -1
}
