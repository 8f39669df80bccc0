// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package callable

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"reflect"
	"regexp"
	"runtime"
	"strings"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()

	// closureRegex matches the compiler's names for func literals: func1, func1.2, 3.
	closureRegex = regexp.MustCompile(`(^|\.)(func)?\d+(\.\d+)*$`)
)

// GoFunc binds an ordinary Go func to the Function interface.
type GoFunc struct {
	fn      reflect.Value
	name    string
	module  string
	file    string
	line    int
	params  []Param
	results []string
	withCtx bool

	// fixedSource is set by WithSource; the file is not consulted.
	fixedSource []byte
	paramNames  []string
}

// Option customizes Of.
type Option func(*GoFunc)

// WithSource pins the source text instead of reading it from the file the
// runtime reports. Parameter names default to arg0, arg1, ... unless
// WithParamNames is also given.
func WithSource(src []byte) Option {
	return func(g *GoFunc) { g.fixedSource = append([]byte(nil), src...) }
}

// WithParamNames overrides the parameter names. Only meaningful with WithSource.
func WithParamNames(names ...string) Option {
	return func(g *GoFunc) { g.paramNames = names }
}

// Of wraps fn, which must be a func returning T or (T, error). A leading
// context.Context parameter receives the ctx given to Invoke and is not part of
// Params.
//
// Method values are not supported since the runtime only knows their
// autogenerated wrapper; pass a method expression such as (*T).M instead.
// A func literal must be the only one starting on its source line.
func Of(fn any, opts ...Option) (*GoFunc, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("callable: %T is not a func", fn)
	}
	t := v.Type()
	if err := checkResults(t); err != nil {
		return nil, err
	}

	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return nil, errors.New("callable: cannot resolve func name")
	}
	module, name := splitFuncName(rf.Name())
	if strings.HasSuffix(name, "-fm") {
		return nil, fmt.Errorf("callable: %s is a method value; use a method expression", rf.Name())
	}
	file, line := rf.FileLine(rf.Entry())

	g := &GoFunc{
		fn:      v,
		name:    name,
		module:  module,
		file:    file,
		line:    line,
		withCtx: t.NumIn() > 0 && t.In(0) == contextType,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.fixedSource != nil {
		g.params, g.results = reflectParams(t, g.withCtx, g.paramNames)
		return g, nil
	}

	src, node, err := g.locate()
	if err != nil {
		return nil, err
	}
	g.params, g.results = astParams(src, node, g.withCtx)
	if len(g.params)+boolInt(g.withCtx) != t.NumIn() {
		return nil, fmt.Errorf("callable: source for %s does not match its type %s", g.name, t)
	}
	return g, nil
}

func (g *GoFunc) Name() string   { return g.name }
func (g *GoFunc) Module() string { return g.module }

func (g *GoFunc) Params() []Param {
	return append([]Param(nil), g.params...)
}

func (g *GoFunc) Signature() string {
	return FormatSignature(g.params, g.results)
}

// Source re-reads the declaring file on every call so that edits made since
// the func was wrapped are observed.
func (g *GoFunc) Source() ([]byte, error) {
	if g.fixedSource != nil {
		return append([]byte(nil), g.fixedSource...), nil
	}
	src, node, err := g.locate()
	if err != nil {
		return nil, err
	}
	return src[node.start:node.end], nil
}

// Invoke calls the func. Panics are not recovered.
func (g *GoFunc) Invoke(ctx context.Context, args Bound) (any, error) {
	t := g.fn.Type()
	in := make([]reflect.Value, 0, t.NumIn())
	if g.withCtx {
		in = append(in, reflect.ValueOf(&ctx).Elem())
	}

	for i, p := range g.params {
		a, ok := args[p.Name]
		if !ok {
			return nil, fmt.Errorf("%w: missing argument for parameter %q", ErrBind, p.Name)
		}
		pt := t.In(i + boolInt(g.withCtx))
		if !p.Variadic {
			rv, err := convertArg(a, pt, p.Name)
			if err != nil {
				return nil, err
			}
			in = append(in, rv)
			continue
		}

		rest, ok := a.([]any)
		if !ok {
			rv, err := convertArg(a, pt, p.Name)
			if err != nil {
				return nil, err
			}
			out := g.fn.CallSlice(append(in, rv))
			return splitResults(out)
		}
		for _, r := range rest {
			rv, err := convertArg(r, pt.Elem(), p.Name)
			if err != nil {
				return nil, err
			}
			in = append(in, rv)
		}
	}

	return splitResults(g.fn.Call(in))
}

type located struct {
	recv       *ast.FieldList
	funcType   *ast.FuncType
	start, end int
}

// locate finds the declaration of g in its file. Named funcs and methods are
// found by name so that line shifts from later edits do not matter; func
// literals are found by the line the runtime reports.
func (g *GoFunc) locate() ([]byte, located, error) {
	if g.file == "" || strings.HasPrefix(g.file, "<") {
		return nil, located{}, fmt.Errorf("callable: no source file for %s", g.name)
	}
	src, err := os.ReadFile(g.file)
	if err != nil {
		return nil, located{}, fmt.Errorf("callable: reading source of %s: %w", g.name, err)
	}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, g.file, src, parser.ParseComments)
	if err != nil {
		return nil, located{}, fmt.Errorf("callable: parsing %s: %w", g.file, err)
	}

	offset := func(p token.Pos) int { return fset.Position(p).Offset }

	if !closureRegex.MatchString(g.name) {
		recv, fname := splitReceiver(g.name)
		for _, d := range f.Decls {
			fd, ok := d.(*ast.FuncDecl)
			if !ok || fd.Name.Name != fname || receiverName(fd) != recv {
				continue
			}
			start := fd.Pos()
			if fd.Doc != nil {
				start = fd.Doc.Pos()
			}
			return src, located{recv: fd.Recv, funcType: fd.Type, start: offset(start), end: offset(fd.End())}, nil
		}
	}

	// The runtime reports only a line. Two candidates on it cannot be told
	// apart, so neither is picked.
	closure := closureRegex.MatchString(g.name)
	var found []located
	ast.Inspect(f, func(n ast.Node) bool {
		switch fn := n.(type) {
		case *ast.FuncDecl:
			if !closure && fset.Position(fn.Type.Func).Line == g.line {
				start := fn.Pos()
				if fn.Doc != nil {
					start = fn.Doc.Pos()
				}
				found = append(found, located{recv: fn.Recv, funcType: fn.Type, start: offset(start), end: offset(fn.End())})
			}
		case *ast.FuncLit:
			if closure && fset.Position(fn.Type.Func).Line == g.line {
				found = append(found, located{funcType: fn.Type, start: offset(fn.Pos()), end: offset(fn.End())})
			}
		}
		return true
	})
	switch len(found) {
	case 0:
		return nil, located{}, fmt.Errorf("callable: %s not found in %s:%d", g.name, g.file, g.line)
	case 1:
		return src, found[0], nil
	}
	return nil, located{}, fmt.Errorf("callable: %d func literals start at %s:%d; move %s to its own line or use WithSource",
		len(found), g.file, g.line, g.name)
}

// splitFuncName splits a runtime func name such as
// "github.com/a/b/pkg.(*T).M" into ("github.com/a/b/pkg", "(*T).M").
func splitFuncName(full string) (module, name string) {
	slash := strings.LastIndex(full, "/")
	dot := strings.Index(full[slash+1:], ".")
	if dot < 0 {
		return "", full
	}
	dot += slash + 1
	name = full[dot+1:]
	// Generic instantiations carry a "[...]" shape suffix.
	name = strings.ReplaceAll(name, "[...]", "")
	return full[:dot], name
}

// splitReceiver turns "(*T).M" or "T.M" into ("T", "M") and "F" into ("", "F").
func splitReceiver(name string) (recv, fname string) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return "", name
	}
	recv = strings.Trim(name[:i], "()")
	return strings.TrimPrefix(recv, "*"), name[i+1:]
}

func receiverName(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return ""
	}
	typ := fd.Recv.List[0].Type
	if star, ok := typ.(*ast.StarExpr); ok {
		typ = star.X
	}
	switch t := typ.(type) {
	case *ast.IndexExpr:
		typ = t.X
	case *ast.IndexListExpr:
		typ = t.X
	}
	if id, ok := typ.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}

// astParams lists the parameters of node. A method's receiver comes first,
// matching the type of its method expression.
func astParams(src []byte, node located, skipCtx bool) ([]Param, []string) {
	text := func(e ast.Expr) string { return exprText(src, e) }
	ft := node.funcType

	var params []Param
	if node.recv != nil && len(node.recv.List) > 0 {
		field := node.recv.List[0]
		name := "recv"
		if len(field.Names) > 0 && field.Names[0].Name != "_" {
			name = field.Names[0].Name
		}
		params = append(params, Param{Name: name, Type: text(field.Type)})
	}

	i := 0
	for _, field := range ft.Params.List {
		typ := field.Type
		variadic := false
		if ell, ok := typ.(*ast.Ellipsis); ok {
			variadic = true
			typ = ell.Elt
		}
		names := field.Names
		if len(names) == 0 {
			names = []*ast.Ident{nil}
		}
		for _, n := range names {
			if skipCtx && i == 0 {
				i++
				continue
			}
			name := fmt.Sprintf("arg%d", i)
			if n != nil && n.Name != "_" {
				name = n.Name
			}
			params = append(params, Param{Name: name, Type: text(typ), Variadic: variadic})
			i++
		}
	}

	var results []string
	if ft.Results != nil {
		for _, field := range ft.Results.List {
			n := len(field.Names)
			if n == 0 {
				n = 1
			}
			for j := 0; j < n; j++ {
				results = append(results, text(field.Type))
			}
		}
	}
	return params, results
}

// exprText returns the source text of e. Positions come from the file set the
// file was parsed with, which uses base 1 for the first file.
func exprText(src []byte, e ast.Expr) string {
	start, end := int(e.Pos())-1, int(e.End())-1
	if start < 0 || end > len(src) || start > end {
		return ""
	}
	return string(src[start:end])
}

func reflectParams(t reflect.Type, skipCtx bool, names []string) ([]Param, []string) {
	var params []Param
	first := boolInt(skipCtx)
	for i := first; i < t.NumIn(); i++ {
		idx := i - first
		name := fmt.Sprintf("arg%d", idx)
		if idx < len(names) {
			name = names[idx]
		}
		pt := t.In(i)
		variadic := t.IsVariadic() && i == t.NumIn()-1
		if variadic {
			pt = pt.Elem()
		}
		params = append(params, Param{Name: name, Type: pt.String(), Variadic: variadic})
	}
	results := make([]string, 0, t.NumOut())
	for i := 0; i < t.NumOut(); i++ {
		results = append(results, t.Out(i).String())
	}
	return params, results
}

func checkResults(t reflect.Type) error {
	switch t.NumOut() {
	case 1:
		if t.Out(0) == errorType {
			return fmt.Errorf("callable: %s returns only an error", t)
		}
		return nil
	case 2:
		if t.Out(1) != errorType {
			return fmt.Errorf("callable: second result of %s must be error", t)
		}
		return nil
	default:
		return fmt.Errorf("callable: %s must return T or (T, error)", t)
	}
}

func convertArg(a any, t reflect.Type, name string) (reflect.Value, error) {
	if a == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: nil is not a valid %s for %q", ErrBind, t, name)
	}
	rv := reflect.ValueOf(a)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if isNumeric(rv.Kind()) && isNumeric(t.Kind()) && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %T is not assignable to %s for %q", ErrBind, a, t, name)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func splitResults(out []reflect.Value) (any, error) {
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
