// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package filters

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/tidwall/gjson"

	"github.com/staranto/memoctl/internal/attrs"
)

// EnvDelim overrides the "," that separates filter expressions.
const EnvDelim = "MEMOCTL_FILTER_DELIM"

// ErrInvalid is returned by Parse for an expression with no operand.
var ErrInvalid = errors.New("invalid filter")

// filterRegex splits an expression into key, operand and target. Operands
// are one of = ^ ~ < > @ or /, optionally prefixed with '!'.
var filterRegex = regexp.MustCompile(`^(.*?)(!?[=^~<>@/])(.*)$`)

// Filter is a single parsed --filter expression.
type Filter struct {
	Key     string
	Negate  bool
	Operand string
	Target  string

	re *regexp.Regexp
}

// Parse splits spec on the delimiter and parses each expression.
func Parse(spec string) ([]Filter, error) {
	if spec == "" {
		return nil, nil
	}

	delim := ","
	if d, ok := os.LookupEnv(EnvDelim); ok && d != "" {
		delim = d
	}

	var filters []Filter
	for _, expr := range strings.Split(spec, delim) {
		parts := filterRegex.FindStringSubmatch(expr)
		if parts == nil || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalid, expr)
		}

		f := Filter{
			Key:     strings.TrimSpace(parts[1]),
			Negate:  strings.HasPrefix(parts[2], "!"),
			Operand: strings.TrimPrefix(parts[2], "!"),
			Target:  parts[3],
		}
		if f.Operand == "/" {
			re, err := regexp.Compile(f.Target)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrInvalid, expr, err)
			}
			f.re = re
		}
		filters = append(filters, f)
	}

	return filters, nil
}

// Apply keeps the rows of candidates that match every filter and projects
// each onto the attrs, keyed by output key. Transforms are left to output.
func Apply(candidates gjson.Result, al attrs.AttrList, filters []Filter) []map[string]interface{} {
	var rows []map[string]interface{}

	candidates.ForEach(func(_, candidate gjson.Result) bool {
		if !Matches(candidate, al, filters) {
			return true
		}
		row := make(map[string]interface{}, len(al))
		for _, attr := range al {
			if attr.Key == "*" {
				continue
			}
			row[attr.OutputKey] = candidate.Get(attr.Key).Value()
		}
		rows = append(rows, row)
		return true
	})

	return rows
}

// Matches reports whether candidate satisfies every filter. A filter key is
// the output key of an attr, or else a gjson path into the candidate.
func Matches(candidate gjson.Result, al attrs.AttrList, filters []Filter) bool {
	for _, f := range filters {
		path := f.Key
		if attr, ok := al.Find(f.Key); ok {
			path = attr.Key
		}
		if !f.Match(candidate.Get(path)) {
			return false
		}
	}
	return true
}

// Match evaluates the filter against one value. Missing and null values never
// match.
func (f Filter) Match(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null:
		return false
	case gjson.String:
		return f.matchString(v.Str)
	case gjson.True, gjson.False:
		return f.matchString(strconv.FormatBool(v.Bool()))
	case gjson.Number:
		return f.matchNumber(v.Num)
	default:
		return f.matchComposite(v)
	}
}

func (f Filter) matchString(value string) bool {
	var ok bool
	switch f.Operand {
	case "=":
		ok = value == f.Target
	case "~":
		ok = strings.EqualFold(value, f.Target)
	case "^":
		ok = strings.HasPrefix(value, f.Target)
	case ">":
		ok = value > f.Target
	case "<":
		ok = value < f.Target
	case "@":
		ok = strings.Contains(value, f.Target)
	case "/":
		re := f.re
		if re == nil {
			var err error
			if re, err = regexp.Compile(f.Target); err != nil {
				log.Errorf("invalid regex: %s", f.Target)
				return false
			}
		}
		ok = re.MatchString(value)
	default:
		return false
	}
	return ok != f.Negate
}

func (f Filter) matchNumber(value float64) bool {
	tgt, err := strconv.ParseFloat(strings.TrimSpace(f.Target), 64)
	if err != nil {
		// Not a number to compare with; fall back to the text form.
		return f.matchString(strconv.FormatFloat(value, 'f', -1, 64))
	}

	var ok bool
	switch f.Operand {
	case "=":
		ok = value == tgt
	case ">":
		ok = value > tgt
	case "<":
		ok = value < tgt
	default:
		return f.matchString(strconv.FormatFloat(value, 'f', -1, 64))
	}
	return ok != f.Negate
}

// matchComposite handles arrays and objects: @ tests membership of an element
// or key and = tests that any element equals the target.
func (f Filter) matchComposite(v gjson.Result) bool {
	var found bool
	switch {
	case v.IsArray() && (f.Operand == "@" || f.Operand == "="):
		for _, item := range v.Array() {
			if item.String() == f.Target {
				found = true
				break
			}
		}
	case v.IsObject() && f.Operand == "@":
		found = v.Get(gjson.Escape(f.Target)).Exists()
	default:
		log.Debugf("unsupported filter %s%s on %s", f.Key, f.Operand, v.Raw)
		return false
	}
	return found != f.Negate
}
