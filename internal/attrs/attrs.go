// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package attrs

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
)

// EnvTZ overrides TZ for the t transform.
const EnvTZ = "MEMOCTL_TZ"

var (
	lengthRe = regexp.MustCompile(`-?\d+`)

	// now is swapped in tests so relative times are stable.
	now = time.Now
)

// Attr is one column of output, identified by its gjson path into a record.
type Attr struct {
	// The gjson path to extract from the record JSON object.
	Key string `yaml:"key"`
	// Should this Attr be included in output or is it just intended for
	// filtering and sorting?
	Include bool `yaml:"include"`
	// The key to use in the output. Also the column title when output=text.
	OutputKey string `yaml:"outputKey"`
	// Transformation spec to apply to the output value.
	TransformSpec string `yaml:"transformSpec"`
}

// Transform applies the attr's TransformSpec to value. The spec is a run of
// letters and an optional length:
//
//	t   RFC3339 time to MEMOCTL_TZ or TZ local time
//	h   humanize: times become "3 minutes ago", numbers become byte sizes
//	l/u lower/upper case; the last one given wins
//	N   truncate to N runes; -N elides the middle instead
func (a *Attr) Transform(value interface{}) interface{} {
	if a.TransformSpec == "" {
		return value
	}

	if strings.ContainsAny(a.TransformSpec, "hH") {
		if n, ok := value.(float64); ok {
			return humanize.Bytes(uint64(math.Max(n, 0)))
		}
	}

	result, ok := value.(string)
	if !ok {
		return value
	}

	switch {
	case strings.ContainsAny(a.TransformSpec, "hH"):
		if t, err := time.Parse(time.RFC3339Nano, result); err == nil {
			result = humanize.RelTime(t, now(), "ago", "from now")
		}
	case strings.ContainsAny(a.TransformSpec, "tT"):
		result = localTime(result)
	}

	// A global case transformation is prepended to the attr's own, so the last
	// one given carries the most weight: --attrs '*::U,name::l' is lower case.
	lastL := strings.LastIndexAny(a.TransformSpec, "lL")
	lastU := strings.LastIndexAny(a.TransformSpec, "uU")

	if lastL > lastU {
		result = strings.ToLower(result)
	} else if lastU > lastL {
		result = strings.ToUpper(result)
	}

	// Same logic as case: a specific length overrides a global one.
	if match := lengthRe.FindAllString(a.TransformSpec, -1); len(match) != 0 {
		l, _ := strconv.Atoi(match[len(match)-1])
		result = truncate(result, l)
	}

	return result
}

// localTime converts only when a zone has been named explicitly.
func localTime(s string) string {
	tz := os.Getenv(EnvTZ)
	if tz == "" {
		tz = os.Getenv("TZ")
	}
	if tz == "" {
		return s
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.WithError(err).Debugf("unknown timezone %s", tz)
		return s
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		log.Debugf("not a time: %s", s)
		return s
	}
	return t.In(loc).Format("2006-01-02T15:04:05MST")
}

func truncate(s string, l int) string {
	r := []rune(s)
	abs := l
	if abs < 0 {
		abs = -abs
	}
	if len(r) <= abs {
		return s
	}
	if l >= 0 {
		return string(r[:l])
	}
	side := abs/2 - 1
	if side < 1 {
		return string(r[:abs])
	}
	return string(r[:side]) + ".." + string(r[len(r)-side:])
}

type AttrList []Attr

// String renders the list in the same form the --attrs flag accepts.
func (a *AttrList) String() string {
	result := make([]string, 0, len(*a))
	for _, attr := range *a {
		result = append(result, fmt.Sprintf("%s:%s:%s", attr.Key, attr.OutputKey, attr.TransformSpec))
	}
	return strings.Join(result, ",")
}

// Set parses each comma-separated spec of the --attrs flag and adds it to the
// list. A spec is key[:output[:transform]]; a leading ! keeps the attr for
// filtering and sorting but hides it. Respecifying a key updates the existing
// attr in place.
func (a *AttrList) Set(value string) error {
	if value == "" || value == "*" {
		return nil
	}

	const (
		jsonIdx = iota
		outputIdx
		transformIdx
	)

specloop:
	for _, spec := range strings.Split(value, ",") {
		attr := Attr{Include: true}

		fields := strings.Split(spec, ":")
		if len(fields) > 3 {
			return fmt.Errorf("invalid attr spec %q", spec)
		}

		attr.Key = strings.TrimSpace(fields[jsonIdx])
		if strings.HasPrefix(attr.Key, "!") {
			attr.Include = false
			attr.Key = attr.Key[1:]
		}
		attr.Key = strings.TrimPrefix(attr.Key, ".")
		if attr.Key == "" {
			return fmt.Errorf("invalid attr spec %q", spec)
		}

		if attr.Key == "*" {
			attr.Include = false
		}

		// With a single field the output key is the last segment of the path.
		if len(fields) == 1 || strings.TrimSpace(fields[outputIdx]) == "" {
			segments := strings.Split(attr.Key, ".")
			attr.OutputKey = segments[len(segments)-1]
		} else {
			attr.OutputKey = strings.TrimSpace(fields[outputIdx])
		}

		if len(fields) > transformIdx {
			attr.TransformSpec = strings.TrimSpace(fields[transformIdx])
		}

		for i := range *a {
			if (*a)[i].Key == attr.Key || (*a)[i].OutputKey == attr.Key {
				(*a)[i].Include = attr.Include
				(*a)[i].OutputKey = attr.OutputKey
				(*a)[i].TransformSpec = attr.TransformSpec
				continue specloop
			}
		}

		*a = append(*a, attr)
	}

	return nil
}

// SetGlobalTransformSpec prepends the spec of the `*` attr, if any, to every
// attr in the list.
func (a *AttrList) SetGlobalTransformSpec() {
	spec := ""
	for i := range *a {
		if (*a)[i].Key == "*" {
			spec = (*a)[i].TransformSpec
			break
		}
	}

	if spec == "" {
		return
	}

	for i := range *a {
		if (*a)[i].Key == "*" {
			continue
		}
		(*a)[i].TransformSpec = spec + "," + (*a)[i].TransformSpec
	}
}

// Included returns the attrs that are shown.
func (a AttrList) Included() AttrList {
	var out AttrList
	for _, attr := range a {
		if attr.Include {
			out = append(out, attr)
		}
	}
	return out
}

// Find returns the attr whose output key is key.
func (a AttrList) Find(key string) (Attr, bool) {
	for _, attr := range a {
		if attr.OutputKey == key {
			return attr, true
		}
	}
	return Attr{}, false
}

func (a *AttrList) Type() string {
	return "list"
}
