// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/staranto/memoctl/internal/attrs"
)

const records = `[
	{"id": "0191-a", "name": "square", "module": "example.com/calc", "code": "ab12", "size": 120, "tags": ["fast", "pure"], "extra": {"owner": "ci"}, "note": null},
	{"id": "0191-b", "name": "cube", "module": "example.com/calc", "code": "cd34", "size": 4096, "tags": ["slow"]},
	{"id": "0191-c", "name": "render", "module": "exec:/srv/site", "code": "ef56", "size": 0, "cached": true}
]`

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    []Filter
		wantErr bool
	}{
		{name: "empty", spec: ""},
		{name: "equals", spec: "name=square", want: []Filter{{Key: "name", Operand: "=", Target: "square"}}},
		{name: "negated", spec: "module!^exec:", want: []Filter{{Key: "module", Negate: true, Operand: "^", Target: "exec:"}}},
		{
			name: "several",
			spec: "size>100,name~CUBE",
			want: []Filter{
				{Key: "size", Operand: ">", Target: "100"},
				{Key: "name", Operand: "~", Target: "CUBE"},
			},
		},
		{name: "target keeps operands", spec: "module@a=b", want: []Filter{{Key: "module", Operand: "@", Target: "a=b"}}},
		{name: "no operand", spec: "name", wantErr: true},
		{name: "no key", spec: "=square", wantErr: true},
		{name: "bad regex", spec: "name/[", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.spec)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Delimiter(t *testing.T) {
	t.Setenv(EnvDelim, ";")

	got, err := Parse("name@a,b;size<10")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a,b", got[0].Target)
	assert.Equal(t, "size", got[1].Key)
}

func TestFilter_Match(t *testing.T) {
	row := gjson.Parse(records).Get("0")

	tests := []struct {
		expr string
		want bool
	}{
		{"name=square", true},
		{"name!=square", false},
		{"name~SQUARE", true},
		{"module^example.com/", true},
		{"module!^example.com/", false},
		{"name@qua", true},
		{"name>r", true},
		{"name<r", false},
		{"code/^[a-f0-9]+$", true},
		{"code!/^z", true},
		{"size=120", true},
		{"size>100", true},
		{"size<100", false},
		{"size!=120", false},
		{"size^12", true},
		{"tags@pure", true},
		{"tags=fast", true},
		{"tags!@fast", false},
		{"tags^f", false},
		{"extra@owner", true},
		{"extra@missing", false},
		{"note=anything", false},
		{"absent=anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			fs, err := Parse(tt.expr)
			require.NoError(t, err)
			require.Len(t, fs, 1)
			assert.Equal(t, tt.want, fs[0].Match(row.Get(fs[0].Key)))
		})
	}
}

func TestFilter_MatchBool(t *testing.T) {
	row := gjson.Parse(records).Get("2")
	fs, err := Parse("cached=true")
	require.NoError(t, err)
	assert.True(t, fs[0].Match(row.Get("cached")))
}

func TestApply(t *testing.T) {
	var al attrs.AttrList
	require.NoError(t, al.Set("id,name:fn,!module,size"))

	tests := []struct {
		name string
		spec string
		want []string
	}{
		{"no filters", "", []string{"square", "cube", "render"}},
		{"by output key", "fn^c", []string{"cube"}},
		{"hidden attr filters", "module^exec:", []string{"render"}},
		{"path not in attrs", "code=ab12", []string{"square"}},
		{"numeric", "size>100", []string{"square", "cube"}},
		{"all must match", "module^example,size<1000", []string{"square"}},
		{"none", "fn=nope", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, err := Parse(tt.spec)
			require.NoError(t, err)

			rows := Apply(gjson.Parse(records), al, fs)
			var names []string
			for _, r := range rows {
				names = append(names, r["fn"].(string))
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestApply_Projection(t *testing.T) {
	var al attrs.AttrList
	require.NoError(t, al.Set("id,size,*::U"))

	rows := Apply(gjson.Parse(records), al, nil)
	require.Len(t, rows, 3)
	assert.Equal(t, map[string]interface{}{"id": "0191-b", "size": 4096.0}, rows[1])
}
