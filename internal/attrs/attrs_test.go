// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package attrs

import (
	"embed"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

//go:embed testdata/*.yaml
var testDataFS embed.FS

type testSetCase struct {
	Name      string `yaml:"name"`
	Initial   []Attr `yaml:"initial"`
	Value     string `yaml:"value"`
	WantAttrs []Attr `yaml:"wantAttrs"`
	WantErr   bool   `yaml:"wantErr"`
}

func loadTestData(t *testing.T, filename string, v any) {
	t.Helper()
	data, err := testDataFS.ReadFile("testdata/" + filename)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, v))
}

func TestAttrList_Set(t *testing.T) {
	var cases []testSetCase
	loadTestData(t, "set.yaml", &cases)
	require.NotEmpty(t, cases)

	for _, tt := range cases {
		t.Run(tt.Name, func(t *testing.T) {
			al := AttrList(tt.Initial)
			err := al.Set(tt.Value)
			if tt.WantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.WantAttrs, []Attr(al))
		})
	}
}

func TestAttrList_SetGlobalTransformSpec(t *testing.T) {
	var al AttrList
	require.NoError(t, al.Set("name,code::8,*::U"))
	al.SetGlobalTransformSpec()

	assert.Equal(t, "U,", al[0].TransformSpec)
	assert.Equal(t, "U,8", al[1].TransformSpec)
	assert.Equal(t, "U", al[2].TransformSpec)

	// Without a global spec nothing changes.
	var plain AttrList
	require.NoError(t, plain.Set("name::l"))
	plain.SetGlobalTransformSpec()
	assert.Equal(t, "l", plain[0].TransformSpec)
}

func TestAttr_Transform(t *testing.T) {
	t.Setenv(EnvTZ, "")
	t.Setenv("TZ", "")

	tests := []struct {
		name  string
		spec  string
		input interface{}
		want  interface{}
	}{
		{"no spec", "", "Mixed", "Mixed"},
		{"upper", "u", "square", "SQUARE"},
		{"lower", "L", "SQUARE", "square"},
		{"attr case beats global", "U,l", "Square", "square"},
		{"truncate", "4", "abcdefgh", "abcd"},
		{"short enough", "10", "abc", "abc"},
		{"elide middle", "-8", "0123456789abcdef", "012..def"},
		{"specific length wins", "20,3", "abcdef", "abc"},
		{"non-string passthrough", "u", 42.0, 42.0},
		{"bytes", "h", 2048.0, "2.0 kB"},
		{"time without zone", "t", "2024-01-15T10:00:00Z", "2024-01-15T10:00:00Z"},
		{"multibyte truncate", "2", "ñandú", "ña"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Attr{TransformSpec: tt.spec}
			assert.Equal(t, tt.want, a.Transform(tt.input))
		})
	}
}

func TestAttr_Transform_Timezone(t *testing.T) {
	t.Setenv("TZ", "America/Los_Angeles")
	t.Setenv(EnvTZ, "")

	a := Attr{TransformSpec: "t"}
	assert.Equal(t, "2024-01-15T02:00:00PST", a.Transform("2024-01-15T10:00:00Z"))

	// MEMOCTL_TZ beats TZ.
	t.Setenv(EnvTZ, "UTC")
	assert.Equal(t, "2024-01-15T10:00:00UTC", a.Transform("2024-01-15T10:00:00Z"))

	// Unparseable values pass through.
	assert.Equal(t, "yesterday", a.Transform("yesterday"))
}

func TestAttr_Transform_Humanize(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = time.Now })

	a := Attr{TransformSpec: "h"}
	assert.Equal(t, "3 minutes ago", a.Transform("2025-06-01T11:57:00Z"))
}

func TestAttrList_String(t *testing.T) {
	var al AttrList
	require.NoError(t, al.Set("id::8,name:fn"))
	assert.Equal(t, "id:id:8,name:fn:", al.String())
}

func TestAttrList_IncludedAndFind(t *testing.T) {
	var al AttrList
	require.NoError(t, al.Set("id,!module,name"))

	inc := al.Included()
	require.Len(t, inc, 2)
	assert.Equal(t, "name", inc[1].OutputKey)

	got, ok := al.Find("module")
	assert.True(t, ok)
	assert.False(t, got.Include)

	_, ok = al.Find("nope")
	assert.False(t, ok)
}

func TestAttrList_Type(t *testing.T) {
	var al AttrList
	assert.Equal(t, "list", al.Type())
}
