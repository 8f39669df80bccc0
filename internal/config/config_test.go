// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useConfig points MEMOCTL_CFG at a testdata file and resets the global
// Config so the next getter reloads it.
func useConfig(t *testing.T, testdataFile string) {
	t.Helper()

	absPath, err := filepath.Abs(filepath.Join("testdata", testdataFile))
	require.NoError(t, err)

	t.Setenv(EnvPath, absPath)
	Config = Type{}
	t.Cleanup(func() { Config = Type{} })
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		testFile  string
		checkFunc func(*testing.T, Type)
	}{
		{
			name:     "simple values",
			testFile: "simple.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				assert.NotEmpty(t, cfg.Source)
				assert.Equal(t, "json", cfg.Data["output"])
				assert.Equal(t, 2, cfg.Data["padding"])
			},
		},
		{
			name:     "nested structure",
			testFile: "storage.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				blob, ok := cfg.Data["blob"].(map[string]interface{})
				require.True(t, ok, "blob should be a map")
				s3, ok := blob["s3"].(map[string]interface{})
				require.True(t, ok, "s3 should be a map")
				assert.Equal(t, "memo-blobs", s3["bucket"])
			},
		},
		{
			name:     "mixed types",
			testFile: "mixed-types.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				assert.Equal(t, 1, cfg.Data["version"])
				assert.Equal(t, true, cfg.Data["color"])
				assert.Equal(t, 30.5, cfg.Data["timeout"])
				assert.Len(t, cfg.Data["tags"], 2)
			},
		},
		{
			name:     "empty file",
			testFile: "empty.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				assert.NotEmpty(t, cfg.Source)
				assert.Empty(t, cfg.Data)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useConfig(t, tt.testFile)

			cfg, err := Load()
			require.NoError(t, err)
			tt.checkFunc(t, cfg)
		})
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Setenv(EnvPath, "/nonexistent/path/memoctl.yaml")
	Config = Type{}

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_IsDirectory(t *testing.T) {
	t.Setenv(EnvPath, "testdata")
	Config = Type{}

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "points to a directory")
}

func TestLoad_StandardLocations(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("padding: 3\n"), 0o600))

	t.Setenv(EnvPath, "")
	t.Setenv("XDG_CONFIG_HOME", dir)
	Config = Type{}
	t.Cleanup(func() { Config = Type{} })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), cfg.Source)
}

func TestLoad_BadYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("a: [unclosed\n"), 0o600))
	t.Setenv(EnvPath, p)
	Config = Type{}

	_, err := Load()
	assert.Error(t, err)
}

func TestGetString(t *testing.T) {
	tests := []struct {
		name         string
		testFile     string
		key          string
		defaultValue []string
		want         string
		wantErr      bool
	}{
		{name: "top level", testFile: "simple.yaml", key: "output", want: "json"},
		{name: "nested", testFile: "storage.yaml", key: "metadata.redis.addr", want: "localhost:6379"},
		{name: "missing with default", testFile: "simple.yaml", key: "storage.root", defaultValue: []string{"/tmp/x"}, want: "/tmp/x"},
		{name: "missing without default", testFile: "simple.yaml", key: "storage.root", wantErr: true},
		{name: "not a string", testFile: "mixed-types.yaml", key: "version", wantErr: true},
		{name: "path through a scalar", testFile: "simple.yaml", key: "output.deeper", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useConfig(t, tt.testFile)

			got, err := GetString(tt.key, tt.defaultValue...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetInt(t *testing.T) {
	tests := []struct {
		name         string
		testFile     string
		key          string
		defaultValue []int
		want         int
		wantErr      bool
	}{
		{name: "int", testFile: "mixed-types.yaml", key: "version", want: 1},
		{name: "float truncated", testFile: "mixed-types.yaml", key: "timeout", want: 30},
		{name: "nested", testFile: "storage.yaml", key: "blob.retries", want: 5},
		{name: "missing with default", testFile: "simple.yaml", key: "missing", defaultValue: []int{60}, want: 60},
		{name: "missing without default", testFile: "simple.yaml", key: "missing", wantErr: true},
		{name: "not an int", testFile: "simple.yaml", key: "output", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useConfig(t, tt.testFile)

			got, err := GetInt(tt.key, tt.defaultValue...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetBool(t *testing.T) {
	useConfig(t, "mixed-types.yaml")

	v, err := GetBool("color")
	require.NoError(t, err)
	assert.True(t, v)

	v, err = GetBool("titles")
	require.NoError(t, err)
	assert.False(t, v)

	v, err = GetBool("missing", true)
	require.NoError(t, err)
	assert.True(t, v)

	_, err = GetBool("name")
	assert.Error(t, err)
}

func TestNamespace(t *testing.T) {
	useConfig(t, "namespace.yaml")

	_, err := Load("ls")
	require.NoError(t, err)

	got, err := GetString("output")
	require.NoError(t, err)
	assert.Equal(t, "yaml", got)

	b, err := GetBool("titles")
	require.NoError(t, err)
	assert.True(t, b)

	Config.Namespace = "stat"
	got, err = GetString("output")
	require.NoError(t, err)
	assert.Equal(t, "text", got)

	_, err = GetString("sort")
	assert.Error(t, err)
}

func TestLazyLoad(t *testing.T) {
	useConfig(t, "storage.yaml")

	// No explicit Load; the getter pulls the file in.
	val, err := GetString("blob.codec")
	require.NoError(t, err)
	assert.Equal(t, "cbor", val)
	assert.NotEmpty(t, Config.Source)
}

func TestGetStringSlice(t *testing.T) {
	useConfig(t, "namespace.yaml")

	got, err := GetStringSlice("ls.wide")
	require.NoError(t, err)
	assert.Equal(t, []string{"-a signature,arguments::12", "--sort name"}, got)

	got, err = GetStringSlice("output")
	require.NoError(t, err)
	assert.Equal(t, []string{"text"}, got)

	got, err = GetStringSlice("ls.none", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got)

	_, err = GetStringSlice("ls.bad")
	assert.Error(t, err)
	_, err = GetStringSlice("ls.none")
	assert.Error(t, err)
}
