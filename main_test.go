// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/staranto/memoctl/internal/config"
)

func TestMangleArguments(t *testing.T) {
	saved := config.Config
	t.Cleanup(func() { config.Config = saved })
	config.Config = config.Type{Data: map[string]interface{}{
		"ls": map[string]interface{}{
			"defaults": []interface{}{"--titles"},
			"wide":     []interface{}{"-a signature,arguments::12", "--sort name"},
		},
		"exec": map[string]interface{}{
			"quick": "--status",
		},
	}}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			"defaults",
			[]string{"memoctl", "ls", "-o", "json"},
			[]string{"memoctl", "ls", "--titles", "-o", "json"},
		},
		{
			"named set",
			[]string{"memoctl", "ls", "-o", "json", "@wide"},
			[]string{"memoctl", "ls", "-o", "json", "-a", "signature,arguments::12", "--sort", "name"},
		},
		{
			"unknown set",
			[]string{"memoctl", "ls", "@nope"},
			[]string{"memoctl", "ls"},
		},
		{
			"nothing after -- is expanded",
			[]string{"memoctl", "exec", "--", "echo", "@quick"},
			[]string{"memoctl", "exec", "--", "echo", "@quick"},
		},
		{
			"single string set",
			[]string{"memoctl", "exec", "@quick", "--", "echo"},
			[]string{"memoctl", "exec", "--status", "--", "echo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mangleArguments(tt.args))
		})
	}
}
