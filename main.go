// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/memoctl/internal/command"
	"github.com/staranto/memoctl/internal/config"
	mylog "github.com/staranto/memoctl/internal/log"
	"github.com/staranto/memoctl/internal/version"
)

var ctx = context.Background()

func main() {
	os.Exit(realMain())
}

func realMain() int {
	mylog.InitLogger()

	args := os.Args

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "No command specified.")
		args = append(args, "--help")
	} else {
		args = mangleArguments(args)
	}

	// Short-circuit --version/-v, but not once the program to exec begins.
	for _, a := range args {
		if a == "--" {
			break
		}
		if a == "--version" || a == "-v" {
			fmt.Println(version.Version)
			return 0
		}
	}

	app, err := command.InitApp(ctx, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return 0
}

// mangleArguments expands an argument set. `memoctl ls @wide` inserts the
// arguments listed under `ls.wide` in the config file in place of @wide;
// without an @set, `<cmd>.defaults` is used if present. Nothing after "--"
// is considered.
func mangleArguments(args []string) []string {
	end := len(args)
	for i, a := range args {
		if a == "--" {
			end = i
			break
		}
	}

	idx := 2
	set := "defaults"
	for i := 2; i < end; i++ {
		if strings.HasPrefix(args[i], "@") {
			set = args[i][1:]
			idx = i
			args = append(args[:i:i], args[i+1:]...)
			break
		}
	}

	setArgs, _ := config.GetStringSlice(args[1] + "." + set)
	var expanded []string
	for _, arg := range setArgs {
		expanded = append(expanded, strings.Fields(arg)...)
	}

	out := make([]string, 0, len(args)+len(expanded))
	out = append(out, args[:idx]...)
	out = append(out, expanded...)
	out = append(out, args[idx:]...)

	log.Debugf("set=%s, args=%v", set, out)
	return out
}
