// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// docgen renders docs/commands/<cmd>.md into a man page and a tldr page for
// each memoctl subcommand.
package main

import (
	"bufio"
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	md2man "github.com/cpuguy83/go-md2man/v2/md2man"
)

const project = "https://github.com/staranto/memoctl"

func main() {
	var root string
	var onlyIfChanged bool
	flag.StringVar(&root, "root", ".", "repo root")
	flag.BoolVar(&onlyIfChanged, "only-if-changed", true, "only write files whose content changed")
	flag.Parse()

	if err := run(root, onlyIfChanged); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(root string, onlyIfChanged bool) error {
	in := filepath.Join(root, "docs", "commands")
	manDir := filepath.Join(root, "docs", "man", "share", "man1")
	tldrDir := filepath.Join(root, "docs", "tldr")
	for _, d := range []string{manDir, tldrDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}

	pages, err := filepath.Glob(filepath.Join(in, "*.md"))
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("no command markdown found under %s", in)
	}

	for _, p := range pages {
		cmd := strings.TrimSuffix(filepath.Base(p), ".md")
		raw, err := os.ReadFile(p)
		if err != nil {
			return err
		}

		man := filepath.Join(manDir, "memoctl-"+cmd+".1")
		if err := write(man, md2man.Render(raw), onlyIfChanged); err != nil {
			return fmt.Errorf("man page for %s: %w", cmd, err)
		}

		page := tldr(cmd, shortDescription(string(raw)), quickExamples(string(raw)))
		tl := filepath.Join(tldrDir, "memoctl-"+cmd+".md")
		if err := write(tl, []byte(page), onlyIfChanged); err != nil {
			return fmt.Errorf("tldr page for %s: %w", cmd, err)
		}
	}
	return nil
}

func write(path string, data []byte, onlyIfChanged bool) error {
	if onlyIfChanged {
		old, err := os.ReadFile(path)
		switch {
		case err == nil && bytes.Equal(bytes.TrimSpace(old), bytes.TrimSpace(data)):
			return nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

var (
	titleRe   = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	sectionRe = regexp.MustCompile(`(?m)^##+\s*(.+?)\s*$`)
)

// section returns the body of the first level-2+ heading named name, up to
// the next heading.
func section(md, name string) string {
	locs := sectionRe.FindAllStringSubmatchIndex(md, -1)
	for i, loc := range locs {
		if !strings.EqualFold(md[loc[2]:loc[3]], name) {
			continue
		}
		end := len(md)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		return md[loc[1]:end]
	}
	return ""
}

// shortDescription is the first paragraph of "Short description", or the
// page title.
func shortDescription(md string) string {
	var para []string
	for _, ln := range strings.Split(section(md, "Short description"), "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			if len(para) > 0 {
				break
			}
			continue
		}
		para = append(para, ln)
	}
	if len(para) > 0 {
		return strings.Join(para, " ")
	}
	if m := titleRe.FindStringSubmatch(md); m != nil {
		return strings.TrimSpace(m[1]) + "."
	}
	return ""
}

type example struct {
	Desc string
	Cmd  string
}

// quickExamples reads the first fenced block of "Quick examples". A
// "# comment" line describes the command line that follows it.
func quickExamples(md string) []example {
	body := section(md, "Quick examples")
	start := strings.Index(body, "```")
	if start < 0 {
		return nil
	}
	body = body[start+3:]
	// Skip the info string.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}

	var exs []example
	desc := ""
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		ln := strings.TrimSpace(sc.Text())
		switch {
		case ln == "":
		case strings.HasPrefix(ln, "#"):
			desc = strings.TrimSpace(strings.TrimPrefix(ln, "#"))
		default:
			if desc == "" {
				desc = "Example"
			}
			exs = append(exs, example{Desc: desc, Cmd: strings.Join(strings.Fields(ln), " ")})
			desc = ""
		}
	}
	return exs
}

func tldr(cmd, short string, exs []example) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# memoctl-%s\n\n", cmd)
	if short == "" {
		short = "memoctl " + cmd
	}
	fmt.Fprintf(&b, "> %s\n> More information: %s.\n\n", short, project)

	if len(exs) == 0 {
		exs = []example{{Desc: "Show help for the command", Cmd: "memoctl " + cmd + " --help"}}
	}
	for i, ex := range exs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s:\n\n`%s`\n", ex.Desc, ex.Cmd)
	}
	return b.String()
}
