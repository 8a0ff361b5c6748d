package main

import (
	"context"
	"io"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/deepwalk/deepwalk/internal/node"
	"github.com/deepwalk/deepwalk/internal/scanner"
)

// grepVisitor runs a [scanner.Scanner] over every non-container node
// that carries an "inputStream" property (documents). Container nodes
// (archive-*/compressed-* types, directory entries) are skipped by type,
// since a nested container inherits its enclosing entry's inputStream.
type grepVisitor struct {
	patterns []*regexp.Regexp
	flags    scanner.Flags
	stdout   io.Writer

	forceLabel bool
	include    []string
	exclude    []string

	anyMatch atomic.Bool
	anyError atomic.Bool
}

func (v *grepVisitor) Visit(ctx context.Context, n *node.Node) error {
	if !v.includedPath(n.Props.GetString("path")) {
		return nil
	}

	t := string(n.Type)
	if strings.HasPrefix(t, "archive-") || strings.HasPrefix(t, "compressed-") || n.Type == node.TypeDirectoryEntry {
		return nil
	}

	raw, found, err := n.Props.Get("inputStream")
	if err != nil {
		return err
	}

	if !found || raw.Stream == nil {
		return nil
	}

	flags := v.flags
	if v.forceLabel {
		flags.Label = n.Props.GetString("path")
	}

	sc := &scanner.Scanner{Patterns: v.patterns, Flags: flags}

	res, err := sc.Scan(ctx, raw.Stream, v.stdout)
	if err != nil {
		return err
	}

	if res.MatchCount > 0 {
		v.anyMatch.Store(true)
	}

	return nil
}

func (v *grepVisitor) includedPath(path string) bool {
	if len(v.include) > 0 && !matchesAny(v.include, path) {
		return false
	}

	if len(v.exclude) > 0 && matchesAny(v.exclude, path) {
		return false
	}

	return true
}

func matchesAny(globs []string, path string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, path); ok {
			return true
		}
	}

	return false
}
