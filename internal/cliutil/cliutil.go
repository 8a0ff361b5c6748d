// Package cliutil holds the small pieces of plumbing shared by
// cmd/deepfind and cmd/deepgrep: resolving a CLI path/URL operand into a
// [resource.Resource], building an [traverse.Engine] from flags/config,
// and mapping error outcomes onto process exit codes. Pulled up one
// level since both binaries need the same small per-binary helpers.
package cliutil

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/deepwalk/deepwalk/internal/config"
	"github.com/deepwalk/deepwalk/internal/format"
	"github.com/deepwalk/deepwalk/internal/resource"
	"github.com/deepwalk/deepwalk/internal/traverse"
	homedir "github.com/mitchellh/go-homedir"
	"golang.org/x/sys/unix"
)

// ExitCode is deepgrep's exit status taxonomy: 0 "selected at least one
// line", 1 "ran fine but selected nothing", 2 on any error. deepfind's
// exit codes differ (no "nothing matched" status) and are defined in
// cmd/deepfind instead.
type ExitCode int

const (
	ExitSuccess ExitCode = 0
	ExitNoMatch ExitCode = 1
	ExitUsage   ExitCode = 2
)

// ResolveRoot turns one positional CLI operand into a path/realPath pair
// and a [resource.Resource], expanding a leading "~" via go-homedir and
// treating anything parsing as an http(s) URL as a [resource.URLResource].
func ResolveRoot(arg string) (nodePath string, res resource.Resource, err error) {
	if looksLikeURL(arg) {
		return arg, resource.URLResource{URL: arg}, nil
	}

	expanded, err := homedir.Expand(arg)
	if err != nil {
		return "", nil, fmt.Errorf("expand %q: %w", arg, err)
	}

	info, err := os.Stat(expanded)
	if err != nil {
		return "", nil, fmt.Errorf("stat %q: %w", expanded, err)
	}

	if info.IsDir() {
		return expanded, resource.DirResource{Path: expanded, Comparator: resource.DefaultComparator()}, nil
	}

	return expanded, resource.FileResource{Path: expanded}, nil
}

func looksLikeURL(s string) bool {
	u, err := url.Parse(s)

	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// EngineOptions carries the CLI flags common to both binaries that shape
// the traversal engine.
type EngineOptions struct {
	LookIntoGlobs    []string
	MinDepth         int
	MaxDepth         int
	DescendantsFirst bool
	Quiet            bool
}

// BuildEngine constructs an [traverse.Engine] from cfg and opts, wiring
// the locale comparator and a "print and continue" error policy that
// respects --quiet.
func BuildEngine(cfg *config.Config, opts EngineOptions, report func(path string, err error)) *traverse.Engine {
	e := traverse.NewEngine()

	e.MinDepth = opts.MinDepth
	if opts.MaxDepth != -2 {
		e.MaxDepth = opts.MaxDepth
	}

	e.DescendantsFirst = opts.DescendantsFirst
	e.Escape = cfg.EscapeTable()
	e.Comparator = comparatorFor(cfg.Comparator)

	e.LookInto = func(formatName, path string) bool {
		return format.LookInto(formatName, path, opts.LookIntoGlobs)
	}

	e.ErrorPolicy = traverse.ContinueErrorPolicy(func(path string, err error) {
		if !opts.Quiet {
			report(path, err)
		}
	})

	if n, ok := fdBudget(); ok {
		e.SetFDBudget(n)
	}

	return e
}

// fdBudget derives a concurrently-open-archive budget from the
// process's RLIMIT_NOFILE: half the soft limit, leaving headroom for
// stdio, the diagnostics listener, and whatever else the process has
// open.
func fdBudget() (int64, bool) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, false
	}

	cur := rlim.Cur
	if cur == unix.RLIM_INFINITY || cur == 0 {
		return 0, false
	}

	budget := int64(cur) / 2 //nolint:gosec
	if budget < 1 {
		return 0, false
	}

	return budget, true
}

func comparatorFor(name string) resource.Comparator {
	if name == "os" {
		return nil
	}

	return resource.DefaultComparator()
}

// SemicolonTerminator names the "-exec ... ;" / "-pipe ... ;" terminator
// convention. The CLI parsers match the literal ";" themselves and do
// not reference this constant.
const SemicolonTerminator = ";"

// ParentContext returns a background context cancelled on SIGINT/SIGTERM.
// A one-shot traversal has no mount to unmount and no daemon stacktrace
// dump to wire up, so this is a plain signal-driven cancellation, nothing
// more.
func ParentContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// DisplayPath renders a path for a "--debug" trace line, trimming a
// leading "./" for readability.
func DisplayPath(p string) string {
	return strings.TrimPrefix(p, "./")
}
