// Command deepgrep is the GREP-like scanner of : for each root
// operand it walks the nested-container tree with internal/traverse and
// runs internal/scanner's streaming pattern matcher over every leaf
// document reached.
package main

import (
	"fmt"
	"os"
	"regexp"

	"github.com/deepwalk/deepwalk/internal/cliutil"
	"github.com/deepwalk/deepwalk/internal/config"
	"github.com/deepwalk/deepwalk/internal/diagnostics"
	"github.com/deepwalk/deepwalk/internal/logging"
	"github.com/deepwalk/deepwalk/internal/scanner"
	"github.com/spf13/cobra"
)

var versionString = "deepwalk (deepgrep) development build"

type deepgrepFlags struct {
	patterns     []string
	ignoreCase   bool
	invert       bool
	count        bool
	filesMatch   bool
	filesNoMatch bool
	onlyMatching bool
	quiet        bool
	maxCount     int
	lineNumbers  bool
	byteOffsets  bool
	afterCtx     int
	beforeCtx    int
	context      int
	withFilename bool
	noFilename   bool
	label        string
	include      []string
	exclude      []string
	lookInto     []string
	configPath   string
	diagAddr     string
	verbose      bool
}

func main() {
	f := &deepgrepFlags{}

	rootCmd := &cobra.Command{
		Use:           "deepgrep [options] <pattern> <file-or-dir>...",
		Short:         "Search nested archives and compressed streams for a pattern",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(0),
		RunE: func(_ *cobra.Command, args []string) error {
			code, err := runDeepgrep(f, args)
			if err != nil {
				return err
			}

			os.Exit(int(code))

			return nil
		},
	}

	bindFlags(rootCmd, f)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "deepgrep: %v\n", err)
		os.Exit(int(cliutil.ExitUsage))
	}
}

func bindFlags(cmd *cobra.Command, f *deepgrepFlags) {
	fl := cmd.Flags()
	fl.StringArrayVarP(&f.patterns, "regexp", "e", nil, "pattern to match (repeatable)")
	fl.BoolVarP(&f.ignoreCase, "ignore-case", "i", false, "case-insensitive match")
	fl.BoolVarP(&f.invert, "invert-match", "v", false, "select non-matching lines")
	fl.BoolVarP(&f.count, "count", "c", false, "print only a count of matching lines")
	fl.BoolVarP(&f.filesMatch, "files-with-matches", "l", false, "print only names of documents with a match")
	fl.BoolVarP(&f.filesNoMatch, "files-without-match", "L", false, "print only names of documents without a match")
	fl.BoolVarP(&f.onlyMatching, "only-matching", "o", false, "print only the matched text")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "suppress normal output")
	fl.IntVarP(&f.maxCount, "max-count", "m", 0, "stop after this many matches per document")
	fl.BoolVarP(&f.lineNumbers, "line-number", "n", false, "prefix each line with its line number")
	fl.BoolVarP(&f.byteOffsets, "byte-offset", "b", false, "prefix each line with its byte offset")
	fl.IntVarP(&f.afterCtx, "after-context", "A", 0, "lines of trailing context")
	fl.IntVarP(&f.beforeCtx, "before-context", "B", 0, "lines of leading context")
	fl.IntVarP(&f.context, "context", "C", 0, "lines of leading and trailing context")
	fl.BoolVarP(&f.withFilename, "with-filename", "H", false, "always print the document path prefix")
	fl.BoolVarP(&f.noFilename, "no-filename", "h", false, "never print the document path prefix")
	fl.StringVar(&f.label, "label", "", "label used in place of a path for streamed roots")
	fl.StringArrayVar(&f.include, "include", nil, "only scan documents whose path matches this glob (repeatable)")
	fl.StringArrayVar(&f.exclude, "exclude", nil, "skip documents whose path matches this glob (repeatable, later wins)")
	fl.StringArrayVar(&f.lookInto, "look-into", nil, "only descend into containers matching this glob (repeatable)")
	fl.StringVar(&f.configPath, "config", "", "explicit ~/.deepwalkrc-style config file")
	fl.StringVar(&f.diagAddr, "diagnostics-addr", "", "serve a read-only metrics dashboard on addr")
	fl.BoolVarP(&f.verbose, "verbose", "V", false, "print informational tracing")
}

func runDeepgrep(f *deepgrepFlags, args []string) (cliutil.ExitCode, error) {
	patterns, roots, err := splitPatternsAndRoots(f, args)
	if err != nil {
		return cliutil.ExitUsage, err
	}

	logging.Quiet = f.quiet
	logging.Verbose = f.verbose

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cliutil.ExitUsage, err
	}

	compiled, err := compilePatterns(patterns, f.ignoreCase)
	if err != nil {
		return cliutil.ExitUsage, err
	}

	before, after := f.beforeCtx, f.afterCtx
	if f.context > 0 {
		before, after = f.context, f.context
	}

	visitor := &grepVisitor{
		patterns: compiled,
		stdout:   os.Stdout,
		flags: scanner.Flags{
			Inverted:        f.invert,
			WithLineNumbers: f.lineNumbers,
			WithByteOffsets: f.byteOffsets,
			BeforeContext:   before,
			AfterContext:    after,
			MaxCount:        f.maxCount,
			Operation:       operationFor(f),
			Label:           f.label,
		},
		forceLabel: forceLabel(f, roots),
		include:    f.include,
		exclude:    f.exclude,
	}

	ctx, cancel := cliutil.ParentContext()
	defer cancel()

	engine := cliutil.BuildEngine(cfg, cliutil.EngineOptions{
		LookIntoGlobs: f.lookInto,
		MaxDepth:      -2,
		Quiet:         f.quiet,
	}, func(path string, err error) {
		logging.Warn("%s: %v", path, err)
	})

	if f.diagAddr != "" {
		srv := diagnostics.New(engine, versionString).Serve(f.diagAddr)
		defer srv.Close()
	}

	anyError := false

	for _, root := range roots {
		nodePath, res, err := cliutil.ResolveRoot(root)
		if err != nil {
			logging.Error("%s: %v", root, err)

			anyError = true

			continue
		}

		if err := engine.Scan(ctx, nodePath, res, visitor); err != nil {
			logging.Error("%s: %v", nodePath, err)

			anyError = true
		}
	}

	switch {
	case anyError:
		return cliutil.ExitUsage, nil
	case !visitor.anyMatch.Load():
		return cliutil.ExitNoMatch, nil
	default:
		return cliutil.ExitSuccess, nil
	}
}

// splitPatternsAndRoots resolves  "-e <pattern>" vs.
// positional-pattern ambiguity: if -e was given at least once, every
// positional argument is a root; otherwise the first positional argument
// is the pattern, grep(1)-style.
func splitPatternsAndRoots(f *deepgrepFlags, args []string) ([]string, []string, error) {
	if len(f.patterns) > 0 {
		return f.patterns, args, nil
	}

	if len(args) == 0 {
		return nil, nil, errMissingPattern
	}

	return args[:1], args[1:], nil
}

func compilePatterns(patterns []string, ignoreCase bool) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))

	for _, p := range patterns {
		if ignoreCase {
			p = "(?i)" + p
		}

		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("deepgrep: bad pattern %q: %w", p, err)
		}

		out = append(out, re)
	}

	return out, nil
}

func operationFor(f *deepgrepFlags) scanner.Operation {
	switch {
	case f.quiet:
		return scanner.Quiet
	case f.count:
		return scanner.Count
	case f.filesMatch:
		return scanner.FilesWithMatches
	case f.filesNoMatch:
		return scanner.FilesWithoutMatch
	case f.onlyMatching:
		return scanner.OnlyMatching
	default:
		return scanner.Normal
	}
}

// forceLabel decides whether every emitted line is prefixed with its
// document's path: -H always, -h never, otherwise only when more than
// one root operand was given. A single directory or archive root gets
// no prefix, however many documents it holds.
func forceLabel(f *deepgrepFlags, roots []string) bool {
	if f.noFilename {
		return false
	}

	return f.withFilename || len(roots) > 1
}
