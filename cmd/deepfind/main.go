// Command deepfind is the FIND-like evaluator of : for each
// root operand it walks the nested-container tree with
// internal/traverse, evaluating a find(1)-style boolean expression
// (internal/expr) against every visited node.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/deepwalk/deepwalk/internal/cliutil"
	"github.com/deepwalk/deepwalk/internal/config"
	"github.com/deepwalk/deepwalk/internal/diagnostics"
	"github.com/deepwalk/deepwalk/internal/expr"
	"github.com/deepwalk/deepwalk/internal/logging"
	"github.com/spf13/cobra"
)

// rootCmd exists to give deepfind the same cobra.Command entry point as
// deepgrep; DisableFlagParsing is set because find(1)'s grammar
// interleaves flags, path operands, and expression tokens beginning with
// "-" in a way pflag cannot disambiguate, so parseArgv does that job
// itself over the raw argument slice cobra hands it.
var rootCmd = &cobra.Command{
	Use:                "deepfind [options] <file-or-dir>... [expression]",
	Short:              "Find files inside nested archives and compressed streams",
	DisableFlagParsing: true,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func main() {
	var code exitCode

	rootCmd.RunE = func(_ *cobra.Command, args []string) error {
		code = run(args)

		return nil
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "deepfind: %v\n", err)
		os.Exit(int(exitConfigError))
	}

	os.Exit(int(code))
}

func run(args []string) exitCode {
	opts, roots, exprTokens, err := parseArgv(args)
	if err != nil {
		switch err { //nolint:errorlint
		case errShowHelp:
			fmt.Fprint(os.Stdout, helpText)

			return exitSuccess
		case errShowVersion:
			fmt.Fprintln(os.Stdout, versionString)

			return exitSuccess
		}

		fmt.Fprintf(os.Stderr, "deepfind: %v\n", err)

		return exitConfigError
	}

	logging.Quiet = opts.quiet
	logging.Verbose = opts.verbose

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "deepfind: %v\n", err)

		return exitConfigError
	}

	p := &parser{tokens: exprTokens}

	tree, hasAction, err := p.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "deepfind: %v\n", err)

		return exitConfigError
	}

	if !hasAction {
		tree = expr.AndExpr{L: tree, R: expr.PrintExpr{}}
	}

	ctx, cancel := cliutil.ParentContext()
	defer cancel()

	visitor := &exprVisitor{
		root:        tree,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		exec:        expr.OSExec(os.Stdout, os.Stderr),
		disassemble: disassembleUnavailable,
		fs:          expr.OSFileOps{},
	}

	engine := cliutil.BuildEngine(cfg, cliutil.EngineOptions{
		LookIntoGlobs:    opts.lookInto,
		MinDepth:         opts.minDepth,
		MaxDepth:         opts.maxDepth,
		DescendantsFirst: opts.descendantsFirst,
		Quiet:            opts.quiet,
	}, func(path string, err error) {
		logging.Warn("%s: %v", path, err)
	})

	if opts.diagnosticsAddr != "" {
		srv := diagnostics.New(engine, versionString).Serve(opts.diagnosticsAddr)
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

		if opts.debug {
			fmt.Fprintf(os.Stderr, "deepfind: scanning %s\n", cliutil.DisplayPath(nodePath))
		}

		if err := engine.Scan(ctx, nodePath, res, visitor); err != nil {
			logging.Error("%s: %v", nodePath, err)

			anyError = true
		}
	}

	if anyError {
		return exitTraversalError
	}

	return exitSuccess
}

// disassembleUnavailable is the production [expr.Env.Disassemble]: no
// external class-file disassembler is wired up, so "disassemble" always
// fails cleanly rather than silently doing nothing.
func disassembleUnavailable(_ context.Context, _ io.Reader, _ io.Writer) error {
	return errDisassembleUnavailable
}

var versionString = "deepwalk (deepfind) development build"
