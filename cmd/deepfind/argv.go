package main

import (
	"errors"
	"fmt"
	"strconv"
)

// cliOptions are the global flags that apply to the whole run, as
// opposed to the expression tokens that follow the root operands.
type cliOptions struct {
	lookInto         []string
	minDepth         int
	maxDepth         int
	descendantsFirst bool
	configPath       string
	diagnosticsAddr  string
	quiet            bool
	verbose          bool
	debug            bool
}

var (
	errShowHelp                = errors.New("deepfind: show help")
	errShowVersion             = errors.New("deepfind: show version")
	errDisassembleUnavailable  = errors.New("deepfind: disassemble is not wired to an external tool in this build")
	errMissingRoot             = errors.New("deepfind: at least one path or URL operand is required")
	errMissingFlagArg          = errors.New("deepfind: flag expects an argument")
)

// testOrActionTokens is the closed set of tokens that begin an
// expression term,'s grammar. Any argument matching
// one of these (or "(", "!", "-not") ends the run of root operands.
var testOrActionTokens = map[string]bool{
	"-true": true, "-false": true,
	"-name": true, "-path": true, "-type": true,
	"-readable": true, "-writable": true, "-executable": true,
	"-size": true, "-mtime": true, "-mmin": true,
	"-print": true, "-echo": true, "-printf": true, "-ls": true,
	"-exec": true, "-pipe": true, "-cat": true, "-copy": true,
	"-digest": true, "-checksum": true, "-disassemble": true,
	"-prune": true, "-delete": true,
}

// globalFlags names some of the global flags that precede the root
// operands. parseArgv matches flags in its own switch and does not
// consult this map.
var globalFlags = map[string]bool{
	"--look-into": true, "--min-depth": true, "--max-depth": true,
	"--depth": true, "--config": true,
}

// parseArgv splits args into global flags, root operands, and the
// expression token list,: "deepfind [options]
// <file-or-dir>... [expression]". find(1)'s own grammar is the model:
// root operands are everything up to the first token that looks like the
// start of an expression.
func parseArgv(args []string) (cliOptions, []string, []string, error) {
	opts := cliOptions{maxDepth: -2} // -2: "unset", resolved by cliutil.BuildEngine

	var roots []string

	i := 0

	for ; i < len(args); i++ {
		a := args[i]

		switch {
		case a == "--help" || a == "-h":
			return opts, nil, nil, errShowHelp
		case a == "--version":
			return opts, nil, nil, errShowVersion
		case a == "--quiet" || a == "-q":
			opts.quiet = true
		case a == "--verbose" || a == "-v":
			opts.verbose = true
		case a == "--debug":
			opts.debug = true
		case a == "--descendants-first" || a == "--depth":
			opts.descendantsFirst = true
		case a == "--nowarn":
			opts.quiet = true
		case a == "--look-into":
			v, next, err := flagArg(args, i, "--look-into")
			if err != nil {
				return opts, nil, nil, err
			}

			opts.lookInto = append(opts.lookInto, v)
			i = next
		case a == "--min-depth":
			v, next, err := flagArg(args, i, "--min-depth")
			if err != nil {
				return opts, nil, nil, err
			}

			n, err := strconv.Atoi(v)
			if err != nil {
				return opts, nil, nil, fmt.Errorf("--min-depth: %w", err)
			}

			opts.minDepth = n
			i = next
		case a == "--max-depth":
			v, next, err := flagArg(args, i, a)
			if err != nil {
				return opts, nil, nil, err
			}

			n, err := strconv.Atoi(v)
			if err != nil {
				return opts, nil, nil, fmt.Errorf("%s: %w", a, err)
			}

			opts.maxDepth = n
			i = next
		case a == "--config":
			v, next, err := flagArg(args, i, "--config")
			if err != nil {
				return opts, nil, nil, err
			}

			opts.configPath = v
			i = next
		case a == "--diagnostics-addr":
			v, next, err := flagArg(args, i, "--diagnostics-addr")
			if err != nil {
				return opts, nil, nil, err
			}

			opts.diagnosticsAddr = v
			i = next
		case a == "(" || a == "!" || a == "-not" || testOrActionTokens[a]:
			return finish(opts, roots, args[i:])
		default:
			roots = append(roots, a)
		}
	}

	return finish(opts, roots, nil)
}

func finish(opts cliOptions, roots []string, exprTokens []string) (cliOptions, []string, []string, error) {
	if len(roots) == 0 {
		return opts, nil, nil, errMissingRoot
	}

	return opts, roots, exprTokens, nil
}

func flagArg(args []string, i int, name string) (string, int, error) {
	if i+1 >= len(args) {
		return "", 0, fmt.Errorf("%w: %s", errMissingFlagArg, name)
	}

	return args[i+1], i + 1, nil
}
