package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/deepwalk/deepwalk/internal/expr"
)

// parser is a small hand-rolled recursive-descent parser translating a
// find(1)-style expression-grammar token sequence into an [expr.Expr]
// tree. Only the tree evaluator (internal/expr) needs to be reusable
// across binaries; the parser is CLI glue that has to exist somewhere
// for deepfind to run, kept deliberately small.
type parser struct {
	tokens    []string
	pos       int
	hasAction bool
}

var errSyntax = errors.New("deepfind: syntax error in expression")

// Parse consumes all of p.tokens and returns the resulting expression
// plus whether it contained any action: an implicit -print is appended
// by the caller when no action was given.
func (p *parser) Parse() (expr.Expr, bool, error) {
	if len(p.tokens) == 0 {
		return expr.ConstExpr(true), false, nil
	}

	e, err := p.parseComma()
	if err != nil {
		return nil, false, err
	}

	if p.pos != len(p.tokens) {
		return nil, false, fmt.Errorf("%w: unexpected %q", errSyntax, p.tokens[p.pos])
	}

	return e, p.hasAction, nil
}

func (p *parser) peek() (string, bool) {
	if p.pos >= len(p.tokens) {
		return "", false
	}

	return p.tokens[p.pos], true
}

func (p *parser) next() (string, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}

	return tok, ok
}

func (p *parser) parseComma() (expr.Expr, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.peek()
		if !ok || tok != "," {
			return left, nil
		}

		p.pos++

		right, err := p.parseOr()
		if err != nil {
			return nil, err
		}

		left = expr.CommaExpr{L: left, R: right}
	}
}

func (p *parser) parseOr() (expr.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.peek()
		if !ok || !isOr(tok) {
			return left, nil
		}

		p.pos++

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = expr.OrExpr{L: left, R: right}
	}
}

func (p *parser) parseAnd() (expr.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for {
		tok, ok := p.peek()
		if !ok || isOr(tok) || tok == "," || tok == ")" {
			return left, nil
		}

		if isAnd(tok) {
			p.pos++
		}
		// implicit AND: no token consumed when the next term starts directly

		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		left = expr.AndExpr{L: left, R: right}
	}
}

func (p *parser) parseNot() (expr.Expr, error) {
	tok, ok := p.peek()
	if ok && (tok == "!" || tok == "-not") {
		p.pos++

		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		return expr.NotExpr{X: x}, nil
	}

	return p.parsePrimary()
}

func (p *parser) parsePrimary() (expr.Expr, error) {
	tok, ok := p.next()
	if !ok {
		return nil, fmt.Errorf("%w: unexpected end of expression", errSyntax)
	}

	switch tok {
	case "(":
		inner, err := p.parseComma()
		if err != nil {
			return nil, err
		}

		closeTok, ok := p.next()
		if !ok || closeTok != ")" {
			return nil, fmt.Errorf("%w: expected )", errSyntax)
		}

		return inner, nil
	default:
		return p.parseTestOrAction(tok)
	}
}

func isOr(tok string) bool  { return tok == "-o" || tok == "-or" || tok == "||" }
func isAnd(tok string) bool { return tok == "-a" || tok == "-and" || tok == "&&" }

// parseTestOrAction dispatches a single test/action token to its
// builder.
func (p *parser) parseTestOrAction(tok string) (expr.Expr, error) {
	switch tok {
	case "-true":
		return expr.ConstExpr(true), nil
	case "-false":
		return expr.ConstExpr(false), nil
	case "-name":
		return p.globTest("name")
	case "-path":
		return p.globTest("path")
	case "-type":
		return p.globTest("type")
	case "-readable":
		return expr.Readable(), nil
	case "-writable":
		return expr.Writable(), nil
	case "-executable":
		return expr.Executable(), nil
	case "-size":
		return p.sizeTest()
	case "-mtime":
		return p.ageTest(expr.AgeDays)
	case "-mmin":
		return p.ageTest(expr.AgeMinutes)
	default:
		return p.parseAction(tok)
	}
}

func (p *parser) argument(what string) (string, error) {
	tok, ok := p.next()
	if !ok {
		return "", fmt.Errorf("%w: %s expects an argument", errSyntax, what)
	}

	return tok, nil
}

func (p *parser) globTest(prop string) (expr.Expr, error) {
	pat, err := p.argument("-" + prop)
	if err != nil {
		return nil, err
	}

	return expr.GlobExpr{Property: prop, Pattern: pat}, nil
}

func (p *parser) sizeTest() (expr.Expr, error) {
	lit, err := p.argument("-size")
	if err != nil {
		return nil, err
	}

	cmp, n, unit, err := expr.ParseSizeLiteral(lit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errSyntax, err)
	}

	return expr.SizeExpr{Cmp: cmp, N: n, Unit: unit}, nil
}

func (p *parser) ageTest(unit expr.AgeUnit) (expr.Expr, error) {
	lit, err := p.argument("-mtime/-mmin")
	if err != nil {
		return nil, err
	}

	cmp, n, err := expr.ParseAgeLiteral(lit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errSyntax, err)
	}

	return expr.AgeExpr{Cmp: cmp, N: n, Unit: unit}, nil
}

// parseAction handles the §4.5 action table; every branch marks
// p.hasAction so Parse can decide whether to append an implicit -print.
func (p *parser) parseAction(tok string) (expr.Expr, error) {
	p.hasAction = true

	switch tok {
	case "-print":
		return expr.PrintExpr{}, nil
	case "-echo":
		tmpl, err := p.argument("echo")
		if err != nil {
			return nil, err
		}

		return expr.EchoExpr{Template: tmpl}, nil
	case "-printf":
		return p.printfAction()
	case "-ls":
		return expr.LsExpr{}, nil
	case "-exec":
		return p.wordsUntilSemicolon(func(words []string) expr.Expr { return expr.ExecExpr{Words: words} })
	case "-pipe":
		return p.wordsUntilSemicolon(func(words []string) expr.Expr { return expr.PipeExpr{Words: words} })
	case "-cat":
		return expr.CatExpr{}, nil
	case "-copy":
		return p.copyAction()
	case "-digest":
		algo, err := p.argument("digest")
		if err != nil {
			return nil, err
		}

		return expr.DigestExpr{Algo: algo}, nil
	case "-checksum":
		algo, err := p.argument("checksum")
		if err != nil {
			return nil, err
		}

		return expr.ChecksumExpr{Algo: algo}, nil
	case "-disassemble":
		return expr.DisassembleExpr{}, nil
	case "-prune":
		return expr.PruneExpr{}, nil
	case "-delete":
		return expr.DeleteExpr{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown token %q", errSyntax, tok)
	}
}

func (p *parser) printfAction() (expr.Expr, error) {
	format, err := p.argument("printf")
	if err != nil {
		return nil, err
	}

	var props []string

	for strings.Count(format, "%")-strings.Count(format, "%%") > len(props) {
		name, err := p.argument("printf")
		if err != nil {
			return nil, err
		}

		props = append(props, name)
	}

	return expr.PrintfExpr{Format: format, Props: props}, nil
}

func (p *parser) copyAction() (expr.Expr, error) {
	mkdirs := false

	if tok, ok := p.peek(); ok && tok == "--mkdirs" {
		mkdirs = true
		p.pos++
	}

	tmpl, err := p.argument("copy")
	if err != nil {
		return nil, err
	}

	return expr.CopyExpr{Template: tmpl, Mkdirs: mkdirs}, nil
}

func (p *parser) wordsUntilSemicolon(build func([]string) expr.Expr) (expr.Expr, error) {
	var words []string

	for {
		tok, ok := p.next()
		if !ok {
			return nil, fmt.Errorf("%w: missing terminating ;", errSyntax)
		}
		if tok == ";" {
			return build(words), nil
		}

		words = append(words, tok)
	}
}
