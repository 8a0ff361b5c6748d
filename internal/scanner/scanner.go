// Package scanner implements a streaming multi-pattern regex scanner
// over a character stream, reporting matches with context lines, counts,
// and byte offsets.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Operation is a mutually-exclusive output mode.
type Operation int

const (
	Normal Operation = iota
	OnlyMatching
	Count
	FilesWithMatches
	FilesWithoutMatch
	Quiet
)

// Flags are the per-run knobs controlling a Scan.
type Flags struct {
	Inverted        bool
	WithLineNumbers bool
	WithByteOffsets bool
	BeforeContext   int
	AfterContext    int
	MaxCount        int // 0 => unlimited
	Operation       Operation
	Label           string // prefix for each emitted line; "" => no label field
}

// Scanner locates matches of one or more compiled regexes in a single
// document. It holds only the compiled patterns and flags; the
// per-document state (context windows, match counts, after-context
// countdown) lives in a scanState that each Scan call builds afresh.
type Scanner struct {
	Patterns []*regexp.Regexp
	Flags    Flags
}

// Result summarizes one document's scan, used by the FilesWithMatches /
// FilesWithoutMatch / Count / Quiet operations and by the traversal
// visitor to decide exit status: 0 if any line was selected, 1 if none.
type Result struct {
	MatchCount int
	LineCount  int
}

// Scan reads r line-by-line (CR/LF/CRLF delimited, CRLF never double
// counted) and writes formatted output to w according to
// s.Flags.Operation. It returns the per-document [Result].
//
// Early termination: once the configured stop condition is met, Scan
// leaves its read loop, stops reading further input and returns
// normally; no error is raised for it.
func (s *Scanner) Scan(ctx context.Context, r io.Reader, w io.Writer) (Result, error) {
	cr := &countingReader{r: r}
	lines := newLineSplitter(cr)

	st := &scanState{
		s: s,
		w: w,
	}

	for {
		if err := ctx.Err(); err != nil {
			return st.result, fmt.Errorf("scan: %w", err)
		}

		line, offset, ok, err := lines.next()
		if !ok {
			break
		}
		if err != nil {
			return st.result, fmt.Errorf("scan: %w", err)
		}

		st.result.LineCount++

		stop, err := st.processLine(line, offset)
		if err != nil {
			return st.result, fmt.Errorf("scan: %w", err)
		}
		if stop {
			break
		}
	}

	st.finish()

	return st.result, nil
}

// scanState is the mutable per-document bookkeeping separated out of
// Scanner itself so a single compiled Scanner (patterns never change)
// could in principle be reused across documents by constructing a fresh
// scanState each time; Scan always does exactly that.
type scanState struct {
	s *Scanner
	w io.Writer

	result Result

	before       []contextLine
	afterCountLeft int
	haveMatched  bool
	sepPending   bool // emit "--" before the next flush, once a match has occurred
}

type contextLine struct {
	text   string
	lineNo int
	offset int64
}

func (st *scanState) matches(line string) bool {
	for _, p := range st.s.Patterns {
		if p.MatchString(line) {
			return true
		}
	}

	return false
}

// processLine runs one line through the match test, applies the
// before/after context bookkeeping, and reports whether the document
// scan should stop.
func (st *scanState) processLine(line string, offset int64) (bool, error) {
	isMatch := st.matches(line)
	if st.s.Flags.Inverted {
		isMatch = !isMatch
	}

	lineNo := st.result.LineCount

	if !isMatch {
		st.handleNonMatch(line, lineNo, offset)

		return false, nil
	}

	st.handleMatch(line, lineNo, offset)

	return st.shouldStop(), nil
}

func (st *scanState) handleNonMatch(line string, lineNo int, offset int64) {
	if st.afterCountLeft > 0 {
		st.emitContext(line, lineNo, offset)
		st.afterCountLeft--

		return
	}

	if st.s.Flags.BeforeContext <= 0 {
		return
	}

	st.before = append(st.before, contextLine{text: line, lineNo: lineNo, offset: offset})
	if len(st.before) > st.s.Flags.BeforeContext {
		st.before = st.before[1:]
	}
}

func (st *scanState) handleMatch(line string, lineNo int, offset int64) {
	contextConfigured := st.s.Flags.BeforeContext > 0 || st.s.Flags.AfterContext > 0
	beforeWindowFull := len(st.before) == st.s.Flags.BeforeContext

	if contextConfigured && st.haveMatched && st.afterCountLeft == 0 && beforeWindowFull {
		st.emitSeparator()
	}

	st.flushBefore()
	st.emitMatchLine(line, lineNo, offset)

	st.afterCountLeft = st.s.Flags.AfterContext
	st.haveMatched = true
	st.result.MatchCount++
}

// flushBefore emits the buffered before-context window in order, then
// clears it.
func (st *scanState) flushBefore() {
	for _, c := range st.before {
		st.emitContext(c.text, c.lineNo, c.offset)
	}

	st.before = st.before[:0]
}

func (st *scanState) shouldStop() bool {
	switch st.s.Flags.Operation {
	case FilesWithMatches, FilesWithoutMatch, Quiet:
		return true
	case Normal, OnlyMatching, Count:
		return st.s.Flags.MaxCount > 0 && st.result.MatchCount >= st.s.Flags.MaxCount
	default:
		return false
	}
}

// finish emits whatever the operation defers to end-of-document:
// Count's total, FilesWithMatches/FilesWithoutMatch's path-only line.
// Normal and OnlyMatching have already streamed their output line by
// line; Quiet never emits anything.
func (st *scanState) finish() {
	switch st.s.Flags.Operation {
	case Count:
		fmt.Fprintln(st.w, st.result.MatchCount)
	case FilesWithMatches:
		if st.result.MatchCount > 0 {
			st.emitLabelOnly()
		}
	case FilesWithoutMatch:
		if st.result.MatchCount == 0 {
			st.emitLabelOnly()
		}
	}
}

func (st *scanState) emitLabelOnly() {
	fmt.Fprintln(st.w, st.s.Flags.Label)
}

func (st *scanState) emitSeparator() {
	if st.s.Flags.Operation != Normal {
		return
	}

	fmt.Fprintln(st.w, "--")
}

func (st *scanState) emitMatchLine(line string, lineNo int, offset int64) {
	switch st.s.Flags.Operation {
	case Normal:
		fmt.Fprintln(st.w, formatLine(st.s.Flags, lineNo, offset, line, ':'))
	case OnlyMatching:
		for _, text := range st.matchedSubstrings(line) {
			fmt.Fprintln(st.w, formatLine(st.s.Flags, lineNo, offset, text, ':'))
		}
	default:
		// Count/FilesWithMatches/FilesWithoutMatch/Quiet emit nothing
		// per-line; counting already happened in handleMatch.
	}
}

func (st *scanState) matchedSubstrings(line string) []string {
	var out []string

	for _, p := range st.s.Patterns {
		for _, m := range p.FindAllString(line, -1) {
			out = append(out, m)
		}
	}

	return out
}

func (st *scanState) emitContext(line string, lineNo int, offset int64) {
	if st.s.Flags.Operation != Normal {
		return
	}

	fmt.Fprintln(st.w, formatLine(st.s.Flags, lineNo, offset, line, '-'))
}

// formatLine renders one output line with optional label/line/offset
// prefixes, separated by sep (':' for a matching line, '-' for context).
func formatLine(f Flags, lineNo int, offset int64, content string, sep byte) string {
	var b strings.Builder

	if f.Label != "" {
		b.WriteString(f.Label)
		b.WriteByte(sep)
	}

	if f.WithLineNumbers {
		b.WriteString(strconv.Itoa(lineNo))
		b.WriteByte(sep)
	}

	if f.WithByteOffsets {
		b.WriteString(strconv.FormatInt(offset, 10))
		b.WriteByte(sep)
	}

	b.WriteString(content)

	return b.String()
}

// ErrStopDocument is an exported sentinel that nothing in this package
// returns or checks; Scan's early termination does not use it.
var ErrStopDocument = errors.New("scanner: stop document")
