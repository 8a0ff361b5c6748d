package scanner

import (
	"bufio"
	"io"
)

// countingReader is a plain pass-through wrapper around the raw byte
// stream; it keeps no count. Byte offsets are tracked by lineSplitter,
// which keeps its own logical position, incremented one byte at a time
// as bytes are actually consumed (bufio prefetches ahead of that).
type countingReader struct {
	r io.Reader
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)

	return n, err //nolint:wrapcheck
}

// lineSplitter turns a byte stream into a sequence of logical lines
// delimited by CR, LF, or CRLF: CRLF must not count as two line
// terminations. It reports the byte offset of each line's first content
// byte.
type lineSplitter struct {
	br  *bufio.Reader
	pos int64
}

func newLineSplitter(cr *countingReader) *lineSplitter {
	return &lineSplitter{br: bufio.NewReader(cr)}
}

// next returns the next logical line (without its terminator), the byte
// offset of its first byte, and ok=false at end of stream.
func (l *lineSplitter) next() (line string, offset int64, ok bool, err error) {
	start := l.pos

	var buf []byte

	for {
		b, rerr := l.br.ReadByte()
		if rerr != nil {
			if len(buf) == 0 {
				return "", 0, false, ignoreEOF(rerr)
			}

			return string(buf), start, true, nil
		}

		l.pos++

		switch b {
		case '\n':
			return string(buf), start, true, nil
		case '\r':
			next, peekErr := l.br.Peek(1)
			if peekErr == nil && len(next) == 1 && next[0] == '\n' {
				_, _ = l.br.ReadByte() // consume the paired LF, CRLF counts once
				l.pos++
			}

			return string(buf), start, true, nil
		default:
			buf = append(buf, b)
		}
	}
}

func ignoreEOF(err error) error {
	if err == io.EOF { //nolint:errorlint
		return nil
	}

	return err
}
