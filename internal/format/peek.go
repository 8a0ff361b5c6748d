// Package format implements non-destructive classification of a byte
// stream or filename as archive / compressed / normal, and the
// "--look-into" glob predicate consulted before the traversal engine
// recurses into a container.
package format

import (
	"bytes"
	"io"
)

// peekBudget bounds how many bytes Classify is willing to read ahead of
// the caller: a bounded prefix, at most a few kilobytes.
const peekBudget = 8192

// PeekReader wraps an io.Reader so that Classify can read a bounded
// prefix and then hand back a reader that replays exactly those bytes
// before resuming the underlying stream — the caller never loses bytes
// to detection. Grounded on the rewindReader of mholt/archiver's
// Identify(), simplified to the single rewind-then-replay use the
// traversal engine needs (no repeated rewinding).
type PeekReader struct {
	r       io.Reader
	buf     []byte
	replay  *bytes.Reader
	peeked  bool
	started bool
}

// NewPeekReader returns a [PeekReader] over r.
func NewPeekReader(r io.Reader) *PeekReader {
	return &PeekReader{r: r}
}

// Peek reads (and buffers) up to peekBudget bytes without consuming them
// from the caller's perspective: a subsequent Read call on the
// [PeekReader] itself will still see those bytes first.
func (p *PeekReader) Peek() ([]byte, error) {
	if p.peeked {
		return p.buf, nil
	}

	buf := make([]byte, peekBudget)

	n, err := io.ReadFull(p.r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF { //nolint:errorlint
		return nil, err
	}

	p.buf = buf[:n]
	p.peeked = true

	return p.buf, nil
}

// Read implements io.Reader, first replaying any peeked bytes, then
// reading through to the underlying stream.
func (p *PeekReader) Read(dst []byte) (int, error) {
	if p.peeked && !p.started {
		p.replay = bytes.NewReader(p.buf)
		p.started = true
	}

	if p.replay != nil {
		n, err := p.replay.Read(dst)
		if n > 0 || err == nil {
			return n, nil
		}
		// replay exhausted, fall through to the live stream
		p.replay = nil
	}

	return p.r.Read(dst)
}

// Reader returns an io.Reader equivalent to the [PeekReader] itself, for
// callers that want to pass it onward (e.g. into the traversal engine's
// stream-based recursion) after classification has already happened.
func (p *PeekReader) Reader() io.Reader { return p }
