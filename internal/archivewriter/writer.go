// Package archivewriter emits a new archive from a sequence of entries
// produced by the traversal engine's visitors.
package archivewriter

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	kzip "github.com/klauspost/compress/zip"
)

// Entry is one record written to the archive: derived from a visited
// node's path/lastModifiedDate/inputStream.
type Entry struct {
	Path     string // the node's raw path, "!"/"%"-delimited
	Modified time.Time
	Contents io.Reader
}

// Rename is one entry in the user-supplied ordered rename-glob list: the
// first Glob (doublestar.Match syntax) that matches an entry's derived
// name replaces the whole name with To, taken literally; To cannot refer
// to parts of the matched name.
type Rename struct {
	Glob string
	To   string
}

// Writer wraps github.com/klauspost/compress/zip (used here for writing
// instead of reading) and derives each entry's archive-internal name
// from its traversal path: "!" and OS separators become "/", "%" is
// deleted.
type Writer struct {
	zw      *kzip.Writer
	renames []Rename

	closeOnce sync.Once
	closeErr  error
}

// New wraps dst (already open for writing) with a [Writer]. renames are
// applied in order; the first matching glob rewrites an entry's name.
func New(dst io.Writer, renames []Rename) *Writer {
	return &Writer{zw: kzip.NewWriter(dst), renames: renames}
}

// WriteEntry derives e's archive name and copies its contents in.
func (w *Writer) WriteEntry(e Entry) error {
	name := DeriveName(e.Path)

	for _, r := range w.renames {
		if ok, _ := doublestar.Match(r.Glob, name); ok {
			name = r.To

			break
		}
	}

	hdr := &kzip.FileHeader{
		Name:     name,
		Modified: e.Modified,
		Method:   kzip.Deflate,
	}

	fw, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("archivewriter: create entry %q: %w", name, err)
	}

	if _, err := io.Copy(fw, e.Contents); err != nil {
		return fmt.Errorf("archivewriter: write entry %q: %w", name, err)
	}

	return nil
}

// Close flushes and closes the underlying archive writer exactly once.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		if err := w.zw.Close(); err != nil {
			w.closeErr = fmt.Errorf("archivewriter: close: %w", err)
		}
	})

	return w.closeErr
}

// DeriveName implements the entry-name derivation rule: "!" becomes "/"
// (archives-in-archives become directory prefixes), "%" is deleted, and
// any OS path separator is normalized to "/".
func DeriveName(path string) string {
	name := strings.ReplaceAll(path, "\\", "/")
	name = strings.ReplaceAll(name, "!", "/")
	name = strings.ReplaceAll(name, "%", "")

	return name
}
