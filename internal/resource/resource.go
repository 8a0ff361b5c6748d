// Package resource provides uniform access to filesystem files,
// directories, and URL-addressed resources, behind the single [Resource]
// interface the traversal engine consumes.
package resource

import (
	"context"
	"io"
	"os"
	"time"
)

// Kind tags which concrete [Resource] implementation is in play.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindURL
	KindStream
)

// Info is the metadata a [Resource] can report about itself without
// necessarily opening it.
type Info struct {
	Size       int64 // -1 if unknown until consumed
	ModTime    time.Time
	Mode       os.FileMode
	HasModTime bool
}

// Resource is the uniform surface the traversal engine drives:
// directories never yield a stream (Open returns an error), everything
// else does.
type Resource interface {
	Kind() Kind
	Stat(ctx context.Context) (Info, error)
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Comparator orders two directory child names; nil means "report in OS
// order".
type Comparator func(a, b string) int

// ReadCloserFunc adapts a bare io.Reader into an io.ReadCloser whose
// Close is a caller-supplied cleanup, used by resources that wrap an
// already-open stream (embedded/archive-entry contents).
type ReadCloserFunc struct {
	io.Reader
	CloseFn func() error
}

// Close implements io.Closer. Idempotent only if CloseFn itself is; the
// wrappers in this package guarantee that.
func (r ReadCloserFunc) Close() error {
	if r.CloseFn == nil {
		return nil
	}

	return r.CloseFn()
}
