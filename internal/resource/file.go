package resource

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// FileResource is a regular file resolved from a filesystem path.
type FileResource struct {
	Path string
}

func (f FileResource) Kind() Kind { return KindFile }

func (f FileResource) Stat(_ context.Context) (Info, error) {
	fi, err := os.Stat(f.Path)
	if err != nil {
		return Info{}, fmt.Errorf("stat %q: %w", f.Path, err)
	}

	return Info{Size: fi.Size(), ModTime: fi.ModTime(), Mode: fi.Mode(), HasModTime: true}, nil
}

func (f FileResource) Open(_ context.Context) (io.ReadCloser, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", f.Path, err)
	}

	return fh, nil
}

// DirResource is a regular directory resolved from a filesystem path.
type DirResource struct {
	Path       string
	Comparator Comparator // nil => OS order
}

func (d DirResource) Kind() Kind { return KindDirectory }

func (d DirResource) Stat(_ context.Context) (Info, error) {
	fi, err := os.Stat(d.Path)
	if err != nil {
		return Info{}, fmt.Errorf("stat %q: %w", d.Path, err)
	}

	return Info{Size: -1, ModTime: fi.ModTime(), Mode: fi.Mode(), HasModTime: true}, nil
}

func (d DirResource) Open(_ context.Context) (io.ReadCloser, error) {
	return nil, fmt.Errorf("%w: %q is a directory", ErrNotOpenable, d.Path)
}

// ListChildren returns this directory's entries, sanitised and ordered:
// Comparator nil means OS order, otherwise sorted.
func (d DirResource) ListChildren(escape map[rune]rune) ([]string, error) {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil, fmt.Errorf("readdir %q: %w", d.Path, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, SanitizeName(e.Name(), escape))
	}

	if d.Comparator != nil {
		slices.SortFunc(names, func(a, b string) int { return d.Comparator(a, b) })
	}

	return names, nil
}

// Child returns the filesystem path of a named child.
func (d DirResource) Child(name string) string {
	return filepath.Join(d.Path, name)
}

// ErrNotOpenable is returned by Open() on a resource that has no stream
// (currently only directories).
var ErrNotOpenable = fmt.Errorf("resource has no stream")

// SanitizeName replaces host-specific escape characters in a filesystem
// child name. The exact codepoint mapping is a configuration value, not
// a constant.
func SanitizeName(name string, escape map[rune]rune) string {
	if len(escape) == 0 {
		return name
	}

	return strings.Map(func(r rune) rune {
		if repl, ok := escape[r]; ok {
			return repl
		}

		return r
	}, name)
}

var (
	collatorOnce sync.Once
	collator     *collate.Collator
)

// DefaultComparator returns the default locale-aware collation
// comparator, built on golang.org/x/text/collate.
func DefaultComparator() Comparator {
	collatorOnce.Do(func() {
		collator = collate.New(language.Und)
	})

	return func(a, b string) int {
		return collator.CompareString(a, b)
	}
}
