package format

import (
	"archive/tar"
	"bytes"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ArchiveFormat names a recognized container format.
type ArchiveFormat string

// CompressedFormat names a recognized single-payload transformation.
type CompressedFormat string

// Recognized archive formats.
const (
	Zip ArchiveFormat = "zip"
	Tar ArchiveFormat = "tar"
)

// Recognized compressed-stream formats.
const (
	Gzip  CompressedFormat = "gzip"
	Bzip2 CompressedFormat = "bzip2"
	Xz    CompressedFormat = "xz"
	Zstd  CompressedFormat = "zstd"
)

// ClassKind is the three-way outcome of Classify.
type ClassKind int

const (
	// ClassNormal is the default outcome: treat the node as textual/binary
	// leaf contents. Ambiguous prefixes resolve here,.
	ClassNormal ClassKind = iota
	ClassArchive
	ClassCompressed
)

// Classification is the result of Classify.
type Classification struct {
	Kind       ClassKind
	Archive    ArchiveFormat
	Compressed CompressedFormat
}

// compressedDetector recognizes one CompressedFormat from a bounded
// prefix and/or filename hint.
type compressedDetector struct {
	format CompressedFormat
	magic  []byte
	ext    string
}

// archiveDetector recognizes one ArchiveFormat the same way; tar has no
// single fixed magic prefix, so its Match is a small function instead.
type archiveDetector struct {
	format ArchiveFormat
	match  func(prefix []byte, hintName string) bool
}

var compressedDetectors = []compressedDetector{
	{format: Gzip, magic: []byte{0x1f, 0x8b}, ext: ".gz"},
	{format: Bzip2, magic: []byte("BZh"), ext: ".bz2"},
	{format: Xz, magic: []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, ext: ".xz"},
	{format: Zstd, magic: []byte{0x28, 0xb5, 0x2f, 0xfd}, ext: ".zst"},
}

var archiveDetectors = []archiveDetector{
	{
		format: Zip,
		match: func(prefix []byte, _ string) bool {
			return bytes.HasPrefix(prefix, []byte("PK\x03\x04")) ||
				bytes.HasPrefix(prefix, []byte("PK\x05\x06")) ||
				bytes.HasPrefix(prefix, []byte("PK\x07\x08"))
		},
	},
	{
		format: Tar,
		match:  matchTar,
	},
}

// matchTar trial-parses the prefix as a tar header. Old-format (v7) tar
// has no fixed magic, so a header-level trial parse is the only reliable
// signal — the same approach archiver-style libraries use for tar.
func matchTar(prefix []byte, _ string) bool {
	if len(prefix) < 512 { //nolint:mnd
		return false
	}

	tr := tar.NewReader(bytes.NewReader(prefix))
	_, err := tr.Next()

	return err == nil
}

// Classify inspects a bounded, non-destructively peeked prefix plus a
// filename hint (may be empty) and returns the [Classification]. Order:
// compressed formats are tried before archive formats, because several
// archives are themselves gzipped.
func Classify(hintName string, peek *PeekReader) (Classification, error) {
	prefix, err := peek.Peek()
	if err != nil {
		return Classification{}, err
	}

	for _, d := range compressedDetectors {
		if bytes.HasPrefix(prefix, d.magic) || (d.ext != "" && strings.HasSuffix(strings.ToLower(hintName), d.ext)) {
			return Classification{Kind: ClassCompressed, Compressed: d.format}, nil
		}
	}

	for _, d := range archiveDetectors {
		if d.match(prefix, hintName) {
			return Classification{Kind: ClassArchive, Archive: d.format}, nil
		}
	}

	return Classification{Kind: ClassNormal}, nil
}

// LookInto implements the "--look-into <glob>" predicate: consulted
// before the traversal engine recurses into a container, it is true by
// default (descend into every recognized format) unless the caller
// configured glob filters, in which case the format's synthetic path
// (formatName, e.g. "zip" or "gzip") or the container's own path must
// match one of them.
func LookInto(formatName, path string, globs []string) bool {
	if len(globs) == 0 {
		return true
	}

	for _, g := range globs {
		if ok, _ := doublestar.Match(g, formatName); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, path); ok {
			return true
		}
	}

	return false
}
