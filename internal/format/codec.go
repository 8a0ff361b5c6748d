package format

import (
	"archive/tar"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	kzip "github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Entry is one record yielded by an [ArchiveReader]: either a directory
// marker (no contents) or a data entry whose Open() yields a stream.
type Entry struct {
	Name     string
	IsDir    bool
	Size     int64 // -1 if unknown until consumed
	Modified time.Time
	CRC32    uint32
	HasCRC   bool
	Open     func() (io.ReadCloser, error)
}

// ArchiveReader iterates the entries of one opened archive in stream
// order: entries are visited in the order the underlying format stores
// them. It is the trait concrete zip/tar/etc. codecs are abstracted
// behind.
type ArchiveReader interface {
	Next() (Entry, error) // io.EOF when exhausted
	Close() error
}

// CompressorReader exposes the single decompressed payload of a
// compressed stream.
type CompressorReader interface {
	io.ReadCloser
}

// OpenArchive dispatches to the concrete [ArchiveReader] for format:
// zip reads random-access from r (size bytes long), tar reads
// sequentially from stream. Both must start at the container's first
// byte, including any bytes consumed during Classify.
func OpenArchive(f ArchiveFormat, r io.ReaderAt, size int64, stream io.Reader) (ArchiveReader, error) {
	switch f {
	case Zip:
		return newZipArchiveReader(r, size)
	case Tar:
		return newTarArchiveReader(stream), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

// OpenCompressed dispatches to the concrete [CompressorReader] for
// format, decompressing r.
func OpenCompressed(f CompressedFormat, r io.Reader) (CompressorReader, error) {
	switch f {
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}

		return gz, nil
	case Bzip2:
		return nopCloseReader{bzip2.NewReader(r)}, nil
	case Xz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}

		return nopCloseReader{xr}, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}

		return zstdCloser{zr}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

// ErrUnsupportedFormat is returned by OpenArchive/OpenCompressed for an
// [ArchiveFormat]/[CompressedFormat] with no registered codec.
var ErrUnsupportedFormat = errors.New("unsupported format")

type nopCloseReader struct{ io.Reader }

func (nopCloseReader) Close() error { return nil }

type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Read(p []byte) (int, error) { return z.d.Read(p) }
func (z zstdCloser) Close() error               { z.d.Close(); return nil }

// zipArchiveReader adapts *klauspost/compress/zip.Reader to [ArchiveReader].
type zipArchiveReader struct {
	zr *kzip.Reader
	i  int
}

func newZipArchiveReader(r io.ReaderAt, size int64) (*zipArchiveReader, error) {
	zr, err := kzip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("zip: %w", err)
	}

	return &zipArchiveReader{zr: zr}, nil
}

func (z *zipArchiveReader) Next() (Entry, error) {
	if z.i >= len(z.zr.File) {
		return Entry{}, io.EOF
	}

	f := z.zr.File[z.i]
	z.i++

	fi := f.FileInfo()
	size := int64(f.UncompressedSize64) //nolint:gosec

	return Entry{
		Name:     f.Name,
		IsDir:    fi.IsDir(),
		Size:     size,
		Modified: f.Modified,
		CRC32:    f.CRC32,
		HasCRC:   true,
		Open: func() (io.ReadCloser, error) {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("zip entry open: %w", err)
			}

			return rc, nil
		},
	}, nil
}

func (z *zipArchiveReader) Close() error { return nil }

// tarArchiveReader adapts archive/tar to [ArchiveReader]. Tar entries
// are streamed strictly in order; an entry's reader is only valid until
// the next Next() call, so any archive-in-archive recursion must consume
// it before advancing.
type tarArchiveReader struct {
	tr *tar.Reader
}

func newTarArchiveReader(r io.Reader) *tarArchiveReader {
	return &tarArchiveReader{tr: tar.NewReader(r)}
}

func (t *tarArchiveReader) Next() (Entry, error) {
	hdr, err := t.tr.Next()
	if err != nil {
		return Entry{}, err //nolint:wrapcheck
	}

	isDir := hdr.Typeflag == tar.TypeDir
	tr := t.tr

	return Entry{
		Name:     hdr.Name,
		IsDir:    isDir,
		Size:     hdr.Size,
		Modified: hdr.ModTime,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(tr), nil
		},
	}, nil
}

func (t *tarArchiveReader) Close() error { return nil }
