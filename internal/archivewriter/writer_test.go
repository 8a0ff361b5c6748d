package archivewriter_test

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/deepwalk/deepwalk/internal/archivewriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveName(t *testing.T) {
	assert.Equal(t, "lib/foo.jar/x/y.class", archivewriter.DeriveName("lib/foo.jar!x/y.class"))
	assert.Equal(t, "dist/app.tar.gz/x", archivewriter.DeriveName("dist/app.tar.gz%!x"))
}

func TestWriter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer

	w := archivewriter.New(&buf, nil)
	require.NoError(t, w.WriteEntry(archivewriter.Entry{
		Path:     "a/b.txt",
		Modified: time.Now(),
		Contents: bytes.NewBufferString("hi\n"),
	}))
	require.NoError(t, w.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "a/b.txt", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)

	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(data))
}

func TestWriter_RenameGlob(t *testing.T) {
	var buf bytes.Buffer

	w := archivewriter.New(&buf, []archivewriter.Rename{{Glob: "**/*.class", To: "flattened.class"}})
	require.NoError(t, w.WriteEntry(archivewriter.Entry{
		Path:     "a/b/c.class",
		Contents: bytes.NewBufferString("x"),
	}))
	require.NoError(t, w.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "flattened.class", zr.File[0].Name)
}

func TestWriter_ClosedExactlyOnce(t *testing.T) {
	var buf bytes.Buffer

	w := archivewriter.New(&buf, nil)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
