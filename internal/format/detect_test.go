package format_test

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"testing"

	"github.com/deepwalk/deepwalk/internal/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Gzip(t *testing.T) {
	c, err := format.Classify("x.gz", format.NewPeekReader(bytes.NewReader([]byte{0x1f, 0x8b, 0x08, 0x00})))
	require.NoError(t, err)
	assert.Equal(t, format.ClassCompressed, c.Kind)
	assert.Equal(t, format.Gzip, c.Compressed)
}

func TestClassify_Zip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("a.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hi\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	c, err := format.Classify("a.zip", format.NewPeekReader(bytes.NewReader(buf.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, format.ClassArchive, c.Kind)
	assert.Equal(t, format.Zip, c.Archive)
}

func TestClassify_Tar(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "a.txt", Size: 3, Mode: 0o644}))
	_, err := tw.Write([]byte("hi\n"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	c, err := format.Classify("a.tar", format.NewPeekReader(bytes.NewReader(buf.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, format.ClassArchive, c.Kind)
	assert.Equal(t, format.Tar, c.Archive)
}

func TestClassify_AmbiguousResolvesNormal(t *testing.T) {
	c, err := format.Classify("notes.txt", format.NewPeekReader(bytes.NewReader([]byte("just some text\n"))))
	require.NoError(t, err)
	assert.Equal(t, format.ClassNormal, c.Kind)
}

func TestClassify_NonDestructive(t *testing.T) {
	payload := []byte{0x1f, 0x8b, 0x08, 0x00, 'r', 'e', 's', 't'}
	pr := format.NewPeekReader(bytes.NewReader(payload))

	_, err := format.Classify("x.gz", pr)
	require.NoError(t, err)

	readBack := make([]byte, len(payload))
	n, err := pr.Read(readBack)
	require.NoError(t, err)
	assert.Equal(t, payload, readBack[:n])
}

func TestLookInto_DefaultDescendsEverything(t *testing.T) {
	assert.True(t, format.LookInto("zip", "a/b.zip", nil))
}

func TestLookInto_GlobFilter(t *testing.T) {
	assert.True(t, format.LookInto("zip", "a/b.zip", []string{"**/*.zip"}))
	assert.False(t, format.LookInto("tar", "a/b.tar", []string{"**/*.zip"}))
}
