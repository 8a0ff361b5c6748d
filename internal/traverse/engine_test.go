package traverse_test

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deepwalk/deepwalk/internal/node"
	"github.com/deepwalk/deepwalk/internal/resource"
	"github.com/deepwalk/deepwalk/internal/traverse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// visit is one recorded call to a [traverse.Visitor].
type visit struct {
	Path  string
	Type  string
	Depth int
}

// recordingVisitor records every visited node, optionally setting $PRUNE
// when pruneFn reports true.
type recordingVisitor struct {
	visits  []visit
	pruneFn func(n *node.Node) bool
}

func (v *recordingVisitor) Visit(_ context.Context, n *node.Node) error {
	v.visits = append(v.visits, visit{Path: n.Path, Type: string(n.Type), Depth: n.Depth})

	if v.pruneFn != nil && v.pruneFn(n) {
		n.SetPrune()
	}

	return nil
}

func (v *recordingVisitor) paths() []string {
	out := make([]string, len(v.visits))
	for i, p := range v.visits {
		out[i] = p.Path
	}

	return out
}

func (v *recordingVisitor) typeOf(path string) string {
	for _, p := range v.visits {
		if p.Path == path {
			return p.Type
		}
	}

	return ""
}

func writeZip(t *testing.T, dest string, files map[string]string) {
	t.Helper()

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	require.NoError(t, os.WriteFile(dest, buf.Bytes(), 0o644)) //nolint:mnd
}

func writeTarGz(t *testing.T, dest string, files map[string]string) {
	t.Helper()

	var raw bytes.Buffer

	tw := tar.NewWriter(&raw)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Size: int64(len(content)), Mode: 0o644} //nolint:mnd
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())

	var gz bytes.Buffer

	gw := gzip.NewWriter(&gz)
	_, err := gw.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	require.NoError(t, os.WriteFile(dest, gz.Bytes(), 0o644)) //nolint:mnd
}

// TestEngine_Scan_FileAndArchiveChild covers the first end-to-end scenario:
// a directory holding a plain file and a zip archive, walked pre-order.
func TestEngine_Scan_FileAndArchiveChild(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "a")
	require.NoError(t, os.Mkdir(root, 0o755)) //nolint:mnd
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("hi\n"), 0o644)) //nolint:mnd
	writeZip(t, filepath.Join(root, "c.zip"), map[string]string{"inside.txt": "foo\n"})

	e := traverse.NewEngine()
	v := &recordingVisitor{}

	err := e.Scan(context.Background(), "a", resource.DirResource{Path: root}, v)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "a/b.txt", "a/c.zip", "a/c.zip!inside.txt"}, v.paths())
}

// TestEngine_Scan_MaxDepthStopsArchiveRecursion covers the second
// end-to-end scenario: max_depth=1 reports the archive itself but never
// descends into it.
func TestEngine_Scan_MaxDepthStopsArchiveRecursion(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "a")
	require.NoError(t, os.Mkdir(root, 0o755)) //nolint:mnd
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("hi\n"), 0o644)) //nolint:mnd
	writeZip(t, filepath.Join(root, "c.zip"), map[string]string{"inside.txt": "foo\n"})

	e := traverse.NewEngine()
	e.MaxDepth = 1
	v := &recordingVisitor{}

	err := e.Scan(context.Background(), "a", resource.DirResource{Path: root}, v)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "a/b.txt", "a/c.zip"}, v.paths())
}

// TestEngine_Scan_CompressedArchiveTypePromotion covers the third
// end-to-end scenario: a gzipped tar promotes its nested types through
// compressed-file -> archive-compressed-file -> normal-archive-compressed-file.
func TestEngine_Scan_CompressedArchiveTypePromotion(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "t.tar.gz")
	writeTarGz(t, archivePath, map[string]string{"x": "hello"})

	e := traverse.NewEngine()
	v := &recordingVisitor{}

	err := e.Scan(context.Background(), "t.tar.gz", resource.FileResource{Path: archivePath}, v)
	require.NoError(t, err)

	assert.Equal(t, []string{"t.tar.gz", "t.tar.gz%", "t.tar.gz%!x"}, v.paths())
	assert.Equal(t, "compressed-file", v.typeOf("t.tar.gz"))
	assert.Equal(t, "archive-compressed-file", v.typeOf("t.tar.gz%"))
	assert.Equal(t, "normal-archive-compressed-file", v.typeOf("t.tar.gz%!x"))
}

// TestEngine_Scan_MinDepthSuppressesReportingNotRecursion checks that
// MinDepth only gates which nodes reach the visitor, never which ones get
// walked: nodes below the floor are still descended through.
func TestEngine_Scan_MinDepthSuppressesReportingNotRecursion(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755)) //nolint:mnd
	require.NoError(t, os.WriteFile(filepath.Join(nested, "d.txt"), []byte("x"), 0o644)) //nolint:mnd

	e := traverse.NewEngine()
	e.MinDepth = 2
	v := &recordingVisitor{}

	err := e.Scan(context.Background(), "a", resource.DirResource{Path: filepath.Join(dir, "a")}, v)
	require.NoError(t, err)

	assert.Equal(t, []string{"a/b/c", "a/b/c/d.txt"}, v.paths())
}

// TestEngine_Scan_MaxDepthBoundaryExact checks that recursion stops exactly
// at depth == MaxDepth, not one level earlier or later.
func TestEngine_Scan_MaxDepthBoundaryExact(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755)) //nolint:mnd
	require.NoError(t, os.WriteFile(filepath.Join(nested, "c.txt"), []byte("x"), 0o644)) //nolint:mnd

	e := traverse.NewEngine()
	e.MaxDepth = 1
	v := &recordingVisitor{}

	err := e.Scan(context.Background(), "a", resource.DirResource{Path: filepath.Join(dir, "a")}, v)
	require.NoError(t, err)

	// depth 0 (a) and depth 1 (a/b) are reported; a/b's own children sit at
	// depth 2, past the boundary, and are never walked.
	assert.Equal(t, []string{"a", "a/b"}, v.paths())
}

// TestEngine_Scan_PruneSkipsDirectoryChildren exercises $PRUNE: a visitor
// that prunes a subdirectory never sees that subdirectory's children, but
// siblings are unaffected.
func TestEngine_Scan_PruneSkipsDirectoryChildren(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "r")
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755)) //nolint:mnd
	require.NoError(t, os.WriteFile(filepath.Join(sub, "inner.txt"), []byte("x"), 0o644)) //nolint:mnd
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("y"), 0o644)) //nolint:mnd

	e := traverse.NewEngine()
	v := &recordingVisitor{pruneFn: func(n *node.Node) bool {
		return n.Name == "sub"
	}}

	err := e.Scan(context.Background(), "r", resource.DirResource{Path: root}, v)
	require.NoError(t, err)

	assert.Equal(t, []string{"r", "r/keep.txt", "r/sub"}, v.paths())
}

// TestEngine_Scan_PruneOnArchiveSkipsEntries mirrors the find(1)
// "(-type 'archive-*' -and -prune)" idiom directly at the engine level: an
// archive whose node is pruned is never descended into, while other
// siblings in the same directory still are.
func TestEngine_Scan_PruneOnArchiveSkipsEntries(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "r")
	require.NoError(t, os.Mkdir(root, 0o755)) //nolint:mnd
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.class"), bytes.Repeat([]byte{0}, 500), 0o644))  //nolint:mnd
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.class"), bytes.Repeat([]byte{0}, 2000), 0o644)) //nolint:mnd
	writeZip(t, filepath.Join(root, "c.zip"), map[string]string{"d.class": "x"})

	e := traverse.NewEngine()

	var matched []string

	v := &recordingVisitor{pruneFn: func(n *node.Node) bool {
		if strings.HasPrefix(string(n.Type), "archive-") {
			matched = append(matched, n.Name)

			return true
		}

		if strings.HasSuffix(n.Name, ".class") {
			sz, _, err := n.Props.Get("size")
			if err == nil && sz.Long > 1024 { //nolint:mnd
				matched = append(matched, n.Name)
			}
		}

		return false
	}}

	err := e.Scan(context.Background(), "r", resource.DirResource{Path: root}, v)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"b.class", "c.zip"}, matched)
	assert.NotContains(t, v.paths(), "r/c.zip!d.class")
}
