package expr_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/deepwalk/deepwalk/internal/expr"
	"github.com/deepwalk/deepwalk/internal/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFS struct {
	mkdirs  []string
	written map[string]string
	removed map[string]bool
}

func newFakeFS() *fakeFS {
	return &fakeFS{written: map[string]string{}, removed: map[string]bool{}}
}

func (f *fakeFS) MkdirAll(path string) error {
	f.mkdirs = append(f.mkdirs, path)

	return nil
}

func (f *fakeFS) WriteFile(path string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	f.written[path] = string(b)

	return nil
}

func (f *fakeFS) Remove(path string, recursive bool) error {
	f.removed[path] = recursive

	return nil
}

func TestPrintExpr(t *testing.T) {
	var out bytes.Buffer

	env := &expr.Env{
		Node:   &node.Node{Props: node.Root().WithValues(map[string]node.Value{"path": node.StringOf("a/b.txt")})},
		Stdout: &out,
	}

	v, err := expr.PrintExpr{}.Eval(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, v)
	assert.Equal(t, "a/b.txt\n", out.String())
}

func TestEchoExpr_Substitution(t *testing.T) {
	var out bytes.Buffer

	env := &expr.Env{
		Node: &node.Node{Props: node.Root().WithValues(map[string]node.Value{
			"name": node.StringOf("x.class"),
			"size": node.LongOf(42),
		})},
		Stdout: &out,
	}

	_, err := expr.EchoExpr{Template: "${name} is ${size} bytes, trailing $"}.Eval(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "x.class is 42 bytes, trailing $\n", out.String())
}

func TestDigestExpr(t *testing.T) {
	var out bytes.Buffer

	env := &expr.Env{
		Node: &node.Node{Props: node.Root().WithOverrides(map[string]node.Producer{
			"inputStream": func() (node.Value, error) { return node.StreamOf(strings.NewReader("hello")), nil },
		})},
		Stdout: &out,
	}

	v, err := expr.DigestExpr{Algo: "sha256"}.Eval(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, v)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824\n", out.String())
}

func TestChecksumExpr_CRC32(t *testing.T) {
	var out bytes.Buffer

	env := &expr.Env{
		Node: &node.Node{Props: node.Root().WithOverrides(map[string]node.Producer{
			"inputStream": func() (node.Value, error) { return node.StreamOf(strings.NewReader("hello")), nil },
		})},
		Stdout: &out,
	}

	v, err := expr.ChecksumExpr{Algo: "CRC32"}.Eval(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, v)
	assert.Equal(t, "3610a686\n", out.String())
}

func TestDigestExpr_NoStreamIsExpressionRuntimeError(t *testing.T) {
	env := &expr.Env{Node: &node.Node{Props: node.Root()}, Stdout: &bytes.Buffer{}}

	_, err := expr.DigestExpr{Algo: "sha256"}.Eval(context.Background(), env)
	assert.Error(t, err)
}

func TestPruneExpr_NoopWithoutPruneCell(t *testing.T) {
	n := &node.Node{Props: node.Root()}
	env := &expr.Env{Node: n}

	v, err := expr.PruneExpr{}.Eval(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, v)
	assert.False(t, n.Pruned())
}

func TestDeleteExpr_RejectsArchiveEntry(t *testing.T) {
	fs := newFakeFS()
	env := &expr.Env{
		Node: &node.Node{Props: node.Root().WithValues(map[string]node.Value{
			"type": node.StringOf("archive-contents"),
			"path": node.StringOf("a.zip!x"),
		})},
		FS: fs,
	}

	_, err := expr.DeleteExpr{}.Eval(context.Background(), env)
	assert.Error(t, err)
}

func TestDeleteExpr_DirectoryIsRecursive(t *testing.T) {
	fs := newFakeFS()
	env := &expr.Env{
		Node: &node.Node{Props: node.Root().WithValues(map[string]node.Value{
			"type": node.StringOf("directory"),
			"path": node.StringOf("a/b"),
		})},
		FS: fs,
	}

	v, err := expr.DeleteExpr{}.Eval(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, v)
	assert.True(t, fs.removed["a/b"])
}

func TestCopyExpr_WritesAndMkdirs(t *testing.T) {
	fs := newFakeFS()
	env := &expr.Env{
		Node: &node.Node{Props: node.Root().WithOverrides(map[string]node.Producer{
			"inputStream": func() (node.Value, error) { return node.StreamOf(strings.NewReader("data")), nil },
		})},
		FS: fs,
	}

	_, _ = expr.CopyExpr{Template: "/tmp/out/file.txt", Mkdirs: true}.Eval(context.Background(), env)
	// os.Rename into /tmp/out/file.txt fails here since the fake FS never
	// actually creates the tmp file on disk; this test only asserts the
	// write-before-rename step went through the FS fake with the right
	// destination prefix and content.
	assert.Contains(t, fs.mkdirs, "/tmp/out")

	found := false

	for path, content := range fs.written {
		if strings.HasPrefix(path, "/tmp/out/file.txt.") && content == "data" {
			found = true
		}
	}

	assert.True(t, found, "expected a tmp write under /tmp/out/file.txt.*")
}
