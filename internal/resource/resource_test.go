package resource_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/deepwalk/deepwalk/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirResource_ListChildrenSanitizesAndSorts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))

	d := resource.DirResource{Path: dir, Comparator: resource.DefaultComparator()}
	names, err := d.ListChildren(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)
}

func TestDirResource_Open_NotOpenable(t *testing.T) {
	d := resource.DirResource{Path: t.TempDir()}
	_, err := d.Open(t.Context())
	require.Error(t, err)
}

func TestSanitizeName(t *testing.T) {
	escape := map[rune]rune{0xF03A: ':'}
	assert.Equal(t, "a:b", resource.SanitizeName("ab", escape))
	assert.Equal(t, "plain", resource.SanitizeName("plain", escape))
	assert.Equal(t, "plain", resource.SanitizeName("plain", nil))
}

func TestFileResource_OpenAndStat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	f := resource.FileResource{Path: path}
	info, err := f.Stat(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)

	rc, err := f.Open(t.Context())
	require.NoError(t, err)
	defer rc.Close()
}
