package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSafeRelativePath(t *testing.T) {
	cases := map[string]bool{
		"assets/foo.bin":      true,
		"/etc/passwd":         false,
		"../escape":           false,
		"a/../../b":           false,
		"":                    false,
		"C:/windows/win.ini":  false,
		"ok/nested/path.file": true,
	}
	for in, want := range cases {
		assert.Equalf(t, want, IsSafeRelativePath(in), "input %q", in)
	}
}

func TestHasOverlongComponentIsolatedFromTraversal(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	overlong := "assets/" + string(long) + ".bin"

	assert.True(t, HasOverlongComponent(overlong))
	assert.False(t, HasUnsafeTraversal(overlong), "an overlong component is not a traversal violation")
	assert.False(t, IsSafeRelativePath(overlong), "IsSafeRelativePath still rejects it for callers with no fallback")

	assert.True(t, HasUnsafeTraversal("../escape"))
	assert.False(t, HasOverlongComponent("../escape"))
}

func TestExistsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "Thing.bin"), []byte("x"), 0o644))

	actual, ok := ExistsCaseInsensitive(dir, "assets/thing.bin")
	require.True(t, ok)
	assert.Equal(t, "assets/Thing.bin", actual)

	_, ok = ExistsCaseInsensitive(dir, "assets/missing.bin")
	assert.False(t, ok)
}

func TestPartitionRoughly(t *testing.T) {
	parts := PartitionRoughly(10, 3)
	total := 0
	for _, p := range parts {
		total += p[1] - p[0]
	}
	assert.Equal(t, 10, total)
	assert.Len(t, parts, 3)

	assert.Nil(t, PartitionRoughly(0, 4))
	assert.Len(t, PartitionRoughly(2, 8), 2)
}

func TestSweepEmptyDirs(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, SweepEmptyDirs(dir))

	_, err := os.Stat(filepath.Join(dir, "a"))
	assert.True(t, os.IsNotExist(err))
}

func TestNormalizeAssetPath(t *testing.T) {
	assert.Equal(t, "assets/foo/bar.bin", NormalizeAssetPath(`Assets\Foo\Bar.bin`))
}
