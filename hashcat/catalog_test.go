package hashcat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFromDirectoryHexFallback(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.txt", "0x1a2b3c4d foo/bar.bin\n")

	cat, err := FromDirectory(dir)
	require.NoError(t, err)

	assert.Equal(t, "foo/bar.bin", cat.Resolve(0x1a2b3c4d))
	assert.Equal(t, "9999999999999999", cat.Resolve(0x9999999999999999))
}

func TestFromDirectoryMissing(t *testing.T) {
	_, err := FromDirectory(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ErrMissingDir)
}

func TestFromDirectoryCommentsAndBlankLines(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.txt", "# a comment\n\n42 data/foo.bin\n")

	cat, err := FromDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Len())
	assert.Equal(t, "data/foo.bin", cat.Resolve(42))
}

func TestFromDirectoryDecimalAndHexForms(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.txt", "deadbeef assets/hexform.bin\n123456 data/decform.bin\n")

	cat, err := FromDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, "assets/hexform.bin", cat.Resolve(0xdeadbeef))
	assert.Equal(t, "data/decform.bin", cat.Resolve(123456))
}

func TestFromDirectoryPerFileLastWriteWins(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.txt", "1 first.bin\n1 second.bin\n")

	cat, err := FromDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, "second.bin", cat.Resolve(1))
}

func TestFromDirectoryAcrossFilesFirstOccurrenceWins(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a_first.txt", "1 from_a.bin\n")
	writeManifest(t, dir, "b_second.txt", "1 from_b.bin\n")

	cat, err := FromDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, "from_a.bin", cat.Resolve(1))
}

func TestFromDirectoryParseErrorIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.txt", "not-a-hash some/path.bin\n")

	_, err := FromDirectory(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.txt")
}

func TestParseHash(t *testing.T) {
	cases := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"0x1A", 0x1A, false},
		{"1a", 0x1a, false}, // hex, has alpha
		{"123", 123, false}, // purely decimal wins
		{"zzz", 0, true},
	}
	for _, c := range cases {
		got, err := parseHash(c.in)
		if c.wantErr {
			assert.Error(t, err, c.in)
			continue
		}
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}
