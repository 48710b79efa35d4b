package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	s := Shares{HDDRoot: "/mnt/hdd", SSDRoot: "/mnt/ssd"}

	tests := []struct {
		in   string
		want string
	}{
		{"H:/x", "/mnt/hdd/x"},
		{"h:/x/y", "/mnt/hdd/x/y"},
		{"S:/runs/42", "/mnt/ssd/runs/42"},
		{"H:", "/mnt/hdd"},
		{"H:/a/../b", "/mnt/hdd/b"},
		{"H:/../../etc", "/mnt/hdd/etc"},
		{"H:\\win\\style", "/mnt/hdd/win/style"},
		{"/tmp/./data", "/tmp/data"},
		{"relative/dir/", "relative/dir"},
		{"C:/other", "C:/other"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := s.Resolve(tt.in)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
			assert.Equal(t, got, s.Resolve(got), "Resolve must be idempotent")
		})
	}
}

func TestResolveEquivalence(t *testing.T) {
	s := Shares{HDDRoot: "/mnt/hdd", SSDRoot: "/mnt/ssd"}
	assert.Equal(t, s.Resolve("H:/b"), s.Resolve("H:/a/../b"))
}

func TestEnsureDir(t *testing.T) {
	root := t.TempDir()
	s := Shares{HDDRoot: root, DirMode: 0o750}

	dir, err := s.EnsureDir("H:/runs/2024")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "runs", "2024"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Existing directories are fine.
	_, err = s.EnsureDir("H:/runs/2024")
	assert.NoError(t, err)
}

func TestJoinRejectsPathNames(t *testing.T) {
	s := Shares{HDDRoot: t.TempDir()}

	for _, name := range []string{"", ".", "..", "a/b.csv", "../escape.txt"} {
		_, err := s.Join("H:/x", name)
		assert.ErrorIs(t, err, ErrInvalidFilename, "name %q", name)
	}

	path, err := s.Join("H:/x", "note.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.HDDRoot, "x", "note.txt"), path)
}
