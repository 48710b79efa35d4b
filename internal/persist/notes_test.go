package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, WriteText(path, "hello"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, WriteText(path, "line one\nline two\n"))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(data))
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	require.NoError(t, WriteJSON(path, []byte(` {"shot":42,"tags":["a","b"]} `)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"shot\": 42,\n  \"tags\": [\n    \"a\",\n    \"b\"\n  ]\n}\n", string(data))
}

func TestWriteJSONRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	err := WriteJSON(path, []byte(`{"shot":`))
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteTextMissingDir(t *testing.T) {
	err := WriteText(filepath.Join(t.TempDir(), "nope", "note.txt"), "x")
	assert.Error(t, err)
}
