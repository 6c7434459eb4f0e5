package jsonio

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	in := map[string]any{"title": "Book", "pages": []int{1, 2}}
	require.NoError(t, WriteJSON(path, in))

	var out struct {
		Title string `json:"title"`
		Pages []int  `json:"pages"`
	}
	require.NoError(t, ReadJSON(path, &out))
	assert.Equal(t, "Book", out.Title)
	assert.Equal(t, []int{1, 2}, out.Pages)
}

func TestReadJSONMissingFile(t *testing.T) {
	var v any
	err := ReadJSON(filepath.Join(t.TempDir(), "nope.json"), &v)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLineWriterAbortLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.jsonl")

	w, err := NewLineWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(map[string]int{"a": 1}))
	w.Abort()

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file should be removed")
}

func TestLineWriterAbortKeepsPreviousFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	w, err := NewLineWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write("new"))
	w.Abort()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(data))
}

func TestLineWriterCommitAndReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	w, err := NewLineWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(map[string]string{"text": "a<b"}))
	require.NoError(t, w.Write(map[string]string{"text": "c"}))
	assert.Equal(t, 2, w.Count())
	require.NoError(t, w.Commit())

	var lines []string
	err = ReadLines(path, func(_ int, line []byte) error {
		lines = append(lines, string(line))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"text":"a<b"}`, `{"text":"c"}`}, lines)
}

func TestScanLinesSkipsBlankLines(t *testing.T) {
	var got []int
	err := ScanLines(strings.NewReader("{}\n\n   \n{}\n"), func(n int, _ []byte) error {
		got = append(got, n)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, got)
}

func TestStageJSONInvisibleUntilCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outline.json")
	require.NoError(t, os.WriteFile(path, []byte("[]\n"), 0o644))

	f, err := StageJSON(path, []int{1, 2})
	require.NoError(t, err)
	old, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(old), "previous file untouched before commit")

	require.NoError(t, f.Commit())
	var got []int
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, []int{1, 2}, got)
}

func TestStageJSONAbort(t *testing.T) {
	dir := t.TempDir()
	f, err := StageJSON(filepath.Join(dir, "outline.json"), map[string]int{"a": 1})
	require.NoError(t, err)
	f.Abort()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
