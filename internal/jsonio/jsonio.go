// Package jsonio reads and writes the pipeline's intermediate JSON and
// newline-delimited JSON files. Writers are atomic: output goes to a temp
// file in the destination directory and is renamed into place on Commit,
// so a failed stage never leaves a partial file behind.
package jsonio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const maxLineBytes = 64 * 1024 * 1024

// ReadJSON decodes the JSON document at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// WriteJSON atomically writes v as indented JSON.
func WriteJSON(path string, v any) error {
	f, err := StageJSON(path, v)
	if err != nil {
		return err
	}
	return f.Commit()
}

// StageJSON writes v as indented JSON to a temp file for path and leaves
// it uncommitted, so several outputs can be moved into place together.
func StageJSON(path string, v any) (*AtomicFile, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	f, err := Create(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Abort()
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return f, nil
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) error {
	f, err := Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Abort()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Commit()
}

// ReadLines calls fn for every non-blank line of the file at path.
// Line numbers passed to fn are 1-based.
func ReadLines(path string, fn func(lineNo int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ScanLines(f, fn)
}

// ScanLines is ReadLines over an arbitrary reader.
func ScanLines(r io.Reader, fn func(lineNo int, line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// AtomicFile is a pending replacement of a destination file.
type AtomicFile struct {
	*os.File
	dest string
	done bool
}

// Create opens a temp file next to path, creating the directory if needed.
func Create(path string) (*AtomicFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &AtomicFile{File: tmp, dest: path}, nil
}

// Commit closes the temp file and renames it over the destination.
func (f *AtomicFile) Commit() error {
	if f.done {
		return nil
	}
	f.done = true
	if err := f.File.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("close %s: %w", f.dest, err)
	}
	if err := os.Rename(f.Name(), f.dest); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("rename into %s: %w", f.dest, err)
	}
	return nil
}

// Abort discards the temp file. Safe to call after Commit.
func (f *AtomicFile) Abort() {
	if f.done {
		return
	}
	f.done = true
	f.File.Close()
	os.Remove(f.Name())
}

// LineWriter writes one JSON value per line to an AtomicFile.
type LineWriter struct {
	f   *AtomicFile
	buf *bufio.Writer
	enc *json.Encoder
	n   int
}

// NewLineWriter starts an atomic NDJSON file at path.
func NewLineWriter(path string) (*LineWriter, error) {
	f, err := Create(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &LineWriter{f: f, buf: buf, enc: enc}, nil
}

// Write encodes v as a single line.
func (w *LineWriter) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("encode line %d: %w", w.n+1, err)
	}
	w.n++
	return nil
}

// Count is the number of lines written so far.
func (w *LineWriter) Count() int { return w.n }

// Commit flushes and moves the file into place.
func (w *LineWriter) Commit() error {
	if err := w.buf.Flush(); err != nil {
		w.f.Abort()
		return fmt.Errorf("flush %s: %w", w.f.dest, err)
	}
	return w.f.Commit()
}

// Abort discards everything written.
func (w *LineWriter) Abort() {
	w.f.Abort()
}
