// Package fsio implements the file primitives the team store is built on:
// atomic JSON writes, JSONL appends that report the offset they wrote at,
// single-line reads by byte offset, and forward/reverse JSONL scans that
// skip damaged lines while counting them.
package fsio

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteJSONAtomic marshals v as pretty-printed JSON (two-space indent, keys
// sorted, trailing newline) and writes it to path via a temp file and rename.
// The temp name carries the PID and a random token so overlapping writers
// never collide on it.
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d.%s", path, os.Getpid(), randomSuffix())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// WriteTextAtomic writes content to path via a temp file and rename, same
// discipline as WriteJSONAtomic.
func WriteTextAtomic(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d.%s", path, os.Getpid(), randomSuffix())
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// ReadJSON reads path into out. A missing file is reported via os.IsNotExist
// on the returned error.
func ReadJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// AppendLine appends v to path as one compact key-sorted JSON line and
// returns the byte offset the line begins at. The line plus its trailing
// newline go down in a single write call.
func AppendLine(path string, v any) (int64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshaling %s line: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	offset := fi.Size()
	if _, err := f.Write(data); err != nil {
		return 0, err
	}
	return offset, nil
}

// ReadLineAt reads the single JSON line beginning at offset. Callers verify
// the parsed record is the one they expected; a stale offset parses fine but
// yields a different id, and the caller falls back to a linear scan.
func ReadLineAt(path string, offset int64) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	r := bufio.NewReader(f)
	line, err := r.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(line) == 0 {
		return nil, fmt.Errorf("%s: no line at offset %d", filepath.Base(path), offset)
	}
	var rec map[string]any
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("%s offset %d: %w", filepath.Base(path), offset, err)
	}
	return rec, nil
}

func randomSuffix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "0000"
	}
	return hex.EncodeToString(b)
}
