package fsio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
)

// reverseChunkSize is how much of the file the reverse scanner pulls in per
// backward seek.
const reverseChunkSize = 64 * 1024

// maxLineSize bounds a single JSONL line for the forward scanner.
const maxLineSize = 16 * 1024 * 1024

// ScanRecords reads path forward line by line, parsing each line as a JSON
// object and calling fn with it. Malformed lines are skipped and counted in
// mal. fn returns false to stop early. A missing file is not an error.
func ScanRecords(path string, mal *MalformedLog, fn func(rec map[string]any) bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal(line, &rec); err != nil {
			mal.Record(path, lineNo, err.Error())
			continue
		}
		if !fn(rec) {
			return nil
		}
	}
	return scanner.Err()
}

// ReadRecords returns every well-formed record in path, oldest first.
func ReadRecords(path string, mal *MalformedLog) ([]map[string]any, error) {
	var recs []map[string]any
	err := ScanRecords(path, mal, func(rec map[string]any) bool {
		recs = append(recs, rec)
		return true
	})
	return recs, err
}

// ScanRecordsAt is ScanRecords with the byte offset each line starts at.
// Offsets are computed from raw bytes consumed, so they stay valid as
// AppendLine/ReadLineAt coordinates even when malformed lines intervene.
func ScanRecordsAt(path string, mal *MalformedLog, fn func(rec map[string]any, offset int64) bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	var offset int64
	lineNo := 0
	for {
		raw, readErr := r.ReadBytes('\n')
		if len(raw) > 0 {
			lineNo++
			start := offset
			offset += int64(len(raw))
			line := bytes.TrimSpace(raw)
			if len(line) > 0 {
				var rec map[string]any
				if err := json.Unmarshal(line, &rec); err != nil {
					mal.Record(path, lineNo, err.Error())
				} else if !fn(rec, start) {
					return nil
				}
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// ReverseScanRecords reads path backward in fixed-size chunks and calls fn
// with each record newest-first. Only fully newline-bounded lines are
// yielded; malformed lines are skipped and counted in mal. fn returns false
// to stop early. A missing file is not an error.
func ReverseScanRecords(path string, mal *MalformedLog, fn func(rec map[string]any) bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	pos := fi.Size()
	if pos == 0 {
		return nil
	}

	// Line numbers for malformed accounting are unknown while walking
	// backward; -1 marks them as such.
	emit := func(line []byte) bool {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			return true
		}
		var rec map[string]any
		if err := json.Unmarshal(line, &rec); err != nil {
			mal.Record(path, -1, err.Error())
			return true
		}
		return fn(rec)
	}

	var carry []byte // leading partial line of the last chunk read
	buf := make([]byte, reverseChunkSize)
	for pos > 0 {
		n := int64(len(buf))
		if pos < n {
			n = pos
		}
		pos -= n
		if _, err := f.Seek(pos, io.SeekStart); err != nil {
			return err
		}
		if _, err := io.ReadFull(f, buf[:n]); err != nil {
			return err
		}

		chunk := append(append([]byte{}, buf[:n]...), carry...)
		lines := bytes.Split(chunk, []byte{'\n'})
		// lines[0] may be cut off at the chunk boundary; it becomes the
		// carry for the next (earlier) chunk.
		carry = lines[0]
		for i := len(lines) - 1; i >= 1; i-- {
			if !emit(lines[i]) {
				return nil
			}
		}
	}
	if len(carry) > 0 {
		emit(carry)
	}
	return nil
}
