// Package logreader streams newline-delimited JSON records from session logs.
package logreader

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

const (
	initialBufferSize = 512 * 1024
	maxLineSize       = 8 * 1024 * 1024
)

// Record is one non-empty line that parsed as JSON.
type Record struct {
	Line int
	Raw  json.RawMessage
}

type Stats struct {
	Lines         int
	Records       int
	ParseFailures int
}

// Scan streams path line by line, calling fn for every valid JSON line.
// Malformed lines are counted and skipped. An error is returned only when the
// file cannot be opened or read; records delivered before a read error stay
// delivered.
func Scan(path string, fn func(Record)) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	stats, err := ScanReader(f, fn)
	if err != nil {
		return stats, fmt.Errorf("read %s: %w", path, err)
	}
	return stats, nil
}

// ScanReader is Scan over an open stream. A line longer than maxLineSize is
// drained, counted as a parse failure and skipped.
func ScanReader(r io.Reader, fn func(Record)) (Stats, error) {
	var stats Stats
	br := bufio.NewReaderSize(r, initialBufferSize)
	var buf []byte

	for {
		line, tooLong, err := readLine(br, buf)
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		buf = line
		stats.Lines++
		if tooLong {
			stats.ParseFailures++
			continue
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			stats.ParseFailures++
			continue
		}
		stats.Records++
		raw := make(json.RawMessage, len(line))
		copy(raw, line)
		fn(Record{Line: stats.Lines, Raw: raw})
	}
}

// readLine reads the next line into buf. Once a line outgrows maxLineSize the
// rest of it is discarded and tooLong is set. io.EOF is returned only when no
// bytes were left.
func readLine(br *bufio.Reader, buf []byte) ([]byte, bool, error) {
	buf = buf[:0]
	read := 0
	tooLong := false
	for {
		chunk, err := br.ReadSlice('\n')
		read += len(chunk)
		if !tooLong {
			if len(buf)+len(chunk) > maxLineSize {
				tooLong = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF && read > 0:
			return buf, tooLong, nil
		default:
			return buf, tooLong, err
		}
	}
}
