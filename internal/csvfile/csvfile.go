// Package csvfile turns dropped CSV files into rows for a sync run and
// writes failed-row reports back out.
//
// The input dialect is deliberately plain: comma separated, no quote
// character (a '"' is literal data), every field trimmed, and the first
// non-blank line discarded as a header.
package csvfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Delimiter separates fields on a line.
const Delimiter = ','

// maxLineSize bounds a single line; longer lines are a parse error.
const maxLineSize = 1 << 20

var (
	// ErrEmpty is returned when the file has no header line.
	ErrEmpty = errors.New("csv file is empty")

	utf8BOM = []byte{0xEF, 0xBB, 0xBF}
)

// Record is one data line of the file.
type Record struct {
	// Line is the 1-based line number in the source file.
	Line   int
	Fields []string
}

// File is a parsed CSV file.
type File struct {
	Header  []string
	Records []Record
}

// ParseError reports a malformed line.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid csv: line %d %s", e.Line, e.Reason)
}

// Parse reads the whole file. Blank lines are skipped. Every data line must
// have the same number of fields as the header.
func Parse(r io.Reader) (*File, error) {
	sc := bufio.NewScanner(NewBOMSkippingReader(r))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	f := &File{}
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		fields := SplitLine(sanitize(text))

		if f.Header == nil {
			f.Header = fields
			continue
		}
		if len(fields) != len(f.Header) {
			return nil, &ParseError{
				Line:   line,
				Reason: fmt.Sprintf("has %d fields, expected %d", len(fields), len(f.Header)),
			}
		}
		f.Records = append(f.Records, Record{Line: line, Fields: fields})
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &ParseError{Line: line + 1, Reason: "exceeds maximum line length"}
		}
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if f.Header == nil {
		return nil, ErrEmpty
	}
	return f, nil
}

// SplitLine splits on the delimiter and trims each field.
func SplitLine(line string) []string {
	parts := strings.Split(line, string(Delimiter))
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// sanitize replaces invalid UTF-8 bytes with '?' so field values can be
// serialised into API payloads.
func sanitize(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			b.WriteByte('?')
		} else {
			b.WriteString(s[:size])
		}
		s = s[size:]
	}
	return b.String()
}

// BOMSkippingReader drops a leading UTF-8 byte order mark, which spreadsheet
// exports on Windows commonly add.
type BOMSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

// NewBOMSkippingReader wraps r.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: bufio.NewReader(r)}
}

func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head, err := b.r.Peek(len(utf8BOM))
		if err == nil && bytes.Equal(head, utf8BOM) {
			_, _ = b.r.Discard(len(utf8BOM))
		}
	}
	return b.r.Read(p)
}
