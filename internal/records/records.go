// Package records reads and writes the line-oriented text files exchanged
// between pipeline stages: the tab-separated script, the segment timestamps
// and the per-segment transcript.
//
// Timestamps and transcript are order-aligned: line i of each describes
// segment i. Parsers fail on the first malformed record and name it, because
// skipping a record would shift every following segment.
package records

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrLengthMismatch is returned when timestamps and transcript disagree on
// the number of segments.
var ErrLengthMismatch = errors.New("records: timestamps and transcript lengths differ")

// maxLineBytes bounds a single record. Script lines are sentence-scale.
const maxLineBytes = 1 << 20

// ScriptEntry is one line of the script file.
type ScriptEntry struct {
	ID   string
	Text string

	// Line is the 1-based line number in the source file.
	Line int
}

// Span is a half-open sample range of one segment.
type Span struct {
	Start int
	End   int
}

// ParseError describes a malformed record.
type ParseError struct {
	File    string
	Line    int
	Content string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("records: %s line %d: %q: %v", e.File, e.Line, e.Content, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReadScript parses "text<TAB>id" records. Blank lines are skipped; any
// other line without exactly two tab-separated fields is an error.
func ReadScript(r io.Reader) ([]ScriptEntry, error) {
	var out []ScriptEntry
	err := scanLines(r, func(n int, line string) error {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return nil
		}
		fields := strings.Split(trimmed, "\t")
		if len(fields) != 2 {
			return &ParseError{File: "script", Line: n, Content: line,
				Err: fmt.Errorf("want 2 tab-separated fields, got %d", len(fields))}
		}
		id := strings.TrimSpace(fields[1])
		if id == "" {
			return &ParseError{File: "script", Line: n, Content: line, Err: errors.New("empty id")}
		}
		out = append(out, ScriptEntry{ID: id, Text: strings.TrimSpace(fields[0]), Line: n})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadTimestamps parses "start,end" records of integer sample offsets.
func ReadTimestamps(r io.Reader) ([]Span, error) {
	var out []Span
	err := scanLines(r, func(n int, line string) error {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return nil
		}
		a, b, ok := strings.Cut(trimmed, ",")
		if !ok || strings.Contains(b, ",") {
			return &ParseError{File: "timestamps", Line: n, Content: line, Err: errors.New("want start,end")}
		}
		start, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil {
			return &ParseError{File: "timestamps", Line: n, Content: line, Err: err}
		}
		end, err := strconv.Atoi(strings.TrimSpace(b))
		if err != nil {
			return &ParseError{File: "timestamps", Line: n, Content: line, Err: err}
		}
		if start < 0 || end < start {
			return &ParseError{File: "timestamps", Line: n, Content: line,
				Err: fmt.Errorf("invalid range [%d,%d)", start, end)}
		}
		out = append(out, Span{Start: start, End: end})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadTranscript returns one trimmed string per line. Empty lines are kept:
// they are segments with no recognised speech.
func ReadTranscript(r io.Reader) ([]string, error) {
	var out []string
	err := scanLines(r, func(_ int, line string) error {
		out = append(out, strings.TrimSpace(line))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CheckAligned returns an error wrapping [ErrLengthMismatch] unless spans and
// texts have the same length.
func CheckAligned(spans []Span, texts []string) error {
	if len(spans) != len(texts) {
		return fmt.Errorf("%w: %d timestamps, %d transcript lines", ErrLengthMismatch, len(spans), len(texts))
	}
	return nil
}

// WriteTimestamps writes spans as "start,end" lines.
func WriteTimestamps(w io.Writer, spans []Span) error {
	bw := bufio.NewWriter(w)
	for _, s := range spans {
		if _, err := fmt.Fprintf(bw, "%d,%d\n", s.Start, s.End); err != nil {
			return fmt.Errorf("records: write timestamps: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("records: write timestamps: %w", err)
	}
	return nil
}

// WriteTranscript writes one line per text. Embedded line breaks are
// replaced by spaces so line i stays segment i.
func WriteTranscript(w io.Writer, texts []string) error {
	bw := bufio.NewWriter(w)
	for _, t := range texts {
		t = strings.Join(strings.Fields(t), " ")
		if _, err := bw.WriteString(t + "\n"); err != nil {
			return fmt.Errorf("records: write transcript: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("records: write transcript: %w", err)
	}
	return nil
}

func scanLines(r io.Reader, fn func(n int, line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	n := 0
	for sc.Scan() {
		n++
		if err := fn(n, sc.Text()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("records: read line %d: %w", n+1, err)
	}
	return nil
}
