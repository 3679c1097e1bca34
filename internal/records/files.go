package records

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ReadScriptFile is [ReadScript] on the file at path.
func ReadScriptFile(path string) ([]ScriptEntry, error) {
	return readFile(path, ReadScript)
}

// ReadTimestampsFile is [ReadTimestamps] on the file at path.
func ReadTimestampsFile(path string) ([]Span, error) {
	return readFile(path, ReadTimestamps)
}

// ReadTranscriptFile is [ReadTranscript] on the file at path.
func ReadTranscriptFile(path string) ([]string, error) {
	return readFile(path, ReadTranscript)
}

// WriteTimestampsFile is [WriteTimestamps] to a new file at path.
func WriteTimestampsFile(path string, spans []Span) error {
	return writeFile(path, func(w io.Writer) error { return WriteTimestamps(w, spans) })
}

// WriteTranscriptFile is [WriteTranscript] to a new file at path.
func WriteTranscriptFile(path string, texts []string) error {
	return writeFile(path, func(w io.Writer) error { return WriteTranscript(w, texts) })
}

func readFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("records: %w", err)
	}
	defer f.Close()

	v, err := parse(f)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.File = path
			return zero, pe
		}
		return zero, fmt.Errorf("records: %s: %w", path, err)
	}
	return v, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("records: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("records: close %s: %w", path, cerr)
		}
	}()
	return write(f)
}
