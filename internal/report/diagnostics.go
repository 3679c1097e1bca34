package report

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/MrWong99/takesplit/internal/align"
)

// Diagnostics lists script lines that produced no clip.
type Diagnostics struct {
	// Unfound holds the first line of every id that received no match, in
	// script order. Each id appears once.
	Unfound []align.ScriptLine

	// Filtered holds lines whose text normalised to nothing.
	Filtered []align.ScriptLine
}

// Diagnose collects the ids of kept that takes never counted, together with
// the filtered lines.
func Diagnose(kept, filtered []align.ScriptLine, takes align.TakeCounter) Diagnostics {
	d := Diagnostics{Filtered: filtered}
	seen := make(map[string]bool)
	for _, l := range kept {
		if takes[l.ID] > 0 || seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		d.Unfound = append(d.Unfound, l)
	}
	return d
}

// WriteTo writes d in the NotFound.txt layout.
func (d Diagnostics) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	bw := bufio.NewWriter(cw)
	fmt.Fprintln(bw, "Unfound line IDs:")
	for _, l := range d.Unfound {
		fmt.Fprintf(bw, "%s   %s\n", l.ID, l.Raw)
	}
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "Filtered line IDs:")
	for _, l := range d.Filtered {
		fmt.Fprintf(bw, "%s   %s\n", l.ID, l.Raw)
	}
	err := bw.Flush()
	return cw.n, err
}

// WriteFile writes d to path, replacing any existing file.
func (d Diagnostics) WriteFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("report: close %s: %w", path, cerr)
		}
	}()
	if _, err := d.WriteTo(f); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
