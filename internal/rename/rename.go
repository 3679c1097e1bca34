// Package rename gives every take of a script line the same timestamp prefix
// so that takes sort together in a file browser.
//
// Clip names have the form "<timestamp>__<id>__<suffix>". Within each id the
// lexicographically first name defines the prefix used by all of them.
// UNKNOWN and UNIDENTIFIED clips are left alone.
package rename

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const sep = "__"

// Move is a single planned rename within one directory.
type Move struct {
	From string
	To   string
}

// split breaks name at its first and last separator. ok is false when name
// does not contain two distinct separators.
func split(name string) (prefix, id, suffix string, ok bool) {
	first := strings.Index(name, sep)
	last := strings.LastIndex(name, sep)
	if first < 0 || last <= first {
		return "", "", "", false
	}
	return name[:first], name[first+len(sep) : last], name[last+len(sep):], true
}

func skipped(name string) bool {
	return strings.Contains(name, "UNKNOWN") || strings.Contains(name, "UNIDENTIFIED")
}

// Plan returns the renames needed to make names consistent. Names that are
// already consistent produce no move.
func Plan(names []string) []Move {
	sorted := slices.Clone(names)
	slices.Sort(sorted)

	canonical := make(map[string]string)
	var moves []Move
	for _, name := range sorted {
		if skipped(name) {
			continue
		}
		prefix, id, suffix, ok := split(name)
		if !ok {
			continue
		}
		want, seen := canonical[id]
		if !seen {
			canonical[id] = prefix
			continue
		}
		if want == prefix {
			continue
		}
		moves = append(moves, Move{From: name, To: want + sep + id + sep + suffix})
	}
	return moves
}

// Apply copies the regular files of srcDir into a freshly created dstDir and
// performs the planned renames there. srcDir is never modified.
func Apply(srcDir, dstDir string, log *slog.Logger) ([]Move, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.RemoveAll(dstDir); err != nil {
		return nil, fmt.Errorf("rename: clear %s: %w", dstDir, err)
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, fmt.Errorf("rename: create %s: %w", dstDir, err)
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("rename: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := copyFile(filepath.Join(srcDir, e.Name()), filepath.Join(dstDir, e.Name())); err != nil {
			return nil, err
		}
		names = append(names, e.Name())
	}

	moves := Plan(names)
	for _, m := range moves {
		to := filepath.Join(dstDir, m.To)
		if _, err := os.Stat(to); err == nil {
			return nil, fmt.Errorf("rename: %s: target already exists", m.To)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("rename: %w", err)
		}
		if err := os.Rename(filepath.Join(dstDir, m.From), to); err != nil {
			return nil, fmt.Errorf("rename: %w", err)
		}
		log.Debug("rename: moved", "from", m.From, "to", m.To)
	}
	log.Info("rename: done", "files", len(names), "renamed", len(moves), "dir", dstDir)
	return moves, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, fs.FileMode(0o644))
	if err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("rename: close %s: %w", dst, cerr)
		}
	}()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("rename: copy %s: %w", src, err)
	}
	return nil
}
