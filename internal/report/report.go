// Package report turns alignment assignments into named clips on disk, the
// NotFound.txt diagnostic and the console summary.
//
// Clip names have the form
//
//	<mm-ss-mmm>__<id>__take_<n><ext>
//	<mm-ss-mmm>__UNKNOWN__<transcribed_text><ext>
//	<mm-ss-mmm>__UNIDENTIFIED<ext>
//
// where the timestamp is taken from the refined clip start.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/takesplit/internal/align"
	"github.com/MrWong99/takesplit/pkg/audio"
)

// Options controls clip naming and refinement.
type Options struct {
	// Trim is applied to every assignment's raw range before naming.
	Trim audio.TrimOptions

	// MaxNameLength caps the "UNKNOWN__<text>" part of unknown clip names.
	MaxNameLength int

	// Extension is appended to every name, including the dot.
	Extension string
}

// Clip is one output file: an assignment with its refined range and name.
type Clip struct {
	Assignment align.Assignment
	Range      audio.Range
	Name       string
}

// Build refines every assignment against samples and names the result. The
// output keeps assignment order.
func Build(assignments []align.Assignment, samples []float32, sampleRate int, opts Options) []Clip {
	clips := make([]Clip, len(assignments))
	for i, a := range assignments {
		r := audio.Refine(audio.Range{Start: a.Start, End: a.End}, samples, opts.Trim)
		clips[i] = Clip{
			Assignment: a,
			Range:      r,
			Name:       Name(a, audio.Timestamp(r.Start, sampleRate), opts.MaxNameLength, opts.Extension),
		}
	}
	return clips
}

// Name composes the file name of a for the given timestamp.
func Name(a align.Assignment, timestamp string, maxNameLength int, ext string) string {
	var label string
	switch a.Kind {
	case align.KindMatch:
		label = a.LineID + "__take_" + strconv.Itoa(a.Take)
	case align.KindUnknown:
		label = "UNKNOWN__" + strings.ReplaceAll(a.Text, " ", "_")
		if maxNameLength > 0 && len(label) > maxNameLength {
			label = label[:maxNameLength]
		}
	default:
		label = "UNIDENTIFIED"
	}
	return timestamp + "__" + label + ext
}

// Emit writes every clip as a WAV file under dir using up to workers
// goroutines. onWrite, if non-nil, is called after each file is written and
// may be called concurrently.
func Emit(ctx context.Context, dir string, buf *audio.Buffer, clips []Clip, bitDepth, workers int, onWrite func(Clip)) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: create %s: %w", dir, err)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, c := range clips {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, c.Name)
			if err := audio.WriteWAV(path, buf.Slice(c.Range), buf.SampleRate, bitDepth); err != nil {
				return fmt.Errorf("report: write clip %s: %w", c.Name, err)
			}
			if onWrite != nil {
				onWrite(c)
			}
			return nil
		})
	}
	return g.Wait()
}
