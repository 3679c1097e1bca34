// Package segment splits a recording into speech segments at silences.
package segment

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/takesplit/pkg/audio"
)

// Options controls [Detect]. Durations are in seconds.
type Options struct {
	// TopDB is the level below the loudest frame, in decibels, under which a
	// frame counts as silent.
	TopDB float64

	// MinSilent is the shortest gap that separates two segments. Shorter
	// gaps are bridged.
	MinSilent float64

	// MinNonSilent is the shortest segment kept after bridging.
	MinNonSilent float64

	// Buffer pads each kept segment: a fifth of it before, all of it after.
	Buffer float64

	FrameLength int
	HopLength   int
}

// DefaultOptions returns the defaults for speech recorded at a steady level.
func DefaultOptions() Options {
	return Options{
		TopDB:        40,
		MinSilent:    0.5,
		MinNonSilent: 0.2,
		Buffer:       0.25,
		FrameLength:  2048,
		HopLength:    512,
	}
}

// Detect returns the speech segments of samples in order. A fully silent
// signal yields no segments.
func Detect(samples []float32, sampleRate int, opts Options) []audio.Range {
	if len(samples) == 0 || sampleRate <= 0 || opts.FrameLength <= 0 || opts.HopLength <= 0 {
		return nil
	}

	raw := nonSilent(samples, opts)
	if len(raw) == 0 {
		return nil
	}

	minGap := audio.SecondsToSamples(opts.MinSilent, sampleRate)
	merged := raw[:1]
	for _, r := range raw[1:] {
		last := &merged[len(merged)-1]
		if r.Start-last.End < minGap {
			last.End = r.End
			continue
		}
		merged = append(merged, r)
	}

	minLen := audio.SecondsToSamples(opts.MinNonSilent, sampleRate)
	before := int(opts.Buffer * float64(sampleRate) * 0.2)
	after := audio.SecondsToSamples(opts.Buffer, sampleRate)

	out := make([]audio.Range, 0, len(merged))
	for _, r := range merged {
		if r.Len() < minLen {
			continue
		}
		out = append(out, audio.Range{
			Start: max(r.Start-before, 0),
			End:   min(r.End+after, len(samples)),
		})
	}
	return out
}

// nonSilent returns runs of frames whose RMS is within TopDB of the loudest
// frame. Frames are centred on multiples of HopLength.
func nonSilent(samples []float32, opts Options) []audio.Range {
	n := len(samples)
	frames := 1 + n/opts.HopLength
	half := opts.FrameLength / 2

	rms := make([]float64, frames)
	var peak float64
	for i := range frames {
		lo := max(i*opts.HopLength-half, 0)
		hi := min(i*opts.HopLength+half, n)
		var sum float64
		for _, s := range samples[lo:hi] {
			sum += float64(s) * float64(s)
		}
		rms[i] = math.Sqrt(sum / float64(opts.FrameLength))
		peak = max(peak, rms[i])
	}
	if peak == 0 {
		return nil
	}

	floor := peak * math.Pow(10, -opts.TopDB/20)
	var out []audio.Range
	start := -1
	for i, v := range rms {
		loud := v > floor
		switch {
		case loud && start < 0:
			start = i
		case !loud && start >= 0:
			out = append(out, framesToRange(start, i, opts.HopLength, n))
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, framesToRange(start, frames, opts.HopLength, n))
	}
	return out
}

func framesToRange(first, end, hop, n int) audio.Range {
	return audio.Range{Start: min(first*hop, n), End: min(end*hop, n)}
}

// Export writes each range of buf to dir as segmentNNNN.wav, using up to
// workers goroutines.
func Export(ctx context.Context, dir string, buf *audio.Buffer, ranges []audio.Range, bitDepth, workers int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("segment: export: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, r := range ranges {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, FileName(i))
			if err := audio.WriteWAV(path, buf.Slice(r), buf.SampleRate, bitDepth); err != nil {
				return fmt.Errorf("segment: export %d: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// FileName returns the preview file name of segment i.
func FileName(i int) string {
	return fmt.Sprintf("segment%04d.wav", i)
}
