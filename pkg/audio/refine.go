package audio

// Range is a half-open sample range [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns End-Start, or 0 for an inverted range.
func (r Range) Len() int {
	return max(0, r.End-r.Start)
}

// Clamp limits r to [0, n] and guarantees Start <= End.
func (r Range) Clamp(n int) Range {
	r.Start = min(max(r.Start, 0), n)
	r.End = min(max(r.End, r.Start), n)
	return r
}

// TrimOptions controls [Refine]. Thresholds are absolute amplitudes on the
// [-1, 1] scale; buffers are in samples.
type TrimOptions struct {
	StartThreshold float32
	EndThreshold   float32
	StartBuffer    int
	EndBuffer      int
}

// Refine trims near-silence from both ends of r and then widens the result by
// the configured buffers, clamped to the signal.
//
// The start moves forward while |sample| < StartThreshold and the end moves
// backward while |sample| < EndThreshold. A scan that runs through the whole
// range without finding a louder sample is abandoned and that side keeps its
// original position, so a quiet clip is never collapsed to nothing.
func Refine(r Range, samples []float32, opts TrimOptions) Range {
	r = r.Clamp(len(samples))

	start := r.Start
	for start < r.End && abs32(samples[start]) < opts.StartThreshold {
		start++
	}
	if start == r.End {
		start = r.Start
	}

	end := r.End
	for end > r.Start && abs32(samples[end-1]) < opts.EndThreshold {
		end--
	}
	if end == r.Start {
		end = r.End
	}

	return Range{
		Start: max(start-max(opts.StartBuffer, 0), 0),
		End:   min(end+max(opts.EndBuffer, 0), len(samples)),
	}
}

// SecondsToSamples converts a duration in seconds to a sample count.
func SecondsToSamples(seconds float64, sampleRate int) int {
	return int(seconds * float64(sampleRate))
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
