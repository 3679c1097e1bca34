package audio

// Mixdown averages interleaved frames of chans channels into one channel.
// Mono input is returned unchanged.
func Mixdown(interleaved []float64, chans int) []float64 {
	if chans <= 1 {
		return interleaved
	}
	frames := len(interleaved) / chans
	mono := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range chans {
			sum += interleaved[i*chans+c]
		}
		mono[i] = sum / float64(chans)
	}
	return mono
}

// Resample converts mono samples from srcRate to dstRate using linear
// interpolation. If the rates match or either is invalid, samples is returned
// unchanged.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]float32, dstLen)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstLen {
		pos := float64(i) * ratio
		j := int(pos)
		frac := float32(pos - float64(j))
		if j+1 < len(samples) {
			out[i] = samples[j]*(1-frac) + samples[j+1]*frac
		} else {
			out[i] = samples[len(samples)-1]
		}
	}
	return out
}
