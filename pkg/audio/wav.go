package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM and wavFormatExtensible are the RIFF format tags accepted by
// [DecodeWAV]. IEEE float files are rejected.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// Buffer is a mono float32 signal in [-1, 1] at SampleRate Hz.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Len returns the number of samples.
func (b *Buffer) Len() int { return len(b.Samples) }

// Slice returns the samples of r clamped to the buffer.
func (b *Buffer) Slice(r Range) []float32 {
	r = r.Clamp(len(b.Samples))
	return b.Samples[r.Start:r.End]
}

// ReadWAV loads the WAV file at path, mixes it down to mono and resamples it
// to targetRate. A targetRate of 0 keeps the file's own rate.
func ReadWAV(path string, targetRate int) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: read wav: %w", err)
	}
	defer f.Close()

	buf, err := DecodeWAV(f, targetRate)
	if err != nil {
		return nil, fmt.Errorf("audio: read wav %s: %w", path, err)
	}
	return buf, nil
}

// DecodeWAV decodes a PCM WAV stream. See [ReadWAV].
func DecodeWAV(r io.ReadSeeker, targetRate int) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("not a valid wav stream")
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("unsupported wav format tag %d", dec.WavAudioFormat)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode pcm: %w", err)
	}
	if pcm == nil || pcm.Format == nil {
		return nil, errors.New("empty wav data")
	}

	rate := int(dec.SampleRate)
	chans := int(dec.NumChans)
	depth := int(dec.BitDepth)
	if rate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", rate)
	}
	if chans <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", chans)
	}
	if depth != 8 && depth != 16 && depth != 24 && depth != 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", depth)
	}

	scale := float64(int64(1) << (depth - 1))
	interleaved := make([]float64, len(pcm.Data))
	for i, v := range pcm.Data {
		x := float64(v)
		if depth == 8 {
			x -= 128 // 8-bit PCM is unsigned
		}
		interleaved[i] = clamp1(x / scale)
	}

	mono := Mixdown(interleaved, chans)
	samples := make([]float32, len(mono))
	for i, v := range mono {
		samples[i] = float32(v)
	}
	if targetRate > 0 && targetRate != rate {
		samples = Resample(samples, rate, targetRate)
		rate = targetRate
	}
	return &Buffer{Samples: samples, SampleRate: rate}, nil
}

// WriteWAV writes samples as a mono integer PCM WAV file at path.
// bitDepth must be 16, 24 or 32.
func WriteWAV(path string, samples []float32, sampleRate, bitDepth int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: write wav: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("audio: write wav: close %s: %w", path, cerr)
		}
	}()
	if err := encode(f, samples, sampleRate, bitDepth); err != nil {
		return fmt.Errorf("audio: write wav %s: %w", path, err)
	}
	return nil
}

// EncodeWAV returns samples as an in-memory mono PCM WAV file, for uploading
// to speech-to-text services.
func EncodeWAV(samples []float32, sampleRate, bitDepth int) ([]byte, error) {
	var sb seekBuffer
	if err := encode(&sb, samples, sampleRate, bitDepth); err != nil {
		return nil, fmt.Errorf("audio: encode wav: %w", err)
	}
	return sb.Bytes(), nil
}

func encode(w io.WriteSeeker, samples []float32, sampleRate, bitDepth int) error {
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	maxVal := float64(int64(1)<<(bitDepth-1) - 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(clamp1(float64(s)) * maxVal)
	}

	enc := wav.NewEncoder(w, sampleRate, bitDepth, 1, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalise header: %w", err)
	}
	return nil
}

func clamp1(x float64) float64 {
	switch {
	case x > 1:
		return 1
	case x < -1:
		return -1
	}
	return x
}

// seekBuffer is an in-memory io.WriteSeeker. The wav encoder seeks back to
// patch chunk sizes once all samples are written.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	copy(s.buf[s.pos:end], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(s.pos) + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	default:
		return 0, errors.New("seek: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seek: negative position")
	}
	s.pos = int(abs)
	return abs, nil
}

// Bytes returns a copy of the written data.
func (s *seekBuffer) Bytes() []byte {
	return bytes.Clone(s.buf)
}
