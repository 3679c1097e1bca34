package audio_test

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/MrWong99/takesplit/pkg/audio"
)

func sine(n, rate int, freq, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestWriteReadWAV(t *testing.T) {
	t.Parallel()

	for _, depth := range []int{16, 24, 32} {
		path := filepath.Join(t.TempDir(), "clip.wav")
		in := sine(800, 8000, 440, 0.5)
		if err := audio.WriteWAV(path, in, 8000, depth); err != nil {
			t.Fatalf("WriteWAV(depth=%d): %v", depth, err)
		}

		buf, err := audio.ReadWAV(path, 0)
		if err != nil {
			t.Fatalf("ReadWAV(depth=%d): %v", depth, err)
		}
		if buf.SampleRate != 8000 {
			t.Errorf("depth=%d: SampleRate = %d, want 8000", depth, buf.SampleRate)
		}
		if buf.Len() != len(in) {
			t.Fatalf("depth=%d: got %d samples, want %d", depth, buf.Len(), len(in))
		}
		tol := 2.0 / float64(int64(1)<<(depth-1))
		for i := range in {
			if d := math.Abs(float64(buf.Samples[i] - in[i])); d > tol+1e-6 {
				t.Fatalf("depth=%d sample %d: got %f, want %f", depth, i, buf.Samples[i], in[i])
			}
		}
	}
}

func TestReadWAV_Resamples(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := audio.WriteWAV(path, sine(16000, 16000, 100, 0.3), 16000, 16); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	buf, err := audio.ReadWAV(path, 8000)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if buf.SampleRate != 8000 || buf.Len() != 8000 {
		t.Errorf("got rate=%d len=%d, want 8000/8000", buf.SampleRate, buf.Len())
	}
}

func TestEncodeWAV(t *testing.T) {
	t.Parallel()

	data, err := audio.EncodeWAV(sine(160, 16000, 440, 0.5), 16000, 16)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		t.Fatalf("missing RIFF/WAVE header: %q", data[:12])
	}
	if len(data) != 44+160*2 {
		t.Errorf("len = %d, want %d", len(data), 44+160*2)
	}

	buf, err := audio.DecodeWAV(bytes.NewReader(data), 0)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if buf.Len() != 160 {
		t.Errorf("decoded %d samples, want 160", buf.Len())
	}
}

func TestEncodeWAV_RejectsBadDepth(t *testing.T) {
	t.Parallel()

	if _, err := audio.EncodeWAV([]float32{0}, 16000, 12); err == nil {
		t.Error("EncodeWAV(bitDepth=12): want error")
	}
}

func TestDecodeWAV_RejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := audio.DecodeWAV(bytes.NewReader([]byte("not a wav file at all, sorry")), 0); err == nil {
		t.Error("DecodeWAV(garbage): want error")
	}
}

func TestMixdown(t *testing.T) {
	t.Parallel()

	got := audio.Mixdown([]float64{0.2, 0.4, -1, 1}, 2)
	want := []float64{0.3, 0}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("frame %d = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestResample(t *testing.T) {
	t.Parallel()

	in := []float32{0, 1, 2, 3}
	up := audio.Resample(in, 1, 2)
	want := []float32{0, 0.5, 1, 1.5, 2, 2.5, 3, 3}
	if len(up) != len(want) {
		t.Fatalf("upsampled len = %d, want %d", len(up), len(want))
	}
	for i := range want {
		if up[i] != want[i] {
			t.Errorf("up[%d] = %f, want %f", i, up[i], want[i])
		}
	}

	down := audio.Resample(in, 2, 1)
	if len(down) != 2 || down[0] != 0 || down[1] != 2 {
		t.Errorf("downsampled = %v, want [0 2]", down)
	}

	if same := audio.Resample(in, 16000, 16000); &same[0] != &in[0] {
		t.Error("equal rates should return the input slice")
	}
}
