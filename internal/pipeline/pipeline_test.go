package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/takesplit/internal/config"
	"github.com/MrWong99/takesplit/internal/health"
	"github.com/MrWong99/takesplit/internal/observe"
	"github.com/MrWong99/takesplit/internal/pipeline"
	"github.com/MrWong99/takesplit/internal/records"
	"github.com/MrWong99/takesplit/internal/resilience"
	"github.com/MrWong99/takesplit/pkg/audio"
	"github.com/MrWong99/takesplit/pkg/provider/stt/mock"
)

const rate = 8000

// tone returns n seconds of a 220 Hz tone, or silence when loud is false.
func tone(seconds float64, loud bool) []float32 {
	out := make([]float32, int(seconds*rate))
	if loud {
		for i := range out {
			out[i] = float32(0.5 * math.Sin(2*math.Pi*220*float64(i)/rate))
		}
	}
	return out
}

// setup writes a recording with two utterances and a script to a temporary
// directory and returns a config pointing at them.
func setup(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	var samples []float32
	samples = append(samples, tone(1, false)...)
	samples = append(samples, tone(1, true)...)
	samples = append(samples, tone(1, false)...)
	samples = append(samples, tone(1, true)...)
	samples = append(samples, tone(0.5, false)...)
	audioPath := filepath.Join(dir, "session.wav")
	if err := audio.WriteWAV(audioPath, samples, rate, 16); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	script := "Hello there.\tL1\nGoodbye now.\tL2\nNever said.\tL3\n...\tX\n"
	scriptPath := filepath.Join(dir, "script.tsv")
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Paths = config.PathsConfig{Audio: audioPath, Script: scriptPath, WorkDir: filepath.Join(dir, "work")}
	cfg.Audio.SampleRate = rate
	cfg.Segment.FrameLength = 512
	cfg.Segment.HopLength = 128
	cfg.Segment.SilentBuffer = 0
	cfg.Clips.BitDepth = 16
	return cfg
}

func newPipeline(t *testing.T, cfg *config.Config, opts ...pipeline.Option) (*pipeline.Pipeline, *bytes.Buffer) {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	var out bytes.Buffer
	opts = append([]pipeline.Option{
		pipeline.WithMetrics(m),
		pipeline.WithOutput(&out),
		pipeline.WithRunID("test-run"),
	}, opts...)
	return pipeline.New(cfg, opts...), &out
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestPipeline_RunEndToEnd(t *testing.T) {
	t.Parallel()
	cfg := setup(t)
	stt := &mock.Transcriber{Texts: map[int]string{0: "Hello there.", 1: "Goodbye now."}}
	p, out := newPipeline(t, cfg, pipeline.WithTranscriber(stt))

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	work := cfg.Paths.WorkDir
	spans, err := records.ReadTimestampsFile(filepath.Join(work, pipeline.TimestampsFile))
	if err != nil {
		t.Fatalf("timestamps: %v", err)
	}
	if len(spans) != 2 {
		t.Fatalf("got %d segments, want 2", len(spans))
	}
	texts, err := records.ReadTranscriptFile(filepath.Join(work, pipeline.TranscriptFile))
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if !slices.Equal(texts, []string{"Hello there.", "Goodbye now."}) {
		t.Errorf("transcript = %q", texts)
	}

	if len(res.Clips) != 2 {
		t.Fatalf("got %d clips, want 2", len(res.Clips))
	}
	names := dirNames(t, filepath.Join(work, pipeline.ClipsDir))
	if len(names) != 2 ||
		!strings.HasSuffix(names[0], "__L1__take_1.wav") ||
		!strings.HasSuffix(names[1], "__L2__take_1.wav") {
		t.Errorf("clips = %v", names)
	}

	notFound, err := os.ReadFile(filepath.Join(work, pipeline.NotFoundFile))
	if err != nil {
		t.Fatal(err)
	}
	want := "Unfound line IDs:\nL3   Never said.\n\nFiltered line IDs:\nX   ...\n"
	if string(notFound) != want {
		t.Errorf("NotFound.txt = %q, want %q", notFound, want)
	}

	if _, err := os.Stat(filepath.Join(work, "log.txt")); err != nil {
		t.Errorf("trace log missing: %v", err)
	}
	if !strings.Contains(out.String(), "run test-run") {
		t.Errorf("summary missing run id:\n%s", out.String())
	}
}

func TestPipeline_Rename(t *testing.T) {
	t.Parallel()
	cfg := setup(t)
	stt := &mock.Transcriber{Texts: map[int]string{0: "Hello there.", 1: "Hello there."}}
	p, _ := newPipeline(t, cfg, pipeline.WithTranscriber(stt))

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	moves, err := p.Rename(context.Background())
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if len(moves) != 1 || !strings.HasSuffix(moves[0].To, "__L1__take_2.wav") {
		t.Fatalf("moves = %+v, want one rename of take 2", moves)
	}

	names := dirNames(t, filepath.Join(cfg.Paths.WorkDir, pipeline.OrderedDir))
	if len(names) != 2 {
		t.Fatalf("ordered = %v", names)
	}
	prefix := func(s string) string { return s[:strings.Index(s, "__")] }
	if prefix(names[0]) != prefix(names[1]) {
		t.Errorf("takes do not share a prefix: %v", names)
	}
}

func TestPipeline_TranscribeFailure(t *testing.T) {
	t.Parallel()
	cfg := setup(t)
	cfg.Transcribe.Breaker.MaxFailures = 1
	stt := &mock.Transcriber{Err: errors.New("backend down")}
	progress := health.NewProgress("test-run")
	p, _ := newPipeline(t, cfg, pipeline.WithTranscriber(stt), pipeline.WithProgress(progress))

	checks := p.Checkers()
	if len(checks) != 1 || checks[0].Check(context.Background()) != nil {
		t.Fatal("transcriber check should pass before the chain exists")
	}

	if _, err := p.Segment(context.Background()); err != nil {
		t.Fatalf("Segment: %v", err)
	}
	_, err := p.Transcribe(context.Background())
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Errorf("Transcribe() error = %v, want ErrAllFailed", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.WorkDir, pipeline.TranscriptFile)); !os.IsNotExist(err) {
		t.Errorf("Transcript.txt should not be written on failure, stat err = %v", err)
	}

	if err := checks[0].Check(context.Background()); err == nil {
		t.Error("transcriber check should fail once every breaker is open")
	}
	snap := progress.Snapshot()
	if snap.Status != "failed" || len(snap.Completed) != 2 || snap.Completed[1].Name != "transcribe" {
		t.Errorf("progress = %+v", snap)
	}
}

func TestPipeline_AlignRejectsMismatchedRecords(t *testing.T) {
	t.Parallel()
	cfg := setup(t)
	p, _ := newPipeline(t, cfg)

	if _, err := p.Segment(context.Background()); err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if err := records.WriteTranscriptFile(filepath.Join(cfg.Paths.WorkDir, pipeline.TranscriptFile), []string{"only one"}); err != nil {
		t.Fatal(err)
	}
	_, err := p.Align(context.Background())
	if !errors.Is(err, records.ErrLengthMismatch) {
		t.Errorf("Align() error = %v, want ErrLengthMismatch", err)
	}
}

func TestPipeline_NoProviders(t *testing.T) {
	t.Parallel()
	cfg := setup(t)
	p, _ := newPipeline(t, cfg)

	if _, err := p.Segment(context.Background()); err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if _, err := p.Transcribe(context.Background()); err == nil {
		t.Fatal("expected error without providers")
	}
}

func TestPipeline_Locked(t *testing.T) {
	t.Parallel()
	cfg := setup(t)
	if err := os.MkdirAll(cfg.Paths.WorkDir, 0o755); err != nil {
		t.Fatal(err)
	}
	held := flock.New(filepath.Join(cfg.Paths.WorkDir, ".takesplit.lock"))
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer held.Unlock()

	p, _ := newPipeline(t, cfg)
	_, err := p.Segment(context.Background())
	if !errors.Is(err, pipeline.ErrLocked) {
		t.Errorf("Segment() error = %v, want ErrLocked", err)
	}
}

func TestPipeline_ExportSegments(t *testing.T) {
	t.Parallel()
	cfg := setup(t)
	cfg.Segment.ExportSegments = true
	p, _ := newPipeline(t, cfg)

	if _, err := p.Segment(context.Background()); err != nil {
		t.Fatalf("Segment: %v", err)
	}
	names := dirNames(t, filepath.Join(cfg.Paths.WorkDir, pipeline.SegmentsDir))
	if !slices.Equal(names, []string{"segment0000.wav", "segment0001.wav"}) {
		t.Errorf("segments = %v", names)
	}
}
