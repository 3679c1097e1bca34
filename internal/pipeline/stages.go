package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MrWong99/takesplit/internal/align"
	"github.com/MrWong99/takesplit/internal/observe"
	"github.com/MrWong99/takesplit/internal/records"
	"github.com/MrWong99/takesplit/internal/rename"
	"github.com/MrWong99/takesplit/internal/report"
	"github.com/MrWong99/takesplit/internal/resilience"
	"github.com/MrWong99/takesplit/internal/segment"
	"github.com/MrWong99/takesplit/internal/textmatch"
	"github.com/MrWong99/takesplit/internal/transcribe"
	"github.com/MrWong99/takesplit/pkg/audio"
	"github.com/MrWong99/takesplit/pkg/provider/stt"
)

// AlignResult is the outcome of the align stage.
type AlignResult struct {
	Clips       []report.Clip
	Diagnostics report.Diagnostics
	Stats       align.Stats
}

func (p *Pipeline) loadAudio() (*audio.Buffer, error) {
	if p.cfg.Paths.Audio == "" {
		return nil, errors.New("pipeline: no audio file configured")
	}
	buf, err := audio.ReadWAV(p.cfg.Paths.Audio, p.cfg.Audio.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	p.log.Debug("pipeline: audio loaded",
		"path", p.cfg.Paths.Audio, "samples", buf.Len(), "sample_rate", buf.SampleRate)
	return buf, nil
}

func (p *Pipeline) loadRanges() ([]audio.Range, error) {
	spans, err := records.ReadTimestampsFile(p.path(TimestampsFile))
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	ranges := make([]audio.Range, len(spans))
	for i, s := range spans {
		ranges[i] = audio.Range{Start: s.Start, End: s.End}
	}
	return ranges, nil
}

// Segment detects speech segments in the recording and writes
// Timestamps.txt, plus Segments/ when export is enabled.
func (p *Pipeline) Segment(ctx context.Context) ([]audio.Range, error) {
	var ranges []audio.Range
	err := p.stage(ctx, "segment", func(ctx context.Context) error {
		buf, err := p.loadAudio()
		if err != nil {
			return err
		}

		sc := p.cfg.Segment
		ranges = segment.Detect(buf.Samples, buf.SampleRate, segment.Options{
			TopDB:        sc.TopDB,
			MinSilent:    sc.MinimumSilent,
			MinNonSilent: sc.MinimumNonSilent,
			Buffer:       sc.SilentBuffer,
			FrameLength:  sc.FrameLength,
			HopLength:    sc.HopLength,
		})
		p.metrics.Segments.Add(ctx, int64(len(ranges)))
		p.log.Info("pipeline: segments detected", "count", len(ranges))

		spans := make([]records.Span, len(ranges))
		for i, r := range ranges {
			spans[i] = records.Span{Start: r.Start, End: r.End}
		}
		if err := records.WriteTimestampsFile(p.path(TimestampsFile), spans); err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}

		if sc.ExportSegments {
			if err := segment.Export(ctx, p.path(SegmentsDir), buf, ranges, p.cfg.Clips.BitDepth, p.cfg.Clips.Concurrency); err != nil {
				return fmt.Errorf("pipeline: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ranges, nil
}

// transcriberChain builds the failover chain over the configured
// transcribers.
func (p *Pipeline) transcriberChain() (*resilience.TranscriberChain, error) {
	var ts []stt.Transcriber
	if p.transcriber != nil {
		ts = []stt.Transcriber{p.transcriber}
	} else {
		if len(p.cfg.Transcribe.Providers) == 0 {
			return nil, errors.New("pipeline: no transcribe providers configured")
		}
		var err error
		if ts, err = p.registry.CreateAll(p.cfg.Transcribe.Providers); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}

	bc := p.cfg.Transcribe.Breaker
	chain, err := resilience.NewTranscriberChain(resilience.BreakerConfig{
		MaxFailures:  bc.MaxFailures,
		ResetTimeout: time.Duration(bc.ResetTimeoutSeconds * float64(time.Second)),
	}, ts,
		resilience.WithLogger(p.log),
		resilience.WithFailureHook(func(provider string, err error) {
			p.log.Warn("pipeline: transcriber failed", "provider", provider, "err", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	p.chainMu.Lock()
	p.chain = chain
	p.chainMu.Unlock()
	return chain, nil
}

// Transcribe transcribes every segment listed in Timestamps.txt and writes
// Transcript.txt.
func (p *Pipeline) Transcribe(ctx context.Context) ([]string, error) {
	var texts []string
	err := p.stage(ctx, "transcribe", func(ctx context.Context) error {
		ranges, err := p.loadRanges()
		if err != nil {
			return err
		}
		buf, err := p.loadAudio()
		if err != nil {
			return err
		}
		chain, err := p.transcriberChain()
		if err != nil {
			return err
		}

		texts, err = transcribe.Run(ctx, chain, buf, ranges,
			transcribe.WithConcurrency(p.cfg.Transcribe.Concurrency),
			transcribe.WithLogger(observe.WithSpan(ctx, p.log)),
			transcribe.WithObserver(func(_ int, took time.Duration, err error) {
				p.metrics.RecordTranscription(ctx, chain.Name(), took.Seconds(), err)
			}),
		)
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		if err := records.WriteTranscriptFile(p.path(TranscriptFile), texts); err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return texts, nil
}

// Align matches the transcript against the script, writes one clip per
// assignment into a fresh Clips/ directory, writes NotFound.txt and prints
// the summary.
func (p *Pipeline) Align(ctx context.Context) (*AlignResult, error) {
	var res *AlignResult
	err := p.stage(ctx, "align", func(ctx context.Context) error {
		if p.cfg.Paths.Script == "" {
			return errors.New("pipeline: no script file configured")
		}
		entries, err := records.ReadScriptFile(p.cfg.Paths.Script)
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		spans, err := records.ReadTimestampsFile(p.path(TimestampsFile))
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		texts, err := records.ReadTranscriptFile(p.path(TranscriptFile))
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		if err := records.CheckAligned(spans, texts); err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		buf, err := p.loadAudio()
		if err != nil {
			return err
		}

		lines := make([]align.ScriptLine, len(entries))
		for i, e := range entries {
			lines[i] = align.NewScriptLine(e.ID, e.Text)
		}
		kept, filtered := align.FilterEmpty(lines)
		for _, l := range filtered {
			p.log.Warn("pipeline: script line has no matchable text", "id", l.ID, "text", l.Raw)
		}

		segments := make([]align.Segment, len(spans))
		for i, s := range spans {
			segments[i] = align.NewSegment(i, texts[i], s.Start, s.End)
		}

		ac := p.cfg.Align
		matcher := textmatch.NewMatcher(
			textmatch.WithSubstringThreshold(ac.SubstringThreshold),
			textmatch.WithShortThreshold(ac.MatchThresholdShort),
			textmatch.WithLongThreshold(ac.MatchThresholdLong),
			textmatch.WithLengthCutoff(ac.ShortLongSeparator),
		)

		traceLog, closer := observe.NewTraceLogger(observe.TraceLogConfig{
			Path:       p.workPath(p.cfg.Trace.Path),
			MaxSizeMB:  p.cfg.Trace.MaxSizeMB,
			MaxBackups: p.cfg.Trace.MaxBackups,
		})
		defer closer.Close()
		traceLog = traceLog.With("run_id", p.runID)

		engine := align.New(kept, segments, matcher, align.Config{
			BacktrackLimit:    ac.BacktrackLimit,
			ForwardtrackLimit: ac.ForwardtrackLimit,
		},
			align.WithTrace(traceLog),
			align.WithObserver(func(tr align.Transition) {
				switch tr.Action {
				case align.ActionBacktrack, align.ActionForwardtrack:
					p.metrics.RecordLookupStep(ctx, tr.Action.String())
				}
				if tr.Assignment != nil {
					p.metrics.RecordAssignment(ctx, tr.Assignment.Kind.String())
				}
			}),
		)
		result := engine.Run()

		cc := p.cfg.Clips
		clips := report.Build(result.Assignments, buf.Samples, buf.SampleRate, report.Options{
			Trim: audio.TrimOptions{
				StartThreshold: float32(cc.StartTrimThreshold),
				EndThreshold:   float32(cc.EndTrimThreshold),
				StartBuffer:    audio.SecondsToSamples(cc.StartTrimBuffer, buf.SampleRate),
				EndBuffer:      audio.SecondsToSamples(cc.EndTrimBuffer, buf.SampleRate),
			},
			MaxNameLength: ac.MaxNameLength,
			Extension:     cc.Extension,
		})

		clipsDir := p.path(ClipsDir)
		if err := os.RemoveAll(clipsDir); err != nil {
			return fmt.Errorf("pipeline: clear %s: %w", clipsDir, err)
		}
		err = report.Emit(ctx, clipsDir, buf, clips, cc.BitDepth, cc.Concurrency, func(c report.Clip) {
			p.metrics.ClipsWritten.Add(ctx, 1)
			p.log.Debug("pipeline: clip written", "name", c.Name)
		})
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}

		diag := report.Diagnose(kept, filtered, result.Takes)
		if err := diag.WriteFile(p.path(NotFoundFile)); err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		if err := report.Summary(p.out, p.runID, clips, result.Stats, diag); err != nil {
			return fmt.Errorf("pipeline: print summary: %w", err)
		}

		p.log.Info("pipeline: alignment finished",
			"clips", len(clips),
			"matched", result.Stats.Matches,
			"unknown", result.Stats.Unknown,
			"unidentified", result.Stats.Unidentified,
			"unfound_ids", len(diag.Unfound))
		res = &AlignResult{Clips: clips, Diagnostics: diag, Stats: result.Stats}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Rename copies Clips/ to ClipsOrdered/ and gives every take of a line the
// timestamp of its earliest take.
func (p *Pipeline) Rename(ctx context.Context) ([]rename.Move, error) {
	var moves []rename.Move
	err := p.stage(ctx, "rename", func(ctx context.Context) error {
		var err error
		moves, err = rename.Apply(p.path(ClipsDir), p.path(OrderedDir), observe.WithSpan(ctx, p.log))
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		p.log.Info("pipeline: clips renamed", "moves", len(moves))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moves, nil
}
