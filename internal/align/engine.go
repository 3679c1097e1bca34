// Package align maps an ordered transcript onto an ordered script.
//
// The [Engine] walks the transcript once, keeping a line cursor into the
// script. Each step either matches the current segment (possibly grown over
// following segments) to the current or next script line, moves the line
// cursor one position during a bounded backtrack/forwardtrack lookup, or
// gives up on the segment and records it as UNKNOWN. Empty transcriptions are
// recorded as UNIDENTIFIED before any matching is attempted.
//
// The engine is synchronous and performs no I/O. It is not safe for
// concurrent use; run one engine per goroutine.
package align

import (
	"context"
	"log/slog"

	"github.com/MrWong99/takesplit/internal/textmatch"
)

// Config holds the lookup bounds. Both limits must be non-negative; zero
// disables the corresponding lookup direction.
type Config struct {
	BacktrackLimit    int
	ForwardtrackLimit int
}

// DefaultConfig returns the default lookup bounds.
func DefaultConfig() Config {
	return Config{BacktrackLimit: 20, ForwardtrackLimit: 20}
}

// Action names what a single [Engine.Step] did.
type Action int

const (
	ActionDone Action = iota
	ActionUnidentified
	ActionMatchCurrent
	ActionMatchNext
	ActionBacktrack
	ActionForwardtrack
	ActionUnknown
)

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case ActionDone:
		return "done"
	case ActionUnidentified:
		return "unidentified"
	case ActionMatchCurrent:
		return "match_current"
	case ActionMatchNext:
		return "match_next"
	case ActionBacktrack:
		return "backtrack"
	case ActionForwardtrack:
		return "forwardtrack"
	case ActionUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Transition describes one step. Assignment is non-nil when the step emitted
// one.
type Transition struct {
	Action     Action
	Segment    int
	LineBefore int
	LineAfter  int
	Assignment *Assignment
}

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithTrace sets the logger receiving the step-by-step decision trace at
// debug level. The default discards it.
func WithTrace(l *slog.Logger) Option {
	return func(e *Engine) { e.trace = l }
}

// WithObserver registers fn to be called after every step.
func WithObserver(fn func(Transition)) Option {
	return func(e *Engine) { e.observers = append(e.observers, fn) }
}

// Engine aligns one transcript against one script.
type Engine struct {
	lines     []ScriptLine
	segments  []Segment
	matcher   *textmatch.Matcher
	cfg       Config
	trace     *slog.Logger
	observers []func(Transition)
}

// New returns an Engine over lines and segments. lines should already be
// filtered with [FilterEmpty]; segments must be in recording order. A nil
// matcher uses [textmatch.NewMatcher] defaults.
func New(lines []ScriptLine, segments []Segment, matcher *textmatch.Matcher, cfg Config, opts ...Option) *Engine {
	if matcher == nil {
		matcher = textmatch.NewMatcher()
	}
	e := &Engine{
		lines:    lines,
		segments: segments,
		matcher:  matcher,
		cfg:      cfg,
		trace:    slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Result is the output of [Engine.Run].
type Result struct {
	Assignments []Assignment
	Takes       TakeCounter
	Stats       Stats
}

// Run drives the engine from a fresh [State] until every segment has been
// consumed. Assignments are in consumption order and cover every segment
// exactly once.
func (e *Engine) Run() Result {
	st := NewState()
	var out []Assignment
	for {
		tr := e.Step(st)
		if tr.Action == ActionDone {
			break
		}
		if tr.Assignment != nil {
			out = append(out, *tr.Assignment)
		}
	}
	return Result{Assignments: out, Takes: st.Takes, Stats: st.Stats}
}

// Step performs one iteration of the alignment loop on st.
func (e *Engine) Step(st *State) Transition {
	if st.Takes == nil {
		st.Takes = make(TakeCounter)
	}
	if st.Segment >= len(e.segments) {
		return Transition{Action: ActionDone, Segment: st.Segment, LineBefore: st.Line, LineAfter: st.Line}
	}
	st.Stats.Steps++

	if st.Line >= len(e.lines) && len(e.lines) > 0 {
		st.Line = 0
		st.Stats.Wraps++
		e.trace.Debug("align: script exhausted, wrapping to first line", "segment", st.Segment)
	}

	tr := e.step(st)
	tr.LineAfter = st.Line
	for _, fn := range e.observers {
		fn(tr)
	}
	return tr
}

func (e *Engine) step(st *State) Transition {
	seg := e.segments[st.Segment]
	tr := Transition{Segment: st.Segment, LineBefore: st.Line}
	e.traceCursor(st)

	if seg.Normalized == "" {
		tr.Action = ActionUnidentified
		tr.Assignment = &Assignment{
			Kind:         KindUnidentified,
			FirstSegment: st.Segment,
			LastSegment:  st.Segment,
			Start:        seg.Start,
			End:          seg.End,
		}
		st.Stats.Unidentified++
		e.trace.Debug("align: empty transcription", "segment", st.Segment, "outcome", "UNIDENTIFIED")
		st.Segment++
		return tr
	}

	if len(e.lines) == 0 {
		return e.giveUp(st, tr)
	}

	if a, ok := e.attempt(st, st.Line); ok {
		tr.Action = ActionMatchCurrent
		tr.Assignment = a
		return tr
	}

	if st.Line+1 < len(e.lines) {
		if a, ok := e.attempt(st, st.Line+1); ok {
			st.Line++
			st.Stats.NextLineHits++
			tr.Action = ActionMatchNext
			tr.Assignment = a
			return tr
		}
	}

	return e.lookup(st, tr)
}

// attempt tries to match the segment at st.Segment, grown over following
// segments, against line target. On success the assignment is recorded in
// st and the segment cursor moves past the consumed run; on failure st is
// left unchanged.
func (e *Engine) attempt(st *State, target int) (*Assignment, bool) {
	line := e.lines[target].Normalized
	text := e.segments[st.Segment].Normalized

	// The full-match gate compares against the line under the cursor using
	// the target line's threshold. For target == st.Line this is the plain
	// check; for the next line it is a known asymmetry kept as observed.
	gateSub := e.matcher.Contains(line, text)
	gateFull := textmatch.IsMatch(e.lines[st.Line].Normalized, text, e.matcher.Threshold(len(line)))
	if !gateSub && !gateFull {
		return nil, false
	}
	e.trace.Debug("align: possible match",
		"segment", st.Segment, "line", target, "id", e.lines[target].ID,
		"substring", gateSub, "full", gateFull)

	last, sentence := e.grow(line, st.Segment)
	st.Stats.Folds += last - st.Segment

	sim := textmatch.Similarity(line, sentence)
	threshold := e.matcher.Threshold(len(line))
	if sim < threshold {
		e.trace.Debug("align: candidate rejected",
			"transcript", sentence, "line", line, "similarity", sim, "threshold", threshold)
		return nil, false
	}

	id := e.lines[target].ID
	first := e.segments[st.Segment]
	a := &Assignment{
		Kind:         KindMatch,
		LineID:       id,
		Take:         st.Takes.Next(id),
		FirstSegment: st.Segment,
		LastSegment:  last,
		Start:        first.Start,
		End:          e.segments[last].End,
		Text:         sentence,
	}
	st.Stats.Matches++
	e.trace.Debug("align: match",
		"id", id, "take", a.Take, "first_segment", a.FirstSegment, "last_segment", a.LastSegment,
		"similarity", sim)

	st.Segment = last + 1
	st.Lookup = Lookup{}
	return a, true
}

// grow folds following segments into the candidate sentence while each next
// segment plausibly belongs to line and folding it strictly improves the
// similarity. It returns the index of the last folded segment.
func (e *Engine) grow(line string, first int) (int, string) {
	last := first
	sentence := e.segments[first].Normalized
	for last+1 < len(e.segments) {
		next := e.segments[last+1].Normalized
		// Only the next segment is tested; the grown sentence may reach the
		// full line length, which Contains always rejects.
		if !e.matcher.Contains(line, next) {
			break
		}
		grown := sentence + " " + next
		if textmatch.Similarity(line, sentence) >= textmatch.Similarity(line, grown) {
			break
		}
		last++
		sentence = grown
		e.trace.Debug("align: grew candidate", "transcript", sentence)
	}
	return last, sentence
}

// lookup moves the line cursor one position within the current episode, or
// ends the episode with an UNKNOWN assignment once both directions are
// exhausted.
func (e *Engine) lookup(st *State, tr Transition) Transition {
	lk := &st.Lookup
	if !lk.Active {
		lk.Active = true
		lk.SavedLine = st.Line
		e.trace.Debug("align: starting backtrack", "line", st.Line)
	}

	if !lk.Forwarding && st.Line > 0 && lk.Backtrack < e.cfg.BacktrackLimit {
		st.Line--
		lk.Backtrack++
		st.Stats.Backtracks++
		tr.Action = ActionBacktrack
		e.trace.Debug("align: backtrack", "line", st.Line, "step", lk.Backtrack)
		return tr
	}
	lk.Backtrack = e.cfg.BacktrackLimit

	if !lk.Forwarding {
		lk.Forwarding = true
		st.Line = lk.SavedLine
		e.trace.Debug("align: starting forwardtrack", "line", st.Line)
	}

	if st.Line < len(e.lines) && lk.Forwardtrack < e.cfg.ForwardtrackLimit {
		st.Line++
		if st.Line < len(e.lines) {
			lk.Forwardtrack++
		} else {
			lk.Forwardtrack = e.cfg.ForwardtrackLimit
		}
		st.Stats.Forwardtracks++
		tr.Action = ActionForwardtrack
		e.trace.Debug("align: forwardtrack", "line", st.Line, "step", lk.Forwardtrack)
		return tr
	}

	return e.giveUp(st, tr)
}

// giveUp records the segment under the cursor as UNKNOWN, restores the line
// cursor saved at the start of the lookup and ends the episode.
func (e *Engine) giveUp(st *State, tr Transition) Transition {
	seg := e.segments[st.Segment]
	tr.Action = ActionUnknown
	tr.Assignment = &Assignment{
		Kind:         KindUnknown,
		FirstSegment: st.Segment,
		LastSegment:  st.Segment,
		Start:        seg.Start,
		End:          seg.End,
		Text:         seg.Normalized,
	}
	if st.Lookup.Active {
		st.Line = st.Lookup.SavedLine
	}
	st.Stats.Unknown++
	e.trace.Debug("align: no match after lookup", "segment", st.Segment, "transcript", seg.Normalized,
		"line", st.Line, "outcome", "UNKNOWN")
	st.Segment++
	st.Lookup = Lookup{}
	return tr
}

func (e *Engine) traceCursor(st *State) {
	if !e.trace.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := []any{
		"segment", st.Segment,
		"transcript", e.segments[st.Segment].Normalized,
		"phase", st.Phase().String(),
	}
	if st.Segment+1 < len(e.segments) {
		attrs = append(attrs, "next_transcript", e.segments[st.Segment+1].Normalized)
	}
	if st.Line < len(e.lines) {
		attrs = append(attrs, "line", st.Line, "script", e.lines[st.Line].Normalized)
	}
	if st.Line+1 < len(e.lines) {
		attrs = append(attrs, "next_script", e.lines[st.Line+1].Normalized)
	}
	e.trace.Debug("align: step", attrs...)
}
