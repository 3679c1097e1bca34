package align

import "github.com/MrWong99/takesplit/internal/textmatch"

// ScriptLine is one entry of the reference script. Order is significant and
// ID need not be unique: repeated ids are disambiguated by take numbers.
type ScriptLine struct {
	ID         string
	Raw        string
	Normalized string
}

// NewScriptLine returns a ScriptLine whose Normalized field is derived from raw.
func NewScriptLine(id, raw string) ScriptLine {
	return ScriptLine{ID: id, Raw: raw, Normalized: textmatch.Normalize(raw)}
}

// Segment is one transcribed audio segment in recording order. Start and End
// are sample offsets into the source recording, End exclusive.
type Segment struct {
	Index      int
	Raw        string
	Normalized string
	Start      int
	End        int
}

// NewSegment returns a Segment whose Normalized field is derived from raw.
func NewSegment(index int, raw string, start, end int) Segment {
	return Segment{
		Index:      index,
		Raw:        raw,
		Normalized: textmatch.Normalize(raw),
		Start:      start,
		End:        end,
	}
}

// FilterEmpty splits lines into those usable by the engine and those whose
// text normalised to nothing. Both results keep the input order.
func FilterEmpty(lines []ScriptLine) (kept, filtered []ScriptLine) {
	kept = make([]ScriptLine, 0, len(lines))
	for _, l := range lines {
		if l.Normalized == "" {
			filtered = append(filtered, l)
			continue
		}
		kept = append(kept, l)
	}
	return kept, filtered
}

// Kind classifies an [Assignment].
type Kind int

const (
	// KindMatch is a segment run matched to a script line.
	KindMatch Kind = iota

	// KindUnknown is a segment with text that matched no line within the
	// lookup window.
	KindUnknown

	// KindUnidentified is a segment whose transcription was empty.
	KindUnidentified
)

// String returns the name used in logs, metrics and clip names.
func (k Kind) String() string {
	switch k {
	case KindMatch:
		return "match"
	case KindUnknown:
		return "UNKNOWN"
	case KindUnidentified:
		return "UNIDENTIFIED"
	default:
		return "invalid"
	}
}

// Assignment is the outcome for one contiguous run of segments. For
// [KindUnknown] and [KindUnidentified] the run is always a single segment.
type Assignment struct {
	Kind Kind

	// LineID and Take are set for KindMatch only. Take starts at 1.
	LineID string
	Take   int

	// FirstSegment and LastSegment are inclusive segment indices.
	FirstSegment int
	LastSegment  int

	// Start and End are the raw sample range: the start of the first segment
	// to the end of the last one.
	Start int
	End   int

	// Text is the normalised transcript text covered by the assignment.
	Text string
}

// TakeCounter counts matches per script line id.
type TakeCounter map[string]int

// Next increments the count for id and returns the new value.
func (c TakeCounter) Next(id string) int {
	c[id]++
	return c[id]
}
