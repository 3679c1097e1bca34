package align

// Phase is the engine state visible between steps. Growth is transient
// inside a single step and never observable here.
type Phase int

const (
	PhaseScanning Phase = iota
	PhaseBacktrack
	PhaseForwardtrack
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseScanning:
		return "scanning"
	case PhaseBacktrack:
		return "backtrack"
	case PhaseForwardtrack:
		return "forwardtrack"
	default:
		return "invalid"
	}
}

// Lookup tracks one backtrack/forwardtrack episode. The zero value is an
// inactive lookup.
type Lookup struct {
	// Active is set when the episode starts and SavedLine holds the line
	// cursor from that moment.
	Active    bool
	SavedLine int

	Backtrack    int
	Forwardtrack int

	// Forwarding is set once the episode has switched to forwardtracking
	// and the line cursor has been restored to SavedLine.
	Forwarding bool
}

// State is the mutable cursor state of one alignment run.
type State struct {
	// Line indexes the script, Segment the transcript.
	Line    int
	Segment int

	Lookup Lookup
	Takes  TakeCounter
	Stats  Stats
}

// NewState returns the initial state: both cursors at zero, no lookup.
func NewState() *State {
	return &State{Takes: make(TakeCounter)}
}

// Phase derives the current [Phase] from the lookup state.
func (s *State) Phase() Phase {
	switch {
	case !s.Lookup.Active:
		return PhaseScanning
	case s.Lookup.Forwarding:
		return PhaseForwardtrack
	default:
		return PhaseBacktrack
	}
}

// Stats counts engine decisions over a run.
type Stats struct {
	Steps         int
	Matches       int
	NextLineHits  int
	Folds         int
	Backtracks    int
	Forwardtracks int
	Wraps         int
	Unknown       int
	Unidentified  int
}
