package textmatch

const (
	defaultSubstringThreshold = 0.724
	defaultShortThreshold     = 0.875
	defaultLongThreshold      = 0.775
	defaultLengthCutoff       = 50
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithSubstringThreshold sets the similarity a token span must reach for a
// fragment to count as a plausible substring. Default: 0.724.
func WithSubstringThreshold(t float64) Option {
	return func(m *Matcher) { m.substring = t }
}

// WithShortThreshold sets the full-match threshold for lines whose length is
// at or below the length cutoff. Default: 0.875.
func WithShortThreshold(t float64) Option {
	return func(m *Matcher) { m.short = t }
}

// WithLongThreshold sets the full-match threshold for lines longer than the
// length cutoff. Default: 0.775.
func WithLongThreshold(t float64) Option {
	return func(m *Matcher) { m.long = t }
}

// WithLengthCutoff sets the line length (in bytes of normalised text) that
// separates short lines from long ones. Default: 50.
func WithLengthCutoff(n int) Option {
	return func(m *Matcher) { m.cutoff = n }
}

// Matcher bundles the configured thresholds. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	substring float64
	short     float64
	long      float64
	cutoff    int
}

// NewMatcher returns a [Matcher] configured with opts on top of the defaults.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		substring: defaultSubstringThreshold,
		short:     defaultShortThreshold,
		long:      defaultLongThreshold,
		cutoff:    defaultLengthCutoff,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Threshold returns the full-match threshold for a line of the given length.
// Edit-distance ratios punish short strings harder, so short lines get the
// stricter threshold.
func (m *Matcher) Threshold(length int) float64 {
	if length > m.cutoff {
		return m.long
	}
	return m.short
}

// SubstringThreshold returns the configured substring threshold.
func (m *Matcher) SubstringThreshold() float64 { return m.substring }

// Contains reports whether line plausibly contains fragment as a sub-span.
func (m *Matcher) Contains(line, fragment string) bool {
	return IsPlausibleSubstring(line, fragment, m.substring)
}

// Matches reports whether text fully matches line at the threshold chosen
// by line's own length.
func (m *Matcher) Matches(line, text string) bool {
	return IsMatch(line, text, m.Threshold(len(line)))
}
