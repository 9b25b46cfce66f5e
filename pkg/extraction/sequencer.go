package extraction

// Sequencer repairs ordinal continuity for one extractor run. Parsed ordinals
// that are missing, non-positive, or not strictly greater than the last
// assigned ordinal for the same role class are replaced with last+1;
// well-formed ordinals are accepted as-is and advance the counter. The result
// is a monotonically increasing, gap-tolerant sequence per role class even
// when the upstream table or line parsing is noisy.
type Sequencer struct {
	last map[RoleClass]int
}

// NewSequencer creates a Sequencer with all counters at zero.
func NewSequencer() *Sequencer {
	return &Sequencer{last: make(map[RoleClass]int)}
}

// Next returns the repaired ordinal for a row of the given role class.
// Pass parsed <= 0 when the source ordinal was absent or non-numeric.
func (s *Sequencer) Next(class RoleClass, parsed int) int {
	current := s.last[class]
	if parsed <= current {
		current++
		s.last[class] = current
		return current
	}
	s.last[class] = parsed
	return parsed
}
