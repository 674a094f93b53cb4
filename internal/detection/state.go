package detection

import "time"

// State is the single "currently held" slot. The zero value is Idle. A State
// belongs to one processing loop and is passed to Process by pointer; it is
// not safe for concurrent use.
type State struct {
	label   string
	at      time.Time
	holding bool
}

// Holding reports the held label and the time it was last accepted. ok is
// false while the state is Idle.
func (s *State) Holding() (label string, at time.Time, ok bool) {
	if s == nil || !s.holding {
		return "", time.Time{}, false
	}
	return s.label, s.at, true
}

// Reset returns the state to Idle.
func (s *State) Reset() {
	*s = State{}
}

func (s *State) hold(label string, at time.Time) {
	s.label = label
	s.at = at
	s.holding = true
}
