package session

import "github.com/freedom_case_2/servicedesk/internal/desk"

// Sequencer orders responses per list. A slow response that arrives
// after a newer one for the same list is discarded.
type Sequencer struct {
	issued  map[desk.Load]uint64
	applied map[desk.Load]uint64
}

func (s *Sequencer) Next(l desk.Load) uint64 {
	if s.issued == nil {
		s.issued = map[desk.Load]uint64{}
	}
	s.issued[l]++
	return s.issued[l]
}

func (s *Sequencer) Apply(l desk.Load, seq uint64) bool {
	if s.applied == nil {
		s.applied = map[desk.Load]uint64{}
	}
	if seq <= s.applied[l] {
		return false
	}
	s.applied[l] = seq
	return true
}
