package session

import "sync"

// Sequence is the 8-bit MSG sequence counter of one link session.
type Sequence struct {
	mu    sync.Mutex
	value uint8
}

// Next advances the counter, wrapping 255 -> 0, and returns the new value.
func (s *Sequence) Next() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value++
	return s.value
}

// Reset is applied on every offline -> online transition.
func (s *Sequence) Reset() {
	s.Set(0)
}

func (s *Sequence) Set(v uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
}
