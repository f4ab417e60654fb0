package domain

import "log"

// SeenKey identifies one report thread for notification purposes: the
// reported user plus the signature timestamp of the report.
type SeenKey struct {
	Defendant string
	Timestamp string
}

// SeenSet is a bounded FIFO set of report threads already acted upon. It
// keeps the notifier from answering the same thread twice across polling
// cycles; once the set exceeds its capacity the oldest entry is evicted.
// Held in memory only, so it resets on process restart.
type SeenSet struct {
	capacity int
	keys     []SeenKey
}

// NewSeenSet creates a SeenSet holding at most capacity keys.
func NewSeenSet(capacity int) *SeenSet {
	if capacity <= 0 {
		capacity = 1
	}
	return &SeenSet{capacity: capacity}
}

// Contains reports whether the key was recorded and not yet evicted.
func (s *SeenSet) Contains(key SeenKey) bool {
	for _, k := range s.keys {
		if k == key {
			return true
		}
	}
	return false
}

// Record adds a key, evicting the oldest entries beyond capacity.
func (s *SeenSet) Record(key SeenKey) {
	s.keys = append(s.keys, key)
	for len(s.keys) > s.capacity {
		log.Printf("dropping %s from the list of seen defendants", s.keys[0].Defendant)
		s.keys = s.keys[1:]
	}
}

// Len returns the number of recorded keys.
func (s *SeenSet) Len() int {
	return len(s.keys)
}
