package ingest

import "sync"

// Seen remembers content hashes so a watched file is ingested once per process.
type Seen struct {
	mu     sync.Mutex
	hashes map[string]struct{}
}

func NewSeen() *Seen {
	return &Seen{hashes: make(map[string]struct{})}
}

// Mark records hash and reports whether it was new.
func (s *Seen) Mark(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hashes[hash]; ok {
		return false
	}
	s.hashes[hash] = struct{}{}
	return true
}

// Forget drops hash so a failed file can be retried.
func (s *Seen) Forget(hash string) {
	s.mu.Lock()
	delete(s.hashes, hash)
	s.mu.Unlock()
}
