package crawl

import "sync"

// VisitedURLStore remembers which URLs were already scheduled.
type VisitedURLStore struct {
	urls map[string]bool
	mu   sync.Mutex
}

func NewVisitedURLStore() *VisitedURLStore {
	return &VisitedURLStore{
		urls: make(map[string]bool),
	}
}

// MarkIfNotVisited records url and reports whether it was new.
func (s *VisitedURLStore) MarkIfNotVisited(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.urls[url] {
		return false
	}
	s.urls[url] = true
	return true
}
