package utils

import (
	"strings"
	"sync"
)

// URLSet remembers listing links already handled. Links are compared after
// trimming surrounding whitespace, so values read back from a dataset match
// freshly scraped ones. Safe for concurrent use.
type URLSet struct {
	mu    sync.Mutex
	links map[string]bool
}

func NewURLSet(seed ...string) *URLSet {
	s := &URLSet{links: make(map[string]bool, len(seed))}
	for _, link := range seed {
		if key := strings.TrimSpace(link); key != "" {
			s.links[key] = true
		}
	}
	return s
}

// Add records link and reports whether it was new.
func (s *URLSet) Add(link string) bool {
	key := strings.TrimSpace(link)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.links[key] {
		return false
	}
	s.links[key] = true
	return true
}

func (s *URLSet) Contains(link string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links[strings.TrimSpace(link)]
}

func (s *URLSet) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links)
}
