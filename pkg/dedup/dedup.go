// Package dedup tracks which image URLs a traversal has already emitted.
package dedup

// Set is the per-run record of emitted URLs. Keys are compared exactly,
// so callers must normalize before asking. A Set is owned by a single
// traversal loop and is not safe for concurrent use.
type Set struct {
	seen map[string]struct{}
}

// New returns an empty Set.
func New() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Seen reports whether url was marked before.
func (s *Set) Seen(url string) bool {
	_, ok := s.seen[url]
	return ok
}

// MarkSeen records url. Marking twice is a no-op.
func (s *Set) MarkSeen(url string) {
	s.seen[url] = struct{}{}
}

// Len returns the number of distinct URLs recorded.
func (s *Set) Len() int {
	return len(s.seen)
}
