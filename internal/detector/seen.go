package detector

// seenSet remembers recently observed signal keys with a bounded
// footprint. When the cap is hit the oldest key is evicted, so a very
// old trade id could in theory be re-admitted, acceptable for a
// window of a thousand entries against poll pages of ~50.
type seenSet struct {
	cap   int
	order []string
	index map[string]struct{}
}

const defaultSeenCap = 1000

func newSeenSet(capacity int) *seenSet {
	if capacity <= 0 {
		capacity = defaultSeenCap
	}
	return &seenSet{
		cap:   capacity,
		order: make([]string, 0, capacity),
		index: make(map[string]struct{}, capacity),
	}
}

// Add records key and reports whether it was new.
func (s *seenSet) Add(key string) bool {
	if key == "" {
		return false
	}
	if _, dup := s.index[key]; dup {
		return false
	}
	if len(s.order) >= s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.index, oldest)
	}
	s.order = append(s.order, key)
	s.index[key] = struct{}{}
	return true
}

// Has reports whether key is currently tracked.
func (s *seenSet) Has(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Len returns the number of tracked keys.
func (s *seenSet) Len() int {
	return len(s.order)
}

// Reset drops all tracked keys.
func (s *seenSet) Reset() {
	s.order = s.order[:0]
	s.index = make(map[string]struct{}, s.cap)
}
