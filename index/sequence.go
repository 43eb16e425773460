package index

import "slices"

// sequence is an ordered slice of entries plus a path lookup. The slice is
// kept sorted by whatever comparator the caller passes; positions are found
// by binary search on the stored entry.
type sequence struct {
	entries []Entry
	byPath  map[string]Entry
}

func newSequence() sequence {
	return sequence{byPath: make(map[string]Entry)}
}

func (s *sequence) len() int {
	return len(s.entries)
}

func (s *sequence) contains(path string) bool {
	_, ok := s.byPath[path]
	return ok
}

func (s *sequence) indexOf(path string, cmp compareFunc) int {
	e, ok := s.byPath[path]
	if !ok {
		return -1
	}
	i, found := slices.BinarySearchFunc(s.entries, e, cmp)
	if !found {
		return -1
	}
	return i
}

func (s *sequence) at(i int) (Entry, bool) {
	if i < 0 || i >= len(s.entries) {
		return Entry{}, false
	}
	return s.entries[i], true
}

// insert places e at its sorted position and returns that position.
func (s *sequence) insert(e Entry, cmp compareFunc) int {
	i, _ := slices.BinarySearchFunc(s.entries, e, cmp)
	s.entries = slices.Insert(s.entries, i, e)
	s.byPath[e.Path] = e
	return i
}

func (s *sequence) removeAt(i int) Entry {
	e := s.entries[i]
	s.entries = slices.Delete(s.entries, i, i+1)
	delete(s.byPath, e.Path)
	return e
}

// reset replaces the contents with entries, which must already be sorted.
func (s *sequence) reset(entries []Entry) {
	s.entries = entries
	s.byPath = make(map[string]Entry, len(entries))
	for _, e := range entries {
		s.byPath[e.Path] = e
	}
}

func (s *sequence) sort(cmp compareFunc) {
	slices.SortStableFunc(s.entries, cmp)
}

func (s *sequence) clone() []Entry {
	return slices.Clone(s.entries)
}
