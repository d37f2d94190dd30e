package index

import (
	"github.com/blevesearch/bleve/v2"
)

// ReaderSnapshot is an acquired handle on one index, counted by the Pool
// until it is released; a handle can be released once. It wraps the live
// index, not a frozen view: searches through it see every commit applied
// to the index, including commits made after the handle was acquired.
type ReaderSnapshot struct {
	index    string
	gen      uint64
	idx      bleve.Index
	released bool
}

// Index returns the underlying searchable view
func (s *ReaderSnapshot) Index() bleve.Index {
	return s.idx
}

// Name returns the owning index name
func (s *ReaderSnapshot) Name() string {
	return s.index
}

// Generation returns the refresh generation the snapshot was acquired at
func (s *ReaderSnapshot) Generation() uint64 {
	return s.gen
}
