package model

import (
	"fmt"
	"sort"
)

// EntityID identifies an entity within one graph's vocabulary. Ids carry no
// meaning across graphs except through an explicit alignment.
type EntityID uint64

// RelationID identifies a relation within one graph's vocabulary.
type RelationID uint64

// Triple is a directed labeled edge. It is a comparable value and can be used
// directly as a map key.
type Triple struct {
	Head     EntityID   `json:"head"`
	Tail     EntityID   `json:"tail"`
	Relation RelationID `json:"relation"`
}

func (t Triple) String() string {
	return fmt.Sprintf("(%d, %d, %d)", t.Head, t.Tail, t.Relation)
}

// Less orders triples by relation, then head, then tail.
func (t Triple) Less(o Triple) bool {
	if t.Relation != o.Relation {
		return t.Relation < o.Relation
	}
	if t.Head != o.Head {
		return t.Head < o.Head
	}
	return t.Tail < o.Tail
}

// TripleSet is a set of triples. Duplicates collapse.
type TripleSet map[Triple]struct{}

func NewTripleSet(triples ...Triple) TripleSet {
	s := make(TripleSet, len(triples))
	for _, t := range triples {
		s[t] = struct{}{}
	}
	return s
}

func (s TripleSet) Add(t Triple) {
	s[t] = struct{}{}
}

func (s TripleSet) Contains(t Triple) bool {
	_, ok := s[t]
	return ok
}

func (s TripleSet) Len() int {
	return len(s)
}

// Clone returns an independent copy of s.
func (s TripleSet) Clone() TripleSet {
	c := make(TripleSet, len(s))
	for t := range s {
		c[t] = struct{}{}
	}
	return c
}

// Union returns a new set holding the triples of s and every triple in extra.
// Neither input is modified.
func (s TripleSet) Union(extra []Triple) TripleSet {
	u := make(TripleSet, len(s)+len(extra))
	for t := range s {
		u[t] = struct{}{}
	}
	for _, t := range extra {
		u[t] = struct{}{}
	}
	return u
}

// Sorted returns the triples of s in Triple.Less order.
func (s TripleSet) Sorted() []Triple {
	out := make([]Triple, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	SortTriples(out)
	return out
}

func SortTriples(triples []Triple) {
	sort.Slice(triples, func(i, j int) bool {
		return triples[i].Less(triples[j])
	})
}
