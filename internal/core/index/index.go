// Package index provides an in-memory view over one graph's triples that
// answers partially bound (head, tail, relation) patterns without scanning
// the whole graph.
package index

import (
	"iter"

	"github.com/agenthands/kgcomplete/internal/core/model"
)

type headRel struct {
	head     model.EntityID
	relation model.RelationID
}

type relTail struct {
	relation model.RelationID
	tail     model.EntityID
}

// Index is built once over a fixed triple set and is read-only afterwards.
// It is safe for concurrent readers.
type Index struct {
	triples    model.TripleSet
	byRelation map[model.RelationID][]model.Triple
	tailsOf    map[headRel][]model.EntityID
	headsOf    map[relTail][]model.EntityID
}

// Build indexes triples by relation, by (head, relation) and by
// (relation, tail). Duplicate triples collapse.
func Build(triples []model.Triple) *Index {
	ix := &Index{
		triples:    make(model.TripleSet, len(triples)),
		byRelation: make(map[model.RelationID][]model.Triple),
		tailsOf:    make(map[headRel][]model.EntityID),
		headsOf:    make(map[relTail][]model.EntityID),
	}
	for _, t := range triples {
		if ix.triples.Contains(t) {
			continue
		}
		ix.triples.Add(t)
		ix.byRelation[t.Relation] = append(ix.byRelation[t.Relation], t)
		hr := headRel{head: t.Head, relation: t.Relation}
		ix.tailsOf[hr] = append(ix.tailsOf[hr], t.Tail)
		rt := relTail{relation: t.Relation, tail: t.Tail}
		ix.headsOf[rt] = append(ix.headsOf[rt], t.Head)
	}
	return ix
}

// Len returns the number of distinct triples indexed.
func (ix *Index) Len() int {
	return len(ix.triples)
}

func (ix *Index) Contains(t model.Triple) bool {
	return ix.triples.Contains(t)
}

// Count returns how many triples carry relation r.
func (ix *Index) Count(r model.RelationID) int {
	return len(ix.byRelation[r])
}

// Tails returns the tails of every triple (head, ?, r).
func (ix *Index) Tails(head model.EntityID, r model.RelationID) []model.EntityID {
	return ix.tailsOf[headRel{head: head, relation: r}]
}

// Heads returns the heads of every triple (?, tail, r).
func (ix *Index) Heads(r model.RelationID, tail model.EntityID) []model.EntityID {
	return ix.headsOf[relTail{relation: r, tail: tail}]
}

// Match yields every extension of b under which p is satisfied by an
// indexed triple. Endpoints already bound in b must agree with the triple.
// The returned sequence holds no cursor state: each range over it starts
// from the beginning. b is never modified.
func (ix *Index) Match(p model.Pattern, b Binding) iter.Seq[Binding] {
	return func(yield func(Binding) bool) {
		head, headBound := b[p.Head]
		tail, tailBound := b[p.Tail]
		switch {
		case headBound && tailBound:
			t := model.Triple{Head: head, Tail: tail, Relation: p.Relation}
			if ix.triples.Contains(t) {
				yield(b)
			}

		case headBound:
			for _, t := range ix.Tails(head, p.Relation) {
				if !yield(b.With(p.Tail, t)) {
					return
				}
			}

		case tailBound:
			for _, h := range ix.Heads(p.Relation, tail) {
				if !yield(b.With(p.Head, h)) {
					return
				}
			}

		default:
			for _, t := range ix.byRelation[p.Relation] {
				if p.Head == p.Tail {
					if t.Head != t.Tail {
						continue
					}
					if !yield(b.With(p.Head, t.Head)) {
						return
					}
					continue
				}
				if !yield(b.With(p.Head, t.Head).With(p.Tail, t.Tail)) {
					return
				}
			}
		}
	}
}
