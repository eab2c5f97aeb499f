package model

// ID is the constraint satisfied by both id kinds.
type ID interface {
	~uint64
}

// Pair is one seed alignment: From in the source graph corresponds to To in
// the target graph.
type Pair[T ID] struct {
	From T `json:"from"`
	To   T `json:"to"`
}

// Invert swaps the components of every pair.
func Invert[T ID](pairs []Pair[T]) []Pair[T] {
	out := make([]Pair[T], len(pairs))
	for i, p := range pairs {
		out[i] = Pair[T]{From: p.To, To: p.From}
	}
	return out
}

type EntitySeeds = []Pair[EntityID]

type RelationSeeds = []Pair[RelationID]
