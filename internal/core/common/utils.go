package common

import "github.com/agenthands/kgcomplete/internal/core/model"

// Conflict describes a key that a set of pairs maps to two different values.
type Conflict[T model.ID] struct {
	Key    T
	First  T
	Second T
}

// StrictMap converts pairs into a map keyed by From. Pairs are a set, so
// exact duplicates collapse. If one key maps to two different values, the
// first such key is returned as a conflict and the map is nil.
func StrictMap[T model.ID](pairs []model.Pair[T]) (map[T]T, *Conflict[T]) {
	m := make(map[T]T, len(pairs))
	for _, p := range pairs {
		if prev, ok := m[p.From]; ok && prev != p.To {
			return nil, &Conflict[T]{Key: p.From, First: prev, Second: p.To}
		}
		m[p.From] = p.To
	}
	return m, nil
}
