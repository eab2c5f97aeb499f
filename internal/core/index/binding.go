package index

import (
	"github.com/agenthands/kgcomplete/internal/core/model"
)

// Binding assigns entities to rule variables. Bindings are treated as
// immutable: With returns a new Binding.
type Binding map[model.Var]model.EntityID

// With returns a copy of b extended with v bound to e.
func (b Binding) With(v model.Var, e model.EntityID) Binding {
	out := make(Binding, len(b)+1)
	for k, val := range b {
		out[k] = val
	}
	out[v] = e
	return out
}

// Resolve substitutes b into p. It reports false if either endpoint is
// unbound.
func (b Binding) Resolve(p model.Pattern) (model.Triple, bool) {
	head, ok := b[p.Head]
	if !ok {
		return model.Triple{}, false
	}
	tail, ok := b[p.Tail]
	if !ok {
		return model.Triple{}, false
	}
	return model.Triple{Head: head, Tail: tail, Relation: p.Relation}, true
}
