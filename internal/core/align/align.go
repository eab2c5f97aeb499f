// Package align projects triples between two graphs through seed alignments
// of their entities and relations.
package align

import (
	"errors"
	"fmt"

	"github.com/agenthands/kgcomplete/internal/core/common"
	"github.com/agenthands/kgcomplete/internal/core/dedupe"
	"github.com/agenthands/kgcomplete/internal/core/model"
)

// ProjectedConfidence is the confidence of every alignment-derived triple.
const ProjectedConfidence = 1.0

var ErrAlignmentConflict = errors.New("alignment is not injective")

// ConflictError names the id that maps to two different ids.
type ConflictError struct {
	Kind    string // "entity" or "relation"
	Inverse bool
	Key     uint64
	First   uint64
	Second  uint64
}

func (e *ConflictError) Error() string {
	dir := "forward"
	if e.Inverse {
		dir = "inverse"
	}
	return fmt.Sprintf("%s seeds (%s): id %d maps to both %d and %d", e.Kind, dir, e.Key, e.First, e.Second)
}

func (e *ConflictError) Unwrap() error {
	return ErrAlignmentConflict
}

// Alignment maps ids of one graph onto the other. Both maps are injective.
type Alignment struct {
	Entities  map[model.EntityID]model.EntityID
	Relations map[model.RelationID]model.RelationID

	entitySeeds   model.EntitySeeds
	relationSeeds model.RelationSeeds
	inverse       bool
}

// New builds the source to target alignment and checks that it can be
// inverted, so both directions are known to be consistent before any
// projection runs.
func New(entities model.EntitySeeds, relations model.RelationSeeds) (*Alignment, error) {
	a, err := build(entities, relations, false)
	if err != nil {
		return nil, err
	}
	if _, err := a.Inverse(); err != nil {
		return nil, err
	}
	return a, nil
}

// Inverse returns the target to source alignment.
func (a *Alignment) Inverse() (*Alignment, error) {
	return build(model.Invert(a.entitySeeds), model.Invert(a.relationSeeds), !a.inverse)
}

func build(entities model.EntitySeeds, relations model.RelationSeeds, inverse bool) (*Alignment, error) {
	e2e, conflict := common.StrictMap(entities)
	if conflict != nil {
		return nil, &ConflictError{Kind: "entity", Inverse: inverse,
			Key: uint64(conflict.Key), First: uint64(conflict.First), Second: uint64(conflict.Second)}
	}
	r2r, rconflict := common.StrictMap(relations)
	if rconflict != nil {
		return nil, &ConflictError{Kind: "relation", Inverse: inverse,
			Key: uint64(rconflict.Key), First: uint64(rconflict.First), Second: uint64(rconflict.Second)}
	}
	return &Alignment{
		Entities:      e2e,
		Relations:     r2r,
		entitySeeds:   entities,
		relationSeeds: relations,
		inverse:       inverse,
	}, nil
}

// Image maps t into the other graph. It reports false when the head, the
// tail or the relation has no aligned counterpart.
func (a *Alignment) Image(t model.Triple) (model.Triple, bool) {
	head, ok := a.Entities[t.Head]
	if !ok {
		return model.Triple{}, false
	}
	tail, ok := a.Entities[t.Tail]
	if !ok {
		return model.Triple{}, false
	}
	rel, ok := a.Relations[t.Relation]
	if !ok {
		return model.Triple{}, false
	}
	return model.Triple{Head: head, Tail: tail, Relation: rel}, true
}

// Project maps every triple of from through a and returns the images not
// already in to, each with ProjectedConfidence. Triples with an unmapped
// endpoint or relation are skipped.
func Project(from []model.Triple, to model.TripleSet, a *Alignment) dedupe.ConfidenceMap {
	agg := dedupe.NewAggregator(to)
	for _, t := range from {
		if img, ok := a.Image(t); ok {
			agg.Observe(img, ProjectedConfidence)
		}
	}
	return agg.Result()
}
