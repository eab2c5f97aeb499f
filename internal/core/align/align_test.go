package align

import (
	"errors"
	"testing"

	"github.com/agenthands/kgcomplete/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsNonInjectiveEntitySeeds(t *testing.T) {
	_, err := New(model.EntitySeeds{{From: 1, To: 10}, {From: 1, To: 11}}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlignmentConflict))
	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "entity", ce.Kind)
	assert.False(t, ce.Inverse)
	assert.Equal(t, uint64(1), ce.Key)
}

func TestNew_RejectsConflictOnlyVisibleWhenInverted(t *testing.T) {
	// Two source relations share one target relation.
	_, err := New(nil, model.RelationSeeds{{From: 1, To: 5}, {From: 2, To: 5}})

	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "relation", ce.Kind)
	assert.True(t, ce.Inverse)
	assert.Equal(t, uint64(5), ce.Key)
}

func TestNew_AcceptsRepeatedIdenticalPairs(t *testing.T) {
	a, err := New(model.EntitySeeds{{From: 1, To: 10}, {From: 1, To: 10}}, nil)

	require.NoError(t, err)
	assert.Len(t, a.Entities, 1)
}

func TestInverse(t *testing.T) {
	a, err := New(model.EntitySeeds{{From: 1, To: 10}}, model.RelationSeeds{{From: 3, To: 30}})
	require.NoError(t, err)

	inv, err := a.Inverse()
	require.NoError(t, err)

	assert.Equal(t, map[model.EntityID]model.EntityID{10: 1}, inv.Entities)
	assert.Equal(t, map[model.RelationID]model.RelationID{30: 3}, inv.Relations)

	back, err := inv.Inverse()
	require.NoError(t, err)
	assert.Equal(t, a.Entities, back.Entities)
}

func TestProject(t *testing.T) {
	a, err := New(
		model.EntitySeeds{{From: 1, To: 11}, {From: 2, To: 12}, {From: 3, To: 13}},
		model.RelationSeeds{{From: 7, To: 17}},
	)
	require.NoError(t, err)
	from := []model.Triple{{Head: 1, Tail: 2, Relation: 7}, {Head: 2, Tail: 3, Relation: 7}}
	to := model.NewTripleSet(model.Triple{Head: 12, Tail: 13, Relation: 17})

	got := Project(from, to, a)

	assert.Equal(t, map[model.Triple]float64{{Head: 11, Tail: 12, Relation: 17}: 1.0}, map[model.Triple]float64(got))
}

func TestProject_SkipsUnmapped(t *testing.T) {
	a, err := New(model.EntitySeeds{{From: 6, To: 16}}, model.RelationSeeds{{From: 3, To: 13}})
	require.NoError(t, err)

	got := Project([]model.Triple{{Head: 5, Tail: 6, Relation: 3}}, model.NewTripleSet(), a)

	assert.Empty(t, got)
}

func TestProject_Idempotent(t *testing.T) {
	a, err := New(
		model.EntitySeeds{{From: 1, To: 11}, {From: 2, To: 12}},
		model.RelationSeeds{{From: 7, To: 17}, {From: 8, To: 18}},
	)
	require.NoError(t, err)
	from := []model.Triple{{Head: 1, Tail: 2, Relation: 7}, {Head: 2, Tail: 1, Relation: 8}}
	to := model.NewTripleSet()

	first := Project(from, to, a)
	require.Len(t, first, 2)

	second := Project(from, to.Union(first.Triples()), a)
	assert.Empty(t, second)
}
