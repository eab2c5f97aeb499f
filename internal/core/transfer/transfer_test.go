package transfer

import (
	"testing"

	"github.com/agenthands/kgcomplete/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func single(body, head model.RelationID, conf float64) model.Rule {
	return model.Rule{
		Premises:   []model.Pattern{{Head: "a", Tail: "b", Relation: body}},
		Hypothesis: model.Pattern{Head: "a", Tail: "b", Relation: head},
		Confidence: conf,
	}
}

func chain(first, second, head model.RelationID, conf float64) model.Rule {
	return model.Rule{
		Premises: []model.Pattern{
			{Head: "a", Tail: "b", Relation: first},
			{Head: "b", Tail: "c", Relation: second},
		},
		Hypothesis: model.Pattern{Head: "a", Tail: "c", Relation: head},
		Confidence: conf,
	}
}

func TestTransfer_SkipsRuleAlreadyKnown(t *testing.T) {
	r2r := map[model.RelationID]model.RelationID{1: 5, 2: 6}

	got, stats := NewTransferer(nil).Transfer(
		[]model.Rule{single(1, 2, 0.8)},
		[]model.Rule{single(5, 6, 0.1)},
		r2r,
	)

	assert.Empty(t, got)
	assert.Equal(t, Stats{Considered: 1, Known: 1}, stats)
}

func TestTransfer_SubstitutesAndCarriesConfidence(t *testing.T) {
	r2r := map[model.RelationID]model.RelationID{1: 5, 2: 6}

	got, stats := NewTransferer(CarryOver{}).Transfer([]model.Rule{single(1, 2, 0.8)}, nil, r2r)

	require.Len(t, got, 1)
	assert.Equal(t, single(5, 6, 0.8), got[0])
	assert.Equal(t, 1, stats.Accepted)
}

func TestTransfer_DropsInfeasible(t *testing.T) {
	r2r := map[model.RelationID]model.RelationID{1: 5}

	got, stats := NewTransferer(nil).Transfer([]model.Rule{single(1, 2, 0.8), chain(2, 1, 1, 0.3)}, nil, r2r)

	assert.Empty(t, got)
	assert.Equal(t, 2, stats.Infeasible)
}

func TestTransfer_SwappedPremisesCountAsKnown(t *testing.T) {
	r2r := map[model.RelationID]model.RelationID{1: 11, 2: 12, 3: 13}
	from := chain(1, 2, 3, 0.7)
	existing := model.Rule{
		Premises:   []model.Pattern{from.Premises[1], from.Premises[0]},
		Hypothesis: from.Hypothesis,
		Confidence: 0.2,
	}
	for i := range existing.Premises {
		existing.Premises[i].Relation = r2r[existing.Premises[i].Relation]
	}
	existing.Hypothesis.Relation = 13

	got, stats := NewTransferer(nil).Transfer([]model.Rule{from}, []model.Rule{existing}, r2r)

	assert.Empty(t, got)
	assert.Equal(t, 1, stats.Known)
}

func TestTransfer_DoesNotMutateInput(t *testing.T) {
	r2r := map[model.RelationID]model.RelationID{1: 11, 2: 12, 3: 13}
	from := []model.Rule{chain(1, 2, 3, 0.7)}

	got, _ := NewTransferer(nil).Transfer(from, nil, r2r)

	require.Len(t, got, 1)
	assert.Equal(t, model.RelationID(1), from[0].Premises[0].Relation)
	assert.Equal(t, model.RelationID(11), got[0].Premises[0].Relation)
}

func TestTransfer_MergesDuplicatesKeepingMaximum(t *testing.T) {
	// Relations 1 and 4 both map to 11, so two source rules collapse into one.
	r2r := map[model.RelationID]model.RelationID{1: 11, 4: 11, 2: 12}

	got, stats := NewTransferer(nil).Transfer([]model.Rule{single(1, 2, 0.4), single(4, 2, 0.9)}, nil, r2r)

	require.Len(t, got, 1)
	assert.Equal(t, 0.9, got[0].Confidence)
	assert.Equal(t, 1, stats.Accepted)
}

func TestTransfer_DiscountPolicy(t *testing.T) {
	r2r := map[model.RelationID]model.RelationID{1: 5, 2: 6}
	policy, err := PolicyFor("discount", 0.5)
	require.NoError(t, err)

	got, _ := NewTransferer(policy).Transfer([]model.Rule{single(1, 2, 0.8)}, nil, r2r)

	require.Len(t, got, 1)
	assert.InDelta(t, 0.4, got[0].Confidence, 1e-12)
}

func TestPolicyFor(t *testing.T) {
	p, err := PolicyFor("", 0)
	require.NoError(t, err)
	assert.Equal(t, "carry", p.Name())

	_, err = PolicyFor("discount", 1.5)
	assert.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = PolicyFor("discount", 0)
	assert.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = PolicyFor("average", 1)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}
