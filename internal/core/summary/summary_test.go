package summary

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/kgcomplete/internal/core"
	"github.com/agenthands/kgcomplete/internal/core/dedupe"
	"github.com/agenthands/kgcomplete/internal/core/model"
)

var enVocab = &model.Vocabulary{
	Entities:  map[model.EntityID]string{1: "Paris", 2: "France", 3: "Lyon"},
	Relations: map[model.RelationID]string{1: "capital_of", 2: "city_of"},
}

func sampleResult() *core.Result {
	return &core.Result{
		Source: &core.GraphState{Language: "fr"},
		Target: &core.GraphState{Language: "en", Vocab: enVocab},
		Report: &core.Report{
			RunID: "run-1",
			Pair:  "fr_en",
			Ratio: 0.3,
			Stages: []*core.StageReport{
				{
					Stage: core.StageAlignedEntities,
					Triples: map[model.Side]dedupe.ConfidenceMap{
						model.Target: {
							{Head: 1, Tail: 2, Relation: 1}: 1,
							{Head: 3, Tail: 2, Relation: 2}: 1,
							{Head: 3, Tail: 9, Relation: 2}: 1,
						},
					},
				},
				{
					Stage: core.StageRuleTransfer,
					Rules: map[model.Side][]model.Rule{
						model.Target: {{
							Premises:   []model.Pattern{{Head: "?a", Tail: "?b", Relation: 1}},
							Hypothesis: model.Pattern{Head: "?a", Tail: "?b", Relation: 2},
							Confidence: 0.8,
						}},
					},
				},
			},
		},
	}
}

func TestSummarize_Counts(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := NewSummarizer(2, logger)

	sum := s.Summarize(sampleResult())

	require.Len(t, sum.Stages, 2)
	assert.Equal(t, "run-1", sum.RunID)

	aligned := sum.Stages[0]
	assert.Equal(t, "triple", aligned.Kind)
	assert.Equal(t, 0, aligned.Counts[model.Source])
	assert.Equal(t, 3, aligned.Counts[model.Target])
	assert.Empty(t, aligned.Samples[model.Source])
	assert.Len(t, aligned.Samples[model.Target], 2)

	transferred := sum.Stages[1]
	assert.Equal(t, "rule", transferred.Kind)
	assert.Equal(t, 1, transferred.Counts[model.Target])
	assert.Equal(t, []string{"?a capital_of ?b  =>  ?a city_of ?b  0.8"}, transferred.Samples[model.Target])

	var counts, samples []string
	for _, e := range hook.AllEntries() {
		require.Equal(t, log.InfoLevel, e.Level)
		if _, ok := e.Data["side"]; ok {
			samples = append(samples, e.Message)
		} else {
			counts = append(counts, e.Message)
		}
	}
	assert.Equal(t, []string{
		"sr new triple numbers: 0",
		"tg new triple numbers: 3",
		"sr new rule numbers: 0",
		"tg new rule numbers: 1",
	}, counts)
	// Samples are visible at the default level: two triples and one rule.
	assert.Len(t, samples, 3)
	assert.Contains(t, samples, "?a capital_of ?b  =>  ?a city_of ?b  0.8")
}

func TestSummarize_SamplesAreDistinct(t *testing.T) {
	s := NewSummarizer(10, nil)

	sum := s.Summarize(sampleResult())

	samples := sum.Stages[0].Samples[model.Target]
	assert.ElementsMatch(t, []string{
		"Paris capital_of France 1",
		"Lyon city_of France 1",
		"Lyon city_of #9 1",
	}, samples)
}

func TestSummarize_ZeroSampleSize(t *testing.T) {
	sum := NewSummarizer(0, nil).Summarize(sampleResult())

	for _, ss := range sum.Stages {
		for _, side := range model.Sides {
			assert.Empty(t, ss.Samples[side])
		}
	}
}

func TestFormatTriple_MissingVocabulary(t *testing.T) {
	got := FormatTriple(model.Triple{Head: 4, Tail: 5, Relation: 6}, 0.5, nil)

	assert.Equal(t, "#4 #6 #5 0.5", got)
}

func TestFormatRule_TwoPremises(t *testing.T) {
	r := model.Rule{
		Premises: []model.Pattern{
			{Head: "?a", Tail: "?b", Relation: 1},
			{Head: "?b", Tail: "?c", Relation: 2},
		},
		Hypothesis: model.Pattern{Head: "?a", Tail: "?c", Relation: 2},
		Confidence: 0.25,
	}

	assert.Equal(t, "?a capital_of ?b  ?b city_of ?c  =>  ?a city_of ?c  0.25", FormatRule(r, enVocab))
}
