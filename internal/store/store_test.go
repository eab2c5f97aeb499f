package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/kgcomplete/internal/core"
	"github.com/agenthands/kgcomplete/internal/core/dedupe"
	"github.com/agenthands/kgcomplete/internal/core/model"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func report(id, pair string, started time.Time) *core.Report {
	return &core.Report{
		RunID:     id,
		Pair:      pair,
		Ratio:     0.3,
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
		Stages: []*core.StageReport{
			{
				Stage: core.StageAlignedEntities,
				Triples: map[model.Side]dedupe.ConfidenceMap{
					model.Target: {{Head: 1, Tail: 2, Relation: 1}: 1, {Head: 2, Tail: 1, Relation: 1}: 1},
				},
			},
			{
				Stage: core.StageRuleTransfer,
				Rules: map[model.Side][]model.Rule{model.Source: {{Confidence: 0.5}}},
			},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveRun(ctx, report("run-1", "zh_en", started)))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "zh_en", got.Pair)
	assert.Equal(t, 0.3, got.Ratio)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, int64(1500), got.DurationMS)
	assert.Equal(t, []StageRecord{
		{Stage: core.StageAlignedEntities, Counts: map[model.Side]int{model.Source: 0, model.Target: 2}},
		{Stage: core.StageRuleTransfer, Counts: map[model.Side]int{model.Source: 1, model.Target: 0}},
	}, got.Stages)
}

func TestGetRun_Missing(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.GetRun(context.Background(), "nope")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveRun_Replaces(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	started := time.Now().UTC()

	require.NoError(t, s.SaveRun(ctx, report("run-1", "zh_en", started)))
	rep := report("run-1", "zh_en", started)
	rep.Stages = rep.Stages[:1]
	require.NoError(t, s.SaveRun(ctx, rep))

	runs, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].Stages, 1)
}

func TestListRuns_ByPair(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveRun(ctx, report("b", "zh_en", t0.Add(time.Hour))))
	require.NoError(t, s.SaveRun(ctx, report("a", "zh_en", t0)))
	require.NoError(t, s.SaveRun(ctx, report("c", "fr_en", t0)))

	zh, err := s.ListRuns(ctx, "zh_en")
	require.NoError(t, err)
	require.Len(t, zh, 2)
	assert.Equal(t, "a", zh[0].RunID)
	assert.Equal(t, "b", zh[1].RunID)

	all, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
