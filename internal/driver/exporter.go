package driver

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/agenthands/kgcomplete/internal/core"
	"github.com/agenthands/kgcomplete/internal/core/model"
	"github.com/agenthands/kgcomplete/internal/core/summary"
)

const DefaultBatchSize = 1000

// Exporter writes the final graphs of a run to a GraphDriver.
type Exporter struct {
	Driver    GraphDriver
	BatchSize int
	Logger    log.FieldLogger
}

func NewExporter(d GraphDriver, batchSize int, logger log.FieldLogger) *Exporter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Exporter{Driver: d, BatchSize: batchSize, Logger: logger}
}

// ExportStats counts the rows sent per side.
type ExportStats struct {
	Entities map[model.Side]int
	Triples  map[model.Side]int
	Rules    map[model.Side]int
}

// GraphKey names the exported graph of one side of a pair.
func GraphKey(pair string, side model.Side) string {
	return pair + "/" + string(side)
}

// Export writes the run node, then for each side its entities, its scored
// triples and its rules. Writes are MERGEs, so exporting a run twice is
// harmless.
func (e *Exporter) Export(ctx context.Context, res *core.Result) (ExportStats, error) {
	stats := ExportStats{
		Entities: map[model.Side]int{},
		Triples:  map[model.Side]int{},
		Rules:    map[model.Side]int{},
	}
	rep := res.Report
	if err := e.Driver.BuildIndices(ctx); err != nil {
		return stats, err
	}
	_, err := e.Driver.ExecuteQuery(ctx, SaveRunQuery, map[string]any{
		"run_id":      rep.RunID,
		"pair":        rep.Pair,
		"ratio":       rep.Ratio,
		"started_at":  rep.StartedAt.UTC().Format(time.RFC3339),
		"duration_ms": rep.Duration.Milliseconds(),
	})
	if err != nil {
		return stats, fmt.Errorf("failed to save run %s: %w", rep.RunID, err)
	}

	for _, side := range model.Sides {
		g := res.Graph(side)
		base := map[string]any{
			"graph":    GraphKey(rep.Pair, side),
			"language": g.Language,
			"run_id":   rep.RunID,
		}
		scored := res.Scored(side)

		entities := entityRows(scored, g.Vocab)
		if err := e.batched(ctx, SaveEntitiesQuery, base, entities); err != nil {
			return stats, fmt.Errorf("failed to save %s entities: %w", side, err)
		}
		stats.Entities[side] = len(entities)

		triples := tripleRows(scored, g.Vocab)
		if err := e.batched(ctx, SaveTriplesQuery, base, triples); err != nil {
			return stats, fmt.Errorf("failed to save %s triples: %w", side, err)
		}
		stats.Triples[side] = len(triples)

		rules := ruleRows(g.Rules, transferredKeys(rep, side), g.Vocab)
		if err := e.batched(ctx, SaveRulesQuery, base, rules); err != nil {
			return stats, fmt.Errorf("failed to save %s rules: %w", side, err)
		}
		stats.Rules[side] = len(rules)

		e.Logger.WithFields(log.Fields{
			"run_id":   rep.RunID,
			"graph":    base["graph"],
			"entities": len(entities),
			"triples":  len(triples),
			"rules":    len(rules),
		}).Info("exported graph")
	}
	return stats, nil
}

func (e *Exporter) batched(ctx context.Context, query string, base map[string]any, rows []map[string]any) error {
	for start := 0; start < len(rows); start += e.BatchSize {
		end := min(start+e.BatchSize, len(rows))
		params := make(map[string]any, len(base)+1)
		for k, v := range base {
			params[k] = v
		}
		params["rows"] = rows[start:end]
		if _, err := e.Driver.ExecuteQuery(ctx, query, params); err != nil {
			return err
		}
	}
	return nil
}

func entityRows(scored []core.ScoredTriple, vocab *model.Vocabulary) []map[string]any {
	seen := make(map[model.EntityID]bool)
	var rows []map[string]any
	add := func(id model.EntityID) {
		if seen[id] {
			return
		}
		seen[id] = true
		rows = append(rows, map[string]any{"id": int64(id), "name": vocab.EntityName(id)})
	}
	for _, st := range scored {
		add(st.Head)
		add(st.Tail)
	}
	return rows
}

func tripleRows(scored []core.ScoredTriple, vocab *model.Vocabulary) []map[string]any {
	rows := make([]map[string]any, 0, len(scored))
	for _, st := range scored {
		rows = append(rows, map[string]any{
			"head":       int64(st.Head),
			"tail":       int64(st.Tail),
			"relation":   int64(st.Relation),
			"name":       vocab.RelationName(st.Relation),
			"confidence": st.Confidence,
			"provenance": st.Provenance,
		})
	}
	return rows
}

func transferredKeys(rep *core.Report, side model.Side) map[model.RuleKey]bool {
	keys := make(map[model.RuleKey]bool)
	if st := rep.Stage(core.StageRuleTransfer); st != nil {
		for _, r := range st.Rules[side] {
			keys[r.Key()] = true
		}
	}
	return keys
}

func ruleRows(rs []model.Rule, transferred map[model.RuleKey]bool, vocab *model.Vocabulary) []map[string]any {
	rows := make([]map[string]any, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, map[string]any{
			"key":         string(r.Key()),
			"text":        summary.FormatRule(r, vocab),
			"confidence":  r.Confidence,
			"transferred": transferred[r.Key()],
		})
	}
	return rows
}
