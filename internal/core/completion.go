// Package core runs cross-graph completion over a pair of partially aligned
// knowledge graphs.
//
// A run has three stages, always in this order:
//
//  1. completion_by_aligned_entities projects triples across the entity and
//     relation seed alignment.
//  2. rule_transfer rewrites each graph's mined rules into rules for the
//     other graph.
//  3. rule_based_graph_completion grounds every rule, original and
//     transferred, against the graph grown by stage 1.
//
// Each stage runs once per direction. Both directions read the same
// pre-stage snapshot and their outputs are merged into both graphs only
// after both have finished, so triples and rules only ever grow.
package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/kgcomplete/internal/config"
	"github.com/agenthands/kgcomplete/internal/core/align"
	"github.com/agenthands/kgcomplete/internal/core/dedupe"
	"github.com/agenthands/kgcomplete/internal/core/index"
	"github.com/agenthands/kgcomplete/internal/core/model"
	"github.com/agenthands/kgcomplete/internal/core/rules"
	"github.com/agenthands/kgcomplete/internal/core/transfer"
	"github.com/agenthands/kgcomplete/internal/metrics"
)

type Stage string

const (
	StageAlignedEntities Stage = "completion_by_aligned_entities"
	StageRuleTransfer    Stage = "rule_transfer"
	StageRuleInference   Stage = "rule_based_graph_completion"
)

// Stages lists the stages in execution order.
var Stages = []Stage{StageAlignedEntities, StageRuleTransfer, StageRuleInference}

// ProvenanceOriginal marks triples that were part of the input.
const ProvenanceOriginal = "original"

// Input is everything one run needs, fully loaded.
type Input struct {
	Pair          string
	Ratio         float64
	Source        model.Graph
	Target        model.Graph
	EntitySeeds   model.EntitySeeds
	RelationSeeds model.RelationSeeds
}

type Options struct {
	// Policy sets the confidence of transferred rules; nil carries it over.
	Policy transfer.ConfidencePolicy
	// ParallelDirections runs the two directions of a stage concurrently.
	ParallelDirections bool
	// StrictRules fails the run on the first unsupported rule instead of
	// dropping it.
	StrictRules bool
	Logger      log.FieldLogger
	Metrics     *metrics.Recorder
}

type Completer struct {
	Options
	Transferer    *transfer.Transferer
	UUIDGenerator func() string
}

func NewCompleter(opts Options) *Completer {
	if opts.Logger == nil {
		l := log.New()
		l.Out = io.Discard
		opts.Logger = l
	}
	return &Completer{
		Options:       opts,
		Transferer:    transfer.NewTransferer(opts.Policy),
		UUIDGenerator: uuid.NewString,
	}
}

// graphState is the working copy of one side. Sets are replaced, never
// written in place, once a stage has handed them out.
type graphState struct {
	triples model.TripleSet
	rules   []model.Rule
}

// Complete runs all three stages. Invalid ratios, inconsistent alignments
// and, in strict mode, unsupported rules fail the run before any stage
// starts.
func (c *Completer) Complete(ctx context.Context, in Input) (res *Result, err error) {
	defer func() { c.Metrics.RunFinished(err) }()

	if err := config.CheckTrainRatio(in.Ratio); err != nil {
		return nil, err
	}
	fwd, err := align.New(in.EntitySeeds, in.RelationSeeds)
	if err != nil {
		return nil, fmt.Errorf("pair %s: %w", in.Pair, err)
	}
	inv, err := fwd.Inverse()
	if err != nil {
		return nil, fmt.Errorf("pair %s: %w", in.Pair, err)
	}

	report := &Report{
		RunID:     c.UUIDGenerator(),
		Pair:      in.Pair,
		Ratio:     in.Ratio,
		StartedAt: time.Now().UTC(),
		Rejected:  make(map[model.Side][]*rules.RuleError),
	}
	logger := c.Logger.WithFields(log.Fields{"run_id": report.RunID, "pair": in.Pair})

	state := make(map[model.Side]*graphState, 2)
	graphs := map[model.Side]model.Graph{model.Source: in.Source, model.Target: in.Target}
	for _, side := range model.Sides {
		g := graphs[side]
		valid, rejected := rules.Partition(g.Rules)
		if len(rejected) > 0 {
			if c.StrictRules {
				return nil, fmt.Errorf("pair %s side %s: %w", in.Pair, side, rejected[0])
			}
			logger.WithFields(log.Fields{"side": side, "rejected": len(rejected)}).
				Warnf("dropping unsupported rules, first: %v", rejected[0])
			c.Metrics.AddRejected(in.Pair, string(side), len(rejected))
		}
		report.Rejected[side] = rejected
		state[side] = &graphState{triples: model.NewTripleSet(g.Triples...), rules: valid}
	}
	maps := map[model.Side]*align.Alignment{model.Target: fwd, model.Source: inv}

	stages := []struct {
		stage Stage
		run   func(context.Context, map[model.Side]*graphState, map[model.Side]*align.Alignment) (*StageReport, error)
	}{
		{StageAlignedEntities, c.completeByAlignedEntities},
		{StageRuleTransfer, c.transferRules},
		{StageRuleInference, c.completeByRules},
	}
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		sr, err := s.run(ctx, state, maps)
		if err != nil {
			return nil, fmt.Errorf("pair %s stage %s: %w", in.Pair, s.stage, err)
		}
		sr.Stage = s.stage
		sr.Duration = time.Since(start)
		c.Metrics.ObserveStage(string(s.stage), sr.Duration)
		for _, side := range model.Sides {
			n := sr.Count(side)
			if s.stage == StageRuleTransfer {
				c.Metrics.AddRules(in.Pair, string(side), n)
			} else {
				c.Metrics.AddTriples(in.Pair, string(s.stage), string(side), n)
			}
			logger.WithFields(log.Fields{
				"stage":    s.stage,
				"side":     side,
				"new":      n,
				"duration": sr.Duration,
			}).Info("stage finished")
		}
		report.Stages = append(report.Stages, sr)
	}
	report.Duration = time.Since(report.StartedAt)

	return &Result{
		Source: &GraphState{
			Language: in.Source.Language,
			Triples:  state[model.Source].triples,
			Rules:    state[model.Source].rules,
			Vocab:    in.Source.Vocab,
		},
		Target: &GraphState{
			Language: in.Target.Language,
			Triples:  state[model.Target].triples,
			Rules:    state[model.Target].rules,
			Vocab:    in.Target.Vocab,
		},
		Report: report,
	}, nil
}

// bothDirections calls run once for each side, concurrently when enabled.
// run for a side must only write that side's slot of its own output.
func (c *Completer) bothDirections(ctx context.Context, run func(ctx context.Context, side model.Side) error) error {
	if !c.ParallelDirections {
		for _, side := range model.Sides {
			if err := run(ctx, side); err != nil {
				return err
			}
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, side := range model.Sides {
		g.Go(func() error {
			return run(gctx, side)
		})
	}
	return g.Wait()
}

// completeByAlignedEntities projects the other side's triples into each
// side. maps[side] maps ids of the other side onto side.
func (c *Completer) completeByAlignedEntities(ctx context.Context, state map[model.Side]*graphState, maps map[model.Side]*align.Alignment) (*StageReport, error) {
	out := map[model.Side]dedupe.ConfidenceMap{}
	results := make([]dedupe.ConfidenceMap, len(model.Sides))
	err := c.bothDirections(ctx, func(_ context.Context, side model.Side) error {
		from := state[side.Other()].triples.Sorted()
		results[sideIndex(side)] = align.Project(from, state[side].triples, maps[side])
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, side := range model.Sides {
		m := results[sideIndex(side)]
		out[side] = m
		state[side].triples = state[side].triples.Union(m.Triples())
	}
	return &StageReport{Triples: out}, nil
}

// transferRules rewrites the other side's rules for each side.
func (c *Completer) transferRules(ctx context.Context, state map[model.Side]*graphState, maps map[model.Side]*align.Alignment) (*StageReport, error) {
	newRules := make([][]model.Rule, len(model.Sides))
	stats := make([]transfer.Stats, len(model.Sides))
	err := c.bothDirections(ctx, func(_ context.Context, side model.Side) error {
		i := sideIndex(side)
		newRules[i], stats[i] = c.Transferer.Transfer(state[side.Other()].rules, state[side].rules, maps[side].Relations)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sr := &StageReport{
		Rules:    map[model.Side][]model.Rule{},
		Transfer: map[model.Side]transfer.Stats{},
	}
	for _, side := range model.Sides {
		i := sideIndex(side)
		sr.Rules[side] = newRules[i]
		sr.Transfer[side] = stats[i]
		merged := make([]model.Rule, 0, len(state[side].rules)+len(newRules[i]))
		merged = append(merged, state[side].rules...)
		state[side].rules = append(merged, newRules[i]...)
	}
	return sr, nil
}

// completeByRules grounds each side's rules against that side's graph.
func (c *Completer) completeByRules(ctx context.Context, state map[model.Side]*graphState, _ map[model.Side]*align.Alignment) (*StageReport, error) {
	results := make([]dedupe.ConfidenceMap, len(model.Sides))
	err := c.bothDirections(ctx, func(ctx context.Context, side model.Side) error {
		snapshot := state[side].triples
		engine := rules.NewEngine(index.Build(snapshot.Sorted()))
		agg := dedupe.NewAggregator(snapshot)
		for _, r := range state[side].rules {
			if err := ctx.Err(); err != nil {
				return err
			}
			candidates, err := engine.Ground(r)
			if err != nil {
				return err
			}
			for cand := range candidates {
				agg.Observe(cand.Triple, cand.Confidence)
			}
		}
		results[sideIndex(side)] = agg.Result()
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := map[model.Side]dedupe.ConfidenceMap{}
	for _, side := range model.Sides {
		m := results[sideIndex(side)]
		out[side] = m
		state[side].triples = state[side].triples.Union(m.Triples())
	}
	return &StageReport{Triples: out}, nil
}

func sideIndex(s model.Side) int {
	if s == model.Source {
		return 0
	}
	return 1
}
