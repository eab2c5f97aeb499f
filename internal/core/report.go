package core

import (
	"time"

	"github.com/agenthands/kgcomplete/internal/core/dedupe"
	"github.com/agenthands/kgcomplete/internal/core/model"
	"github.com/agenthands/kgcomplete/internal/core/rules"
	"github.com/agenthands/kgcomplete/internal/core/transfer"
)

// StageReport is what one stage added, per side. Triple stages fill
// Triples; the transfer stage fills Rules and Transfer.
type StageReport struct {
	Stage    Stage
	Triples  map[model.Side]dedupe.ConfidenceMap
	Rules    map[model.Side][]model.Rule
	Transfer map[model.Side]transfer.Stats
	Duration time.Duration
}

// Count returns how many triples or rules the stage added to side.
func (s *StageReport) Count(side model.Side) int {
	if s.Triples != nil {
		return len(s.Triples[side])
	}
	return len(s.Rules[side])
}

// Report is the audit record of one run.
type Report struct {
	RunID     string
	Pair      string
	Ratio     float64
	StartedAt time.Time
	Duration  time.Duration
	Stages    []*StageReport
	Rejected  map[model.Side][]*rules.RuleError
}

// Stage returns the report of the named stage, or nil if it did not run.
func (r *Report) Stage(name Stage) *StageReport {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s
		}
	}
	return nil
}

// GraphState is the final state of one side.
type GraphState struct {
	Language string
	Triples  model.TripleSet
	Rules    []model.Rule
	Vocab    *model.Vocabulary
}

type Result struct {
	Source *GraphState
	Target *GraphState
	Report *Report
}

func (r *Result) Graph(side model.Side) *GraphState {
	if side == model.Source {
		return r.Source
	}
	return r.Target
}

// ScoredTriple is a final triple with the stage that produced it.
type ScoredTriple struct {
	model.Triple
	Confidence float64
	Provenance string
}

// Scored lists every final triple of side in model.Triple.Less order. Input
// triples have confidence 1 and ProvenanceOriginal.
func (r *Result) Scored(side model.Side) []ScoredTriple {
	g := r.Graph(side)
	out := make([]ScoredTriple, 0, g.Triples.Len())
	for _, t := range g.Triples.Sorted() {
		st := ScoredTriple{Triple: t, Confidence: 1, Provenance: ProvenanceOriginal}
		for _, s := range r.Report.Stages {
			if conf, ok := s.Triples[side][t]; ok {
				st.Confidence = conf
				st.Provenance = string(s.Stage)
				break
			}
		}
		out = append(out, st)
	}
	return out
}
