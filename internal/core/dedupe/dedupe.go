// Package dedupe merges repeated derivations of the same candidate triple
// within one completion stage.
package dedupe

import (
	"github.com/agenthands/kgcomplete/internal/core/model"
)

// ConfidenceMap holds the aggregated confidence of each new triple.
type ConfidenceMap map[model.Triple]float64

// Triples returns the keys of m in model.Triple.Less order.
func (m ConfidenceMap) Triples() []model.Triple {
	out := make([]model.Triple, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	model.SortTriples(out)
	return out
}

// Aggregator collects candidates for one stage and one direction. A
// candidate already present in the pre-stage snapshot is dropped; repeated
// derivations keep the maximum confidence observed.
type Aggregator struct {
	existing model.TripleSet
	confs    ConfidenceMap

	Observed int
	Excluded int
}

// NewAggregator returns an aggregator excluding every triple in existing.
// existing is read but never written.
func NewAggregator(existing model.TripleSet) *Aggregator {
	return &Aggregator{
		existing: existing,
		confs:    make(ConfidenceMap),
	}
}

// Observe records one derivation of t. It reports whether t counts as new.
func (a *Aggregator) Observe(t model.Triple, conf float64) bool {
	a.Observed++
	if a.existing.Contains(t) {
		a.Excluded++
		return false
	}
	if prev, ok := a.confs[t]; !ok || conf > prev {
		a.confs[t] = conf
	}
	return true
}

// Len returns the number of distinct new triples seen so far.
func (a *Aggregator) Len() int {
	return len(a.confs)
}

// Result returns the aggregated confidences. The aggregator must not be used
// after calling Result.
func (a *Aggregator) Result() ConfidenceMap {
	return a.confs
}
