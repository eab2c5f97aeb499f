// Package transfer rewrites rules mined on one graph into candidate rules for
// the other graph by substituting relations through the relation alignment.
package transfer

import (
	"errors"
	"fmt"

	"github.com/agenthands/kgcomplete/internal/core/model"
)

// ConfidencePolicy decides the confidence of a transferred rule from the
// confidence of the rule it was transferred from.
type ConfidencePolicy interface {
	Name() string
	Transfer(conf float64) float64
}

// CarryOver keeps the source confidence unchanged.
type CarryOver struct{}

func (CarryOver) Name() string { return "carry" }

func (CarryOver) Transfer(conf float64) float64 { return conf }

// Discount multiplies the source confidence by Factor.
type Discount struct {
	Factor float64
}

func (d Discount) Name() string { return "discount" }

func (d Discount) Transfer(conf float64) float64 { return conf * d.Factor }

// ErrInvalidPolicy is returned for an unknown policy name or a discount
// factor outside (0, 1].
var ErrInvalidPolicy = errors.New("invalid transfer policy")

// PolicyFor returns the policy called name. factor is only used by
// "discount" and must lie in (0, 1].
func PolicyFor(name string, factor float64) (ConfidencePolicy, error) {
	switch name {
	case "", "carry":
		return CarryOver{}, nil
	case "discount":
		if factor <= 0 || factor > 1 {
			return nil, fmt.Errorf("%w: discount factor %g outside (0, 1]", ErrInvalidPolicy, factor)
		}
		return Discount{Factor: factor}, nil
	default:
		return nil, fmt.Errorf("%w: unknown policy %q, want carry or discount", ErrInvalidPolicy, name)
	}
}

// Stats counts what happened to the rules of one direction.
type Stats struct {
	Considered int
	Infeasible int
	Known      int
	Accepted   int
}

type Transferer struct {
	Policy ConfidencePolicy
}

func NewTransferer(policy ConfidencePolicy) *Transferer {
	if policy == nil {
		policy = CarryOver{}
	}
	return &Transferer{Policy: policy}
}

// Transfer substitutes every relation of each rule in from through
// relations. A rule with any unmapped relation is infeasible. A substituted
// rule is accepted unless to already holds it under some order of its
// premises, or an earlier rule of from produced the same one; in that case
// the higher confidence is kept. Accepted rules come back in the order of
// their first derivation.
func (t *Transferer) Transfer(from, to []model.Rule, relations map[model.RelationID]model.RelationID) ([]model.Rule, Stats) {
	known := make(map[model.RuleKey]struct{}, len(to))
	for _, r := range to {
		known[r.Key()] = struct{}{}
	}

	var stats Stats
	var accepted []model.Rule
	pos := make(map[model.RuleKey]int)
	for _, r := range from {
		stats.Considered++
		sub, ok := substitute(r, relations)
		if !ok {
			stats.Infeasible++
			continue
		}
		if isKnown(sub, known) {
			stats.Known++
			continue
		}
		sub.Confidence = t.Policy.Transfer(r.Confidence)
		if i, dup := indexOf(sub, pos); dup {
			if sub.Confidence > accepted[i].Confidence {
				accepted[i].Confidence = sub.Confidence
			}
			continue
		}
		pos[sub.Key()] = len(accepted)
		accepted = append(accepted, sub)
	}
	stats.Accepted = len(accepted)
	return accepted, stats
}

func indexOf(r model.Rule, pos map[model.RuleKey]int) (int, bool) {
	for _, k := range r.PremiseOrders() {
		if i, ok := pos[k]; ok {
			return i, true
		}
	}
	return 0, false
}

func isKnown(r model.Rule, known map[model.RuleKey]struct{}) bool {
	for _, k := range r.PremiseOrders() {
		if _, ok := known[k]; ok {
			return true
		}
	}
	return false
}

func substitute(r model.Rule, relations map[model.RelationID]model.RelationID) (model.Rule, bool) {
	out := r.Clone()
	for i, p := range out.Premises {
		rel, ok := relations[p.Relation]
		if !ok {
			return model.Rule{}, false
		}
		out.Premises[i].Relation = rel
	}
	rel, ok := relations[out.Hypothesis.Relation]
	if !ok {
		return model.Rule{}, false
	}
	out.Hypothesis.Relation = rel
	return out, true
}
