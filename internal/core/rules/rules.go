// Package rules grounds mined horn rules against an indexed graph.
//
// Grounding is a backtracking join: premises are matched in order, each one
// extending the bindings produced by the previous ones, so a variable shared
// by two premises must agree. The join itself works for any body length, but
// bodies are limited to MaxPremises by Validate.
package rules

import (
	"errors"
	"fmt"
	"iter"

	"github.com/agenthands/kgcomplete/internal/core/index"
	"github.com/agenthands/kgcomplete/internal/core/model"
)

// MaxPremises is the longest rule body accepted.
const MaxPremises = 2

var ErrUnsupportedRule = errors.New("unsupported rule")

// RuleError reports why a rule was rejected.
type RuleError struct {
	Rule   model.Rule
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("unsupported rule %s: %s", e.Rule, e.Reason)
}

func (e *RuleError) Unwrap() error {
	return ErrUnsupportedRule
}

// Validate checks that r can be grounded correctly: its body has between one
// and MaxPremises premises, its confidence lies in [0, 1], and every
// hypothesis variable is bound by some premise.
func Validate(r model.Rule) error {
	n := len(r.Premises)
	if n == 0 {
		return &RuleError{Rule: r, Reason: "empty body"}
	}
	if n > MaxPremises {
		return &RuleError{Rule: r, Reason: fmt.Sprintf("%d premises, at most %d supported", n, MaxPremises)}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return &RuleError{Rule: r, Reason: fmt.Sprintf("confidence %g outside [0, 1]", r.Confidence)}
	}
	bound := make(map[model.Var]bool, 2*n)
	for _, p := range r.Premises {
		bound[p.Head] = true
		bound[p.Tail] = true
	}
	for _, v := range []model.Var{r.Hypothesis.Head, r.Hypothesis.Tail} {
		if !bound[v] {
			return &RuleError{Rule: r, Reason: fmt.Sprintf("hypothesis variable %s not bound by the body", v)}
		}
	}
	return nil
}

// Partition splits rules into those that pass Validate and the errors for
// those that do not, preserving order.
func Partition(rs []model.Rule) (valid []model.Rule, rejected []*RuleError) {
	for _, r := range rs {
		if err := Validate(r); err != nil {
			var re *RuleError
			if errors.As(err, &re) {
				rejected = append(rejected, re)
			}
			continue
		}
		valid = append(valid, r)
	}
	return valid, rejected
}

// Candidate is a hypothesis triple derived by one grounding of a rule.
type Candidate struct {
	Triple     model.Triple
	Confidence float64
}

// Engine grounds rules against one index. It never modifies the index or
// the rules it is given.
type Engine struct {
	Index *index.Index
}

func NewEngine(ix *index.Index) *Engine {
	return &Engine{Index: ix}
}

// Ground returns every hypothesis triple implied by r over the index,
// paired with r's confidence. The same triple is yielded once per grounding
// that derives it. Rules rejected by Validate return an error and no
// sequence.
func (e *Engine) Ground(r model.Rule) (iter.Seq[Candidate], error) {
	if err := Validate(r); err != nil {
		return nil, err
	}
	return func(yield func(Candidate) bool) {
		e.join(r, 0, index.Binding{}, yield)
	}, nil
}

// join extends b with premise i and recurses; it returns false once the
// consumer has stopped.
func (e *Engine) join(r model.Rule, i int, b index.Binding, yield func(Candidate) bool) bool {
	if i == len(r.Premises) {
		t, ok := b.Resolve(r.Hypothesis)
		if !ok {
			return true
		}
		return yield(Candidate{Triple: t, Confidence: r.Confidence})
	}
	for next := range e.Index.Match(r.Premises[i], b) {
		if !e.join(r, i+1, next, yield) {
			return false
		}
	}
	return true
}
