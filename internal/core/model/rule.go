package model

import (
	"fmt"
	"strings"
)

// Var is a rule variable such as "?a". Variables are shared across the
// premises and the hypothesis of one rule.
type Var string

// Pattern is a premise or hypothesis of a rule: both endpoints are variables
// and the relation is concrete.
type Pattern struct {
	Head     Var        `json:"head"`
	Tail     Var        `json:"tail"`
	Relation RelationID `json:"relation"`
}

func (p Pattern) String() string {
	return fmt.Sprintf("%s %d %s", p.Head, p.Relation, p.Tail)
}

// Rule is a mined horn rule: when every premise holds for a grounding of its
// variables, the hypothesis holds with Confidence.
type Rule struct {
	Premises   []Pattern `json:"premises"`
	Hypothesis Pattern   `json:"hypothesis"`
	Confidence float64   `json:"confidence"`
}

// RuleKey is the structural identity of a rule body and head, ignoring
// confidence. It is order-sensitive in the premises.
type RuleKey string

func (r Rule) Key() RuleKey {
	return keyOf(r.Premises, r.Hypothesis)
}

func keyOf(premises []Pattern, hypothesis Pattern) RuleKey {
	var b strings.Builder
	for i, p := range premises {
		if i > 0 {
			b.WriteString(" & ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(" => ")
	b.WriteString(hypothesis.String())
	return RuleKey(b.String())
}

// Relations returns the relation ids of the premises followed by the
// hypothesis relation.
func (r Rule) Relations() []RelationID {
	out := make([]RelationID, 0, len(r.Premises)+1)
	for _, p := range r.Premises {
		out = append(out, p.Relation)
	}
	return append(out, r.Hypothesis.Relation)
}

// PremiseOrders returns the keys of every ordering of r's premises that must
// be treated as the same rule. Bodies of one or two premises are supported;
// longer bodies only yield their own order.
func (r Rule) PremiseOrders() []RuleKey {
	keys := []RuleKey{r.Key()}
	if len(r.Premises) == 2 {
		swapped := []Pattern{r.Premises[1], r.Premises[0]}
		keys = append(keys, keyOf(swapped, r.Hypothesis))
	}
	return keys
}

// Clone returns a copy of r that shares no memory with it.
func (r Rule) Clone() Rule {
	c := r
	c.Premises = append([]Pattern(nil), r.Premises...)
	return c
}

func (r Rule) String() string {
	return fmt.Sprintf("%s  %g", r.Key(), r.Confidence)
}
