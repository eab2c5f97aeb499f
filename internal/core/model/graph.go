package model

import "fmt"

// Side labels one of the two graphs of a pair.
type Side string

const (
	Source Side = "sr"
	Target Side = "tg"
)

// Sides lists both sides in report order.
var Sides = []Side{Source, Target}

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == Source {
		return Target
	}
	return Source
}

// Vocabulary maps ids back to names. It is only used for reporting.
type Vocabulary struct {
	Entities  map[EntityID]string
	Relations map[RelationID]string
}

func (v *Vocabulary) EntityName(id EntityID) string {
	if v != nil {
		if name, ok := v.Entities[id]; ok {
			return name
		}
	}
	return fmt.Sprintf("#%d", id)
}

func (v *Vocabulary) RelationName(id RelationID) string {
	if v != nil {
		if name, ok := v.Relations[id]; ok {
			return name
		}
	}
	return fmt.Sprintf("#%d", id)
}

// Graph is one side of a completion run as handed over by the loaders.
type Graph struct {
	Language string
	Triples  []Triple
	Rules    []Rule
	Vocab    *Vocabulary
}
