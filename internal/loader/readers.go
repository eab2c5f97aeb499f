// Package loader reads a dataset pair folder: triples, vocabularies, seed
// alignments and AMIE rules for the two languages of the pair.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/agenthands/kgcomplete/internal/core/model"
)

// scanLines calls fn with every non-blank line of r and its 1-based number.
func scanLines(r io.Reader, fn func(n int, line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	return sc.Err()
}

func parseID(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

// ReadTriples reads one "head tail relation" triple per line.
func ReadTriples(r io.Reader) ([]model.Triple, error) {
	var out []model.Triple
	err := scanLines(r, func(n int, line string) error {
		f := strings.Fields(line)
		if len(f) != 3 {
			return fmt.Errorf("line %d: want 3 fields, got %d", n, len(f))
		}
		var ids [3]uint64
		for i, s := range f {
			id, err := parseID(s)
			if err != nil {
				return fmt.Errorf("line %d: %w", n, err)
			}
			ids[i] = id
		}
		out = append(out, model.Triple{Head: model.EntityID(ids[0]), Tail: model.EntityID(ids[1]), Relation: model.RelationID(ids[2])})
		return nil
	})
	return out, err
}

// ReadMapping reads "name id" lines. The id is the last field, so names
// may contain spaces.
func ReadMapping(r io.Reader) (map[string]uint64, error) {
	out := make(map[string]uint64)
	err := scanLines(r, func(n int, line string) error {
		i := strings.LastIndexAny(line, " \t")
		if i < 0 {
			return fmt.Errorf("line %d: want name and id", n)
		}
		id, err := parseID(line[i+1:])
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		out[strings.TrimSpace(line[:i])] = id
		return nil
	})
	return out, err
}

// ReadSeeds reads one "source target" id pair per line.
func ReadSeeds[T model.ID](r io.Reader) ([]model.Pair[T], error) {
	var out []model.Pair[T]
	err := scanLines(r, func(n int, line string) error {
		f := strings.Fields(line)
		if len(f) != 2 {
			return fmt.Errorf("line %d: want 2 fields, got %d", n, len(f))
		}
		from, err := parseID(f[0])
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		to, err := parseID(f[1])
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, model.Pair[T]{From: T(from), To: T(to)})
		return nil
	})
	return out, err
}

// Confidence columns of an AMIE rule line, counted after the rule itself.
var confidenceColumns = map[string]int{
	"std": 2,
	"pca": 3,
}

// RuleStats counts the rule lines that were read but not returned.
type RuleStats struct {
	Read            int
	UnknownRelation int
	// Unsupported counts well-formed rules the engine cannot ground, such
	// as atoms with a constant endpoint.
	Unsupported int
}

// errConstantAtom marks an atom whose head or tail is an entity constant.
var errConstantAtom = errors.New("atom endpoints must be variables")

// ReadRules reads AMIE output. Each rule line is the rule text followed by
// tab separated metrics:
//
//	?a  rel1  ?b  ?b  rel2  ?c   => ?a  rel3  ?c	0.1	0.5	0.7	...
//
// Lines without "=>" (AMIE's banner and column headers) are ignored.
// Relation names are resolved through relations; rules naming an unknown
// relation or binding an atom to a constant are skipped and counted. column
// selects the "std" or "pca" confidence.
func ReadRules(r io.Reader, relations map[string]uint64, column string) ([]model.Rule, RuleStats, error) {
	col, ok := confidenceColumns[column]
	if !ok {
		return nil, RuleStats{}, fmt.Errorf("unknown confidence column %q", column)
	}
	var out []model.Rule
	var stats RuleStats
	err := scanLines(r, func(n int, line string) error {
		if !strings.Contains(line, "=>") {
			return nil
		}
		stats.Read++
		cols := strings.Split(line, "\t")
		if len(cols) <= col {
			return fmt.Errorf("line %d: want at least %d tab separated columns, got %d", n, col+1, len(cols))
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(cols[col]), 64)
		if err != nil {
			return fmt.Errorf("line %d: confidence: %w", n, err)
		}
		body, head, found := strings.Cut(cols[0], "=>")
		if !found {
			return fmt.Errorf("line %d: rule text has no \"=>\"", n)
		}
		premises, known, err := parseAtoms(body, relations)
		if err != nil && !errors.Is(err, errConstantAtom) {
			return fmt.Errorf("line %d: body: %w", n, err)
		}
		constant := err != nil
		hyp, knownHead, err := parseAtoms(head, relations)
		if err != nil && !errors.Is(err, errConstantAtom) {
			return fmt.Errorf("line %d: head: %w", n, err)
		}
		if constant || err != nil {
			stats.Unsupported++
			return nil
		}
		if !known || !knownHead {
			stats.UnknownRelation++
			return nil
		}
		if len(hyp) != 1 {
			return fmt.Errorf("line %d: want one head atom, got %d", n, len(hyp))
		}
		out = append(out, model.Rule{Premises: premises, Hypothesis: hyp[0], Confidence: conf})
		return nil
	})
	return out, stats, err
}

// parseAtoms reads "?x rel ?y" triples of tokens. known is false when some
// relation name is missing from relations. An atom with a constant endpoint
// yields errConstantAtom once the whole text has been checked for shape.
func parseAtoms(s string, relations map[string]uint64) (atoms []model.Pattern, known bool, err error) {
	f := strings.Fields(s)
	if len(f) == 0 || len(f)%3 != 0 {
		return nil, false, fmt.Errorf("want atoms of 3 tokens, got %d tokens", len(f))
	}
	known = true
	for i := 0; i < len(f); i += 3 {
		head, rel, tail := f[i], f[i+1], f[i+2]
		if !strings.HasPrefix(head, "?") || !strings.HasPrefix(tail, "?") {
			return nil, false, fmt.Errorf("atom %q %q %q: %w", head, rel, tail, errConstantAtom)
		}
		id, ok := lookupRelation(rel, relations)
		if !ok {
			known = false
			continue
		}
		atoms = append(atoms, model.Pattern{Head: model.Var(head), Tail: model.Var(tail), Relation: model.RelationID(id)})
	}
	return atoms, known, nil
}

// lookupRelation accepts names with or without AMIE's angle brackets.
func lookupRelation(name string, relations map[string]uint64) (uint64, bool) {
	if id, ok := relations[name]; ok {
		return id, true
	}
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "<"), ">")
	if id, ok := relations[trimmed]; ok {
		return id, true
	}
	id, ok := relations["<"+trimmed+">"]
	return id, ok
}
