// Package summary renders a completion report for humans: how many triples
// and rules each stage added per side, and a random sample of them with
// vocabulary names.
package summary

import (
	"fmt"
	"io"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/agenthands/kgcomplete/internal/core"
	"github.com/agenthands/kgcomplete/internal/core/model"
)

// StageSummary is the rendered view of one stage.
type StageSummary struct {
	Stage   core.Stage
	Kind    string
	Counts  map[model.Side]int
	Samples map[model.Side][]string
}

type Summary struct {
	RunID  string
	Pair   string
	Ratio  float64
	Stages []StageSummary
}

type Summarizer struct {
	// SampleSize caps the examples listed per stage and side. Zero lists none.
	SampleSize int
	Logger     log.FieldLogger
}

func NewSummarizer(sampleSize int, logger log.FieldLogger) *Summarizer {
	if logger == nil {
		l := log.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Summarizer{SampleSize: sampleSize, Logger: logger}
}

// Summarize renders res and logs one line per stage and side.
func (s *Summarizer) Summarize(res *core.Result) *Summary {
	sum := &Summary{RunID: res.Report.RunID, Pair: res.Report.Pair, Ratio: res.Report.Ratio}
	for _, st := range res.Report.Stages {
		ss := StageSummary{
			Stage:   st.Stage,
			Kind:    "triple",
			Counts:  map[model.Side]int{},
			Samples: map[model.Side][]string{},
		}
		if st.Triples == nil {
			ss.Kind = "rule"
		}
		for _, side := range model.Sides {
			vocab := res.Graph(side).Vocab
			var lines []string
			if st.Triples != nil {
				ts := st.Triples[side].Triples()
				for _, i := range s.sample(len(ts)) {
					lines = append(lines, FormatTriple(ts[i], st.Triples[side][ts[i]], vocab))
				}
			} else {
				rs := st.Rules[side]
				for _, i := range s.sample(len(rs)) {
					lines = append(lines, FormatRule(rs[i], vocab))
				}
			}
			ss.Counts[side] = st.Count(side)
			ss.Samples[side] = lines
		}
		sum.Stages = append(sum.Stages, ss)
	}
	s.log(sum)
	return sum
}

func (s *Summarizer) log(sum *Summary) {
	for _, ss := range sum.Stages {
		logger := s.Logger.WithFields(log.Fields{"run_id": sum.RunID, "pair": sum.Pair, "stage": ss.Stage})
		for _, side := range model.Sides {
			logger.Infof("%s new %s numbers: %d", side, ss.Kind, ss.Counts[side])
			for _, line := range ss.Samples[side] {
				logger.WithField("side", side).Info(line)
			}
		}
	}
}

// sample picks up to SampleSize distinct indices below n, in ascending order.
func (s *Summarizer) sample(n int) []int {
	k := min(s.SampleSize, n)
	if k <= 0 {
		return nil
	}
	idxs := make([]int, k)
	sampleuv.WithoutReplacement(idxs, n, nil)
	sort.Ints(idxs)
	return idxs
}

// FormatTriple renders t as "head relation tail conf".
func FormatTriple(t model.Triple, conf float64, vocab *model.Vocabulary) string {
	return fmt.Sprintf("%s %s %s %g", vocab.EntityName(t.Head), vocab.RelationName(t.Relation), vocab.EntityName(t.Tail), conf)
}

// FormatPattern renders p as "?a relation ?b".
func FormatPattern(p model.Pattern, vocab *model.Vocabulary) string {
	return fmt.Sprintf("%s %s %s", p.Head, vocab.RelationName(p.Relation), p.Tail)
}

// FormatRule renders r as "?a rel ?b  ?b rel ?c  =>  ?a rel ?c  conf".
func FormatRule(r model.Rule, vocab *model.Vocabulary) string {
	atoms := make([]string, 0, len(r.Premises)+2)
	for _, p := range r.Premises {
		atoms = append(atoms, FormatPattern(p, vocab))
	}
	atoms = append(atoms, "=>", FormatPattern(r.Hypothesis, vocab), fmt.Sprintf("%g", r.Confidence))
	return strings.Join(atoms, "  ")
}
