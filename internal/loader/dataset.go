package loader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agenthands/kgcomplete/internal/config"
	"github.com/agenthands/kgcomplete/internal/core"
	"github.com/agenthands/kgcomplete/internal/core/model"
)

// ParsePairName splits a pair folder name such as "zh_en" into its source
// and target languages.
func ParsePairName(name string) (string, string, error) {
	parts := strings.Split(name, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: pair folder %q is not named <source>_<target>", config.ErrInvalidConfig, name)
	}
	return parts[0], parts[1], nil
}

// SeedDir is the folder under JAPE holding the entity seeds for ratio.
func SeedDir(ratio float64) string {
	return fmt.Sprintf("0_%d", config.RatioTenths(ratio))
}

// Discover returns the pair folders under root matching glob, sorted.
func Discover(root, glob string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(root, glob))
	if err != nil {
		return nil, fmt.Errorf("%w: pair glob %q: %v", config.ErrInvalidConfig, glob, err)
	}
	var dirs []string
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.IsDir() {
			dirs = append(dirs, m)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// LoadStats reports what the loaders skipped.
type LoadStats struct {
	Rules map[model.Side]RuleStats
}

// LoadPair reads the pair folder dir for the given entity seed ratio. The
// ratio and the folder name are checked before any file is opened.
func LoadPair(dir string, ratio float64, column string) (core.Input, LoadStats, error) {
	var in core.Input
	stats := LoadStats{Rules: map[model.Side]RuleStats{}}
	if err := config.CheckTrainRatio(ratio); err != nil {
		return in, stats, err
	}
	pair := filepath.Base(dir)
	sr, tg, err := ParsePairName(pair)
	if err != nil {
		return in, stats, err
	}
	in.Pair = pair
	in.Ratio = ratio

	langs := map[model.Side]string{model.Source: sr, model.Target: tg}
	for _, side := range model.Sides {
		g, rs, err := loadLanguage(dir, langs[side], column)
		if err != nil {
			return in, stats, err
		}
		stats.Rules[side] = rs
		if side == model.Source {
			in.Source = g
		} else {
			in.Target = g
		}
	}

	in.RelationSeeds, err = readFile(filepath.Join(dir, "relation_seeds.txt"), ReadSeeds[model.RelationID])
	if err != nil {
		return in, stats, err
	}
	in.EntitySeeds, err = readFile(filepath.Join(dir, "JAPE", SeedDir(ratio), "train_entity_seeds.txt"), ReadSeeds[model.EntityID])
	if err != nil {
		return in, stats, err
	}
	return in, stats, nil
}

func loadLanguage(dir, lang, column string) (model.Graph, RuleStats, error) {
	g := model.Graph{Language: lang}
	var err error
	g.Triples, err = readFile(filepath.Join(dir, "triples_"+lang+".txt"), ReadTriples)
	if err != nil {
		return g, RuleStats{}, err
	}
	entities, err := readFile(filepath.Join(dir, "entity2id_"+lang+".txt"), ReadMapping)
	if err != nil {
		return g, RuleStats{}, err
	}
	relations, err := readFile(filepath.Join(dir, "relation2id_"+lang+".txt"), ReadMapping)
	if err != nil {
		return g, RuleStats{}, err
	}
	g.Vocab = vocabulary(entities, relations)

	var stats RuleStats
	g.Rules, err = readFile(filepath.Join(dir, "AMIE", "rule_for_triples_"+lang+".txt"), func(r io.Reader) ([]model.Rule, error) {
		rs, st, err := ReadRules(r, relations, column)
		stats = st
		return rs, err
	})
	return g, stats, err
}

func vocabulary(entities, relations map[string]uint64) *model.Vocabulary {
	v := &model.Vocabulary{
		Entities:  make(map[model.EntityID]string, len(entities)),
		Relations: make(map[model.RelationID]string, len(relations)),
	}
	for name, id := range entities {
		v.Entities[model.EntityID(id)] = name
	}
	for name, id := range relations {
		v.Relations[model.RelationID(id)] = name
	}
	return v
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	v, err := read(f)
	if err != nil {
		return v, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
