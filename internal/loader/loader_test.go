package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agenthands/kgcomplete/internal/config"
	"github.com/agenthands/kgcomplete/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTriples(t *testing.T) {
	got, err := ReadTriples(strings.NewReader("1\t2\t3\n\n4 5 6\n"))

	require.NoError(t, err)
	assert.Equal(t, []model.Triple{{Head: 1, Tail: 2, Relation: 3}, {Head: 4, Tail: 5, Relation: 6}}, got)
}

func TestReadTriples_Malformed(t *testing.T) {
	_, err := ReadTriples(strings.NewReader("1 2 3\n1 2\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = ReadTriples(strings.NewReader("1 x 3\n"))
	assert.ErrorContains(t, err, "line 1")
}

func TestReadMapping(t *testing.T) {
	got, err := ReadMapping(strings.NewReader("http://dbpedia.org/resource/Paris\t0\nNew York 1\n"))

	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"http://dbpedia.org/resource/Paris": 0, "New York": 1}, got)
}

func TestReadSeeds(t *testing.T) {
	got, err := ReadSeeds[model.EntityID](strings.NewReader("1\t10\n2\t20\n"))

	require.NoError(t, err)
	assert.Equal(t, model.EntitySeeds{{From: 1, To: 10}, {From: 2, To: 20}}, got)
}

const amieOutput = "Using HeadCoverage as pruning metric with minimum threshold 0.01\n" +
	"Rule\tHead Coverage\tStd Confidence\tPCA Confidence\tPositive Examples\n" +
	"?a  <capital>  ?b   => ?a  <city>  ?b\t0.3\t0.6\t0.75\t12\n" +
	"?a  <bornIn>  ?b  ?b  <locatedIn>  ?c   => ?a  <nationality>  ?c\t0.1\t0.4\t0.5\t3\n" +
	"?a  <unknown>  ?b   => ?a  <city>  ?b\t0.1\t0.4\t0.5\t3\n"

var amieRelations = map[string]uint64{
	"capital":     0,
	"city":        1,
	"bornIn":      2,
	"locatedIn":   3,
	"nationality": 4,
}

func TestReadRules(t *testing.T) {
	got, stats, err := ReadRules(strings.NewReader(amieOutput), amieRelations, "pca")
	require.NoError(t, err)

	assert.Equal(t, RuleStats{Read: 3, UnknownRelation: 1}, stats)
	require.Len(t, got, 2)
	assert.Equal(t, model.Rule{
		Premises:   []model.Pattern{{Head: "?a", Tail: "?b", Relation: 0}},
		Hypothesis: model.Pattern{Head: "?a", Tail: "?b", Relation: 1},
		Confidence: 0.75,
	}, got[0])
	assert.Equal(t, []model.Pattern{
		{Head: "?a", Tail: "?b", Relation: 2},
		{Head: "?b", Tail: "?c", Relation: 3},
	}, got[1].Premises)
	assert.Equal(t, model.Pattern{Head: "?a", Tail: "?c", Relation: 4}, got[1].Hypothesis)
}

func TestReadRules_StdColumn(t *testing.T) {
	got, _, err := ReadRules(strings.NewReader(amieOutput), amieRelations, "std")
	require.NoError(t, err)

	require.NotEmpty(t, got)
	assert.Equal(t, 0.6, got[0].Confidence)
}

func TestReadRules_SkipsConstantAtoms(t *testing.T) {
	input := "?a  <capital>  ?b   => ?a  <city>  ?b\t0.3\t0.6\t0.75\t12\n" +
		"?a  <capital>  Paris   => ?a  <city>  Paris\t0.3\t0.6\t0.7\t5\n" +
		"?a  <capital>  ?b   => France  <city>  ?b\t0.3\t0.6\t0.7\t5\n"

	got, stats, err := ReadRules(strings.NewReader(input), amieRelations, "pca")
	require.NoError(t, err)

	assert.Equal(t, RuleStats{Read: 3, Unsupported: 2}, stats)
	require.Len(t, got, 1)
	assert.Equal(t, 0.75, got[0].Confidence)
}

func TestReadRules_Errors(t *testing.T) {
	_, _, err := ReadRules(strings.NewReader(amieOutput), amieRelations, "head")
	assert.Error(t, err)

	_, _, err = ReadRules(strings.NewReader("?a <capital> => ?a <city> ?b\t0.1\t0.2\t0.3\n"), amieRelations, "pca")
	assert.ErrorContains(t, err, "line 1")

	_, _, err = ReadRules(strings.NewReader("?a <capital> ?b => ?a <city> ?b\t0.1\n"), amieRelations, "pca")
	assert.ErrorContains(t, err, "columns")
}

func TestParsePairName(t *testing.T) {
	sr, tg, err := ParsePairName("zh_en")
	require.NoError(t, err)
	assert.Equal(t, "zh", sr)
	assert.Equal(t, "en", tg)

	for _, bad := range []string{"zhen", "zh_en_x", "_en", "zh_"} {
		_, _, err := ParsePairName(bad)
		assert.ErrorIs(t, err, config.ErrInvalidConfig, bad)
	}
}

func TestSeedDir(t *testing.T) {
	assert.Equal(t, "0_3", SeedDir(0.3))
	assert.Equal(t, "0_1", SeedDir(0.1))
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func pairFixture(t *testing.T) string {
	root := t.TempDir()
	dir := filepath.Join(root, "fr_en")
	writeFiles(t, dir, map[string]string{
		"triples_fr.txt":                  "0\t1\t0\n",
		"entity2id_fr.txt":                "Paris\t0\nFrance\t1\n",
		"relation2id_fr.txt":              "capitale\t0\npays\t1\n",
		"AMIE/rule_for_triples_fr.txt":    "?a  capitale  ?b   => ?a  pays  ?b\t0.2\t0.5\t0.6\t4\n",
		"triples_en.txt":                  "",
		"entity2id_en.txt":                "Paris\t0\nFrance\t1\n",
		"relation2id_en.txt":              "capital\t0\ncountry\t1\n",
		"AMIE/rule_for_triples_en.txt":    "",
		"relation_seeds.txt":              "0\t0\n1\t1\n",
		"JAPE/0_3/train_entity_seeds.txt": "0\t0\n1\t1\n",
	})
	return dir
}

func TestLoadPair(t *testing.T) {
	dir := pairFixture(t)

	in, stats, err := LoadPair(dir, 0.3, "pca")
	require.NoError(t, err)

	assert.Equal(t, "fr_en", in.Pair)
	assert.Equal(t, 0.3, in.Ratio)
	assert.Equal(t, "fr", in.Source.Language)
	assert.Equal(t, "en", in.Target.Language)
	assert.Equal(t, []model.Triple{{Head: 0, Tail: 1, Relation: 0}}, in.Source.Triples)
	assert.Empty(t, in.Target.Triples)
	require.Len(t, in.Source.Rules, 1)
	assert.Equal(t, 0.6, in.Source.Rules[0].Confidence)
	assert.Equal(t, "Paris", in.Source.Vocab.EntityName(0))
	assert.Equal(t, "country", in.Target.Vocab.RelationName(1))
	assert.Len(t, in.EntitySeeds, 2)
	assert.Len(t, in.RelationSeeds, 2)
	assert.Equal(t, 1, stats.Rules[model.Source].Read)
}

func TestLoadPair_SkipsConstantRules(t *testing.T) {
	dir := pairFixture(t)
	writeFiles(t, dir, map[string]string{
		"AMIE/rule_for_triples_fr.txt": "?a  capitale  ?b   => ?a  pays  ?b\t0.2\t0.5\t0.6\t4\n" +
			"?a  capitale  Paris   => ?a  pays  France\t0.2\t0.5\t0.9\t4\n",
	})

	in, stats, err := LoadPair(dir, 0.3, "pca")
	require.NoError(t, err)

	assert.Len(t, in.Source.Rules, 1)
	assert.Equal(t, RuleStats{Read: 2, Unsupported: 1}, stats.Rules[model.Source])
}

func TestLoadPair_RejectsRatioBeforeReading(t *testing.T) {
	_, _, err := LoadPair(filepath.Join(t.TempDir(), "does_not_exist"), 0.25, "pca")

	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoadPair_MissingSeeds(t *testing.T) {
	dir := pairFixture(t)

	_, _, err := LoadPair(dir, 0.5, "pca")

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"zh_en", "fr_en", "ja_en", "en_de"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes_en"), nil, 0o644))

	dirs, err := Discover(root, "*_en")
	require.NoError(t, err)

	var names []string
	for _, d := range dirs {
		names = append(names, filepath.Base(d))
	}
	assert.Equal(t, []string{"fr_en", "ja_en", "zh_en"}, names)
}
