package search

import (
	"testing"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/studysearch/internal/models"
	"github.com/bioarchive/studysearch/internal/schema"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	registry, err := schema.NewRegistry("", nil)
	require.NoError(t, err)
	return NewParser(registry)
}

func TestParseRestrictedField(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		name  string
		query string
	}{
		{"at start", "access:private"},
		{"after space", "leukocyte access:private"},
		{"mixed case", "ACCESS:private"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.query, "public", nil)
			require.Error(t, err)
			var invalid *models.InvalidQueryError
			require.ErrorAs(t, err, &invalid)
			assert.Contains(t, invalid.Message, "access")
		})
	}
}

func TestParseEmptyQueryMatchesAll(t *testing.T) {
	p := newTestParser(t)

	q, err := p.Parse("", "public", nil)
	require.NoError(t, err)
	assert.IsType(t, &query.MatchAllQuery{}, q)

	q, err = p.Parse("   ", "public", nil)
	require.NoError(t, err)
	assert.IsType(t, &query.MatchAllQuery{}, q)
}

func TestParseSingleTerm(t *testing.T) {
	p := newTestParser(t)

	q, err := p.Parse("leukocyte", "public", nil)
	require.NoError(t, err)

	// one clause per default query field
	disj, ok := q.(*query.DisjunctionQuery)
	require.True(t, ok, "expected disjunction across default fields, got %T", q)
	assert.NotEmpty(t, disj.Disjuncts)
	for _, clause := range disj.Disjuncts {
		tq, ok := clause.(*query.TermQuery)
		require.True(t, ok)
		assert.Equal(t, "leukocyte", tq.Term)
	}
}

func TestParsePhrase(t *testing.T) {
	p := newTestParser(t)

	q, err := p.Parse(`"white blood cell"`, "public", map[string][]string{models.FieldContent: nil})
	require.NoError(t, err)

	pq, ok := q.(*query.PhraseQuery)
	require.True(t, ok, "got %T", q)
	assert.Equal(t, []string{"white", "blood", "cell"}, pq.Terms)
	assert.Equal(t, models.FieldContent, pq.Field)
}

func TestParseNumericRange(t *testing.T) {
	p := newTestParser(t)

	q, err := p.Parse("files:[2 TO 10]", "public", nil)
	require.NoError(t, err)

	nr, ok := q.(*query.NumericRangeQuery)
	require.True(t, ok, "got %T", q)
	assert.Equal(t, float64(2), *nr.Min)
	assert.Equal(t, float64(10), *nr.Max)
}

func TestParseNumericRangeExclusiveBoundsAdjusted(t *testing.T) {
	p := newTestParser(t)

	q, err := p.Parse("files:{2 TO 10}", "public", nil)
	require.NoError(t, err)

	nr, ok := q.(*query.NumericRangeQuery)
	require.True(t, ok)
	assert.Equal(t, float64(3), *nr.Min)
	assert.Equal(t, float64(9), *nr.Max)
}

func TestParseNumericRangeOpenEnds(t *testing.T) {
	p := newTestParser(t)

	q, err := p.Parse("files:[* TO 10]", "public", nil)
	require.NoError(t, err)

	nr, ok := q.(*query.NumericRangeQuery)
	require.True(t, ok)
	assert.True(t, *nr.Min < -1e300)
	assert.Equal(t, float64(10), *nr.Max)
}

func TestParseNumericRangeBadBound(t *testing.T) {
	p := newTestParser(t)

	_, err := p.Parse("files:[abc TO 10]", "public", nil)
	var invalid *models.InvalidQueryError
	require.ErrorAs(t, err, &invalid)
}

func TestParseWildcardPreserved(t *testing.T) {
	p := newTestParser(t)
	fields := map[string][]string{models.FieldContent: nil}

	q, err := p.Parse("leu*yte", "public", fields)
	require.NoError(t, err)
	wq, ok := q.(*query.WildcardQuery)
	require.True(t, ok, "got %T", q)
	assert.Equal(t, "leu*yte", wq.Wildcard)

	q, err = p.Parse("leuko*", "public", fields)
	require.NoError(t, err)
	pq, ok := q.(*query.PrefixQuery)
	require.True(t, ok, "got %T", q)
	assert.Equal(t, "leuko", pq.Prefix)
}

func TestParseFuzzySuffix(t *testing.T) {
	p := newTestParser(t)

	q, err := p.Parse("leukocyte~1", "public", map[string][]string{models.FieldContent: nil})
	require.NoError(t, err)

	fq, ok := q.(*query.FuzzyQuery)
	require.True(t, ok, "got %T", q)
	assert.Equal(t, "leukocyte", fq.Term)
	assert.Equal(t, 1, fq.Fuzziness)
}

func TestParseBooleanOperators(t *testing.T) {
	p := newTestParser(t)
	fields := map[string][]string{models.FieldContent: nil}

	// default combination is conjunctive
	q, err := p.Parse("leukocyte osteoclast", "public", fields)
	require.NoError(t, err)
	conj, ok := q.(*query.ConjunctionQuery)
	require.True(t, ok, "got %T", q)
	assert.Len(t, conj.Conjuncts, 2)

	// OR merges adjacent clauses
	q, err = p.Parse("leukocyte OR osteoclast", "public", fields)
	require.NoError(t, err)
	disj, ok := q.(*query.DisjunctionQuery)
	require.True(t, ok, "got %T", q)
	assert.Len(t, disj.Disjuncts, 2)

	// NOT negates the next clause
	q, err = p.Parse("leukocyte NOT osteoclast", "public", fields)
	require.NoError(t, err)
	boolean, ok := q.(*query.BooleanQuery)
	require.True(t, ok, "got %T", q)
	assert.NotNil(t, boolean.Must)
	assert.NotNil(t, boolean.MustNot)
}

func TestParseFieldFilters(t *testing.T) {
	p := newTestParser(t)

	q, err := p.Parse("leukocyte", "public", map[string][]string{
		models.FieldContent: nil,
		models.FieldType:    {"RNA-seq"},
	})
	require.NoError(t, err)

	conj, ok := q.(*query.ConjunctionQuery)
	require.True(t, ok, "got %T", q)
	require.Len(t, conj.Conjuncts, 2)

	filter, ok := conj.Conjuncts[1].(*query.TermQuery)
	require.True(t, ok)
	assert.Equal(t, "rna-seq", filter.Term)
	assert.Equal(t, models.FieldType, filter.FieldVal)
}

func TestParseQualifierOnStringField(t *testing.T) {
	p := newTestParser(t)

	q, err := p.Parse("accession:S-BSST1", "public", nil)
	require.NoError(t, err)

	tq, ok := q.(*query.TermQuery)
	require.True(t, ok, "got %T", q)
	assert.Equal(t, "s-bsst1", tq.Term)
	assert.Equal(t, models.FieldAccession, tq.FieldVal)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"single term", "leukocyte", 1},
		{"two terms", "leukocyte osteoclast", 2},
		{"phrase", `"white blood cell"`, 1},
		{"phrase and term", `"white blood cell" study`, 2},
		{"qualifier", "title:study", 1},
		{"operator", "a AND b", 3},
		{"unclosed quote", `"white blood`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tokenize(tt.query), tt.want)
		})
	}
}
