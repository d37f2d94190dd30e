package search

import (
	"context"
	"testing"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioarchive/studysearch/internal/auth"
	"github.com/bioarchive/studysearch/internal/models"
)

func TestSecureAnonymous(t *testing.T) {
	base := query.NewMatchAllQuery()

	secured := Secure(context.Background(), base)

	conj, ok := secured.(*query.ConjunctionQuery)
	require.True(t, ok, "got %T", secured)
	require.Len(t, conj.Conjuncts, 2)

	filter, ok := conj.Conjuncts[1].(*query.TermQuery)
	require.True(t, ok)
	assert.Equal(t, "public", filter.Term)
	assert.Equal(t, models.FieldAccess, filter.FieldVal)
}

func TestSecureAuthenticatedUser(t *testing.T) {
	ctx := auth.WithPrincipal(context.Background(), &auth.Principal{Login: "Frank"})

	secured := Secure(ctx, query.NewMatchAllQuery())

	conj, ok := secured.(*query.ConjunctionQuery)
	require.True(t, ok)

	filter, ok := conj.Conjuncts[1].(*query.DisjunctionQuery)
	require.True(t, ok, "got %T", conj.Conjuncts[1])
	require.Len(t, filter.Disjuncts, 2)

	own, ok := filter.Disjuncts[1].(*query.TermQuery)
	require.True(t, ok)
	assert.Equal(t, "frank", own.Term)
}

func TestSecureSuperUser(t *testing.T) {
	ctx := auth.WithPrincipal(context.Background(), &auth.Principal{Login: "system", SuperUser: true})

	base := query.NewMatchAllQuery()
	assert.Same(t, base, Secure(ctx, base))
}
