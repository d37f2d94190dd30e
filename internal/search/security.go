package search

import (
	"context"
	"strings"

	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/bioarchive/studysearch/internal/auth"
	"github.com/bioarchive/studysearch/internal/models"
)

// Secure wraps a query with the access-control filter derived from the
// authenticated principal: anonymous callers see public documents,
// authenticated users additionally see documents tagged with their login,
// and superusers see everything.
func Secure(ctx context.Context, q query.Query) query.Query {
	p := auth.FromContext(ctx)
	if p != nil && p.SuperUser {
		return q
	}

	public := query.NewTermQuery("public")
	public.SetField(models.FieldAccess)

	var filter query.Query = public
	if p != nil && p.Login != "" {
		own := query.NewTermQuery(strings.ToLower(p.Login))
		own.SetField(models.FieldAccess)
		filter = query.NewDisjunctionQuery([]query.Query{public, own})
	}

	return query.NewConjunctionQuery([]query.Query{q, filter})
}
