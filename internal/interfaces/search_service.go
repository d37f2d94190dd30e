package interfaces

import (
	"context"

	"github.com/bioarchive/studysearch/internal/models"
)

// SearchService is the query pipeline facade
type SearchService interface {
	// Search runs one request end-to-end: parse, expand, secure, drill
	// down, execute, post-process
	Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error)

	// TermFrequency returns the document frequency of a term in a field
	// of the named index
	TermFrequency(ctx context.Context, field, term, indexName string) (int, error)
}
