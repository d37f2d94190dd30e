package interfaces

import "context"

// AutocompleteService serves keyword completion and ontology tree
// navigation. Every method returns "" on blank input or I/O error.
type AutocompleteService interface {
	GetKeywords(ctx context.Context, q string, limit int) string
	GetKeywordsWithCounts(ctx context.Context, q string, limit int) string
	GetEfoTree(ctx context.Context, id string) string
	GetEfoTreeWithCounts(ctx context.Context, id string, limit int) string
}

// TermMatcher finds ontology terms embedded in free text and answers
// constant-time term lookups
type TermMatcher interface {
	FindEFOTerms(text string) []string
	GetAncestors(term string) []string
	GetEFOId(term string) string
	GetTerm(id string) string
	IsEFOTerm(term string) bool
}
