package ontology

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/index"
	"github.com/bioarchive/studysearch/internal/models"
)

// sweepPageSize bounds each page of the initialization sweep
const sweepPageSize = 1000

// termPattern pairs a lower-cased ontology term with its word-boundary
// matcher
type termPattern struct {
	term    string
	pattern *regexp.Regexp
}

// TermStore holds the ontology in memory: term ids, primary terms,
// ancestor chains and the free-text matcher. Built once after the
// ontology index is open; read-only and lock-free afterwards.
type TermStore struct {
	pool   *index.Pool
	logger arbor.ILogger

	initOnce sync.Once
	ready    chan struct{}
	initErr  error

	termToID        map[string]string   // lowercase term -> ontology id
	idToTerm        map[string]string   // ontology id -> original-case primary term
	idToParent      map[string]string   // ontology id -> canonical parent id
	termToAncestors map[string][]string // lowercase term -> [root ... immediate parent]
	patterns        []termPattern       // every known term, longest first
}

// NewTermStore creates an uninitialised term store
func NewTermStore(pool *index.Pool, logger arbor.ILogger) *TermStore {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &TermStore{
		pool:   pool,
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Initialize sweeps every live ontology document and builds the lookup
// maps. One-shot; concurrent and repeated calls wait for the first run.
// Callers must not invoke the match methods before Initialize returns.
func (t *TermStore) Initialize() error {
	t.initOnce.Do(func() {
		t.initErr = t.build()
		close(t.ready)
	})
	<-t.ready
	return t.initErr
}

func (t *TermStore) build() error {
	snap, err := t.pool.Acquire(models.IndexEFO)
	if err != nil {
		return fmt.Errorf("ontology store initialization failed: %w", err)
	}
	defer func() {
		if rerr := t.pool.Release(models.IndexEFO, snap); rerr != nil {
			t.logger.Error().Err(rerr).Msg("Snapshot release failed")
		}
	}()

	termToID := make(map[string]string)
	idToTerm := make(map[string]string)
	idToParent := make(map[string]string)
	var altPairs [][2]string // alternative term -> id, applied after primaries

	from := 0
	for {
		req := bleve.NewSearchRequestOptions(query.NewMatchAllQuery(), sweepPageSize, from, false)
		req.Fields = []string{models.FieldEFOID, models.FieldTerm, models.FieldAltTerm, models.FieldParent}

		res, err := snap.Index().Search(req)
		if err != nil {
			return fmt.Errorf("ontology sweep failed: %w", err)
		}
		if len(res.Hits) == 0 {
			break
		}

		for _, hit := range res.Hits {
			id, _ := hit.Fields[models.FieldEFOID].(string)
			term, _ := hit.Fields[models.FieldTerm].(string)
			if id == "" || term == "" {
				continue
			}

			lower := strings.ToLower(term)
			termToID[lower] = id
			idToTerm[id] = term

			for _, alt := range stringValues(hit.Fields[models.FieldAltTerm]) {
				altPairs = append(altPairs, [2]string{strings.ToLower(alt), id})
			}
			if parents := stringValues(hit.Fields[models.FieldParent]); len(parents) > 0 {
				idToParent[id] = parents[0]
			}
		}

		from += len(res.Hits)
		if uint64(from) >= res.Total {
			break
		}
	}

	// alternative terms never shadow a primary term
	for _, pair := range altPairs {
		if _, exists := termToID[pair[0]]; !exists {
			termToID[pair[0]] = pair[1]
		}
	}

	t.termToID = termToID
	t.idToTerm = idToTerm
	t.idToParent = idToParent
	t.termToAncestors = t.buildAncestors()
	t.patterns = buildPatterns(termToID)

	t.logger.Info().
		Int("terms", len(termToID)).
		Int("nodes", len(idToTerm)).
		Msg("Ontology term store initialized")

	return nil
}

// buildAncestors computes [root ... immediate parent] for every term by
// memoised recursion over the canonical-parent chain
func (t *TermStore) buildAncestors() map[string][]string {
	memo := make(map[string][]string, len(t.idToTerm))

	var chain func(id string, seen map[string]bool) []string
	chain = func(id string, seen map[string]bool) []string {
		if cached, ok := memo[id]; ok {
			return cached
		}
		if seen[id] {
			// defensive: the parent graph is declared acyclic
			return nil
		}
		seen[id] = true

		parent, ok := t.idToParent[id]
		if !ok || t.idToTerm[parent] == "" {
			memo[id] = []string{}
			return memo[id]
		}
		ancestors := append(append([]string{}, chain(parent, seen)...), t.idToTerm[parent])
		memo[id] = ancestors
		return ancestors
	}

	out := make(map[string][]string, len(t.termToID))
	for lower, id := range t.termToID {
		out[lower] = chain(id, make(map[string]bool))
	}
	return out
}

// buildPatterns compiles the word-boundary matcher for every known term,
// longest term first
func buildPatterns(termToID map[string]string) []termPattern {
	terms := make([]string, 0, len(termToID))
	for term := range termToID {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})

	patterns := make([]termPattern, 0, len(terms))
	for _, term := range terms {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			continue
		}
		patterns = append(patterns, termPattern{term: term, pattern: re})
	}
	return patterns
}

// match is one candidate occurrence in the scanned text
type match struct {
	term  string
	start int
	end   int
}

// FindEFOTerms scans free text for ontology terms: all candidate matches
// are collected, longer matches win over overlapping shorter ones, and the
// surviving matches map to their primary terms in original case,
// deduplicated in first-seen order.
func (t *TermStore) FindEFOTerms(text string) []string {
	if text == "" || len(t.patterns) == 0 {
		return nil
	}

	var matches []match
	for _, tp := range t.patterns {
		for _, loc := range tp.pattern.FindAllStringIndex(text, -1) {
			matches = append(matches, match{term: tp.term, start: loc[0], end: loc[1]})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.Slice(matches, func(i, j int) bool {
		li, lj := matches[i].end-matches[i].start, matches[j].end-matches[j].start
		if li != lj {
			return li > lj
		}
		return matches[i].start < matches[j].start
	})

	var kept []match
	for _, m := range matches {
		overlaps := false
		for _, k := range kept {
			if m.start < k.end && k.start < m.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, m)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].start < kept[j].start })

	seen := make(map[string]bool)
	var out []string
	for _, m := range kept {
		primary := t.primaryTerm(m.term)
		if primary == "" || seen[primary] {
			continue
		}
		seen[primary] = true
		out = append(out, primary)
	}
	return out
}

// primaryTerm maps any known term to its node's primary term
func (t *TermStore) primaryTerm(lower string) string {
	id, ok := t.termToID[lower]
	if !ok {
		return ""
	}
	return t.idToTerm[id]
}

// FacetValues derives the depth-encoded ontology facet entries for free
// text: every matched term contributes its full ancestor chain plus
// itself as "depth/term" labels, deduplicated
func (t *TermStore) FacetValues(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, term := range t.FindEFOTerms(text) {
		chain := append(append([]string{}, t.GetAncestors(term)...), term)
		for depth, label := range chain {
			entry := fmt.Sprintf("%d/%s", depth, label)
			if !seen[entry] {
				seen[entry] = true
				out = append(out, entry)
			}
		}
	}
	return out
}

// GetAncestors returns [root ... immediate parent] for a term,
// case-insensitively
func (t *TermStore) GetAncestors(term string) []string {
	return t.termToAncestors[strings.ToLower(term)]
}

// GetEFOId returns the ontology id of a term, or ""
func (t *TermStore) GetEFOId(term string) string {
	return t.termToID[strings.ToLower(term)]
}

// GetTerm returns the original-case primary term of an ontology id, or ""
func (t *TermStore) GetTerm(id string) string {
	return t.idToTerm[id]
}

// IsEFOTerm reports whether the term is known, case-insensitively
func (t *TermStore) IsEFOTerm(term string) bool {
	_, ok := t.termToID[strings.ToLower(term)]
	return ok
}

// stringValues converts a stored field value into a string slice
func stringValues(v interface{}) []string {
	switch s := v.(type) {
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok && str != "" {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
