package search

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/index"
	"github.com/bioarchive/studysearch/internal/models"
)

// Spell-checking parameters
const (
	spellMinPrefix      = 2
	spellMaxEdits       = 2
	spellMinQueryLength = 3
	spellMaxFrequency   = 0.01
	spellAccuracy       = 0.5
)

// accessionPatterns recognise query strings that look like accessions
var accessionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z]-[A-Z]+[-\d].*`),
	regexp.MustCompile(`^[A-Z]{3,}\d+.*`),
}

// Suggester performs direct, dictionary-less spell checking against the
// live term dictionaries. Suggestions are only offered for terms absent
// from the index.
type Suggester struct {
	pool   *index.Pool
	count  int
	logger arbor.ILogger
}

// NewSuggester creates the spell suggester. count bounds the number of
// suggestions per query.
func NewSuggester(pool *index.Pool, count int, logger arbor.ILogger) *Suggester {
	if logger == nil {
		logger = common.GetLogger()
	}
	if count <= 0 {
		count = 5
	}
	return &Suggester{pool: pool, count: count, logger: logger}
}

// Suggest runs the cascade: the accession field when the query looks like
// an accession, then the ontology term field, then the content field.
// The first non-empty result wins.
func (s *Suggester) Suggest(queryStr string) []string {
	queryStr = strings.TrimSpace(queryStr)
	if queryStr == "" {
		return nil
	}

	if looksLikeAccession(queryStr) {
		if found := s.suggestField(models.FieldAccession, models.IndexSubmission, queryStr); len(found) > 0 {
			return found
		}
	}

	if found := s.suggestField(models.FieldTerm, models.IndexEFO, queryStr); len(found) > 0 {
		return found
	}

	return s.suggestField(models.FieldContent, models.IndexSubmission, queryStr)
}

func looksLikeAccession(q string) bool {
	for _, p := range accessionPatterns {
		if p.MatchString(q) {
			return true
		}
	}
	return false
}

// candidate is one dictionary term within edit distance
type candidate struct {
	term     string
	distance int
	freq     uint64
}

// suggestField walks the field dictionary collecting terms within the
// edit-distance and accuracy bounds. I/O errors are logged and the step
// returns nothing.
func (s *Suggester) suggestField(field, indexName, queryStr string) []string {
	term := strings.ToLower(queryStr)
	if len(term) < spellMinQueryLength {
		return nil
	}

	snap, err := s.pool.Acquire(indexName)
	if err != nil {
		s.logger.Warn().Err(err).Str("index", indexName).Msg("Spell suggestion acquire failed")
		return nil
	}
	defer func() {
		if rerr := s.pool.Release(indexName, snap); rerr != nil {
			s.logger.Error().Err(rerr).Str("index", indexName).Msg("Snapshot release failed")
		}
	}()

	idx := snap.Index()

	docCount, err := idx.DocCount()
	if err != nil || docCount == 0 {
		return nil
	}

	prefix := term
	if len(prefix) > spellMinPrefix {
		prefix = term[:spellMinPrefix]
	}

	dict, err := idx.FieldDictPrefix(field, []byte(prefix))
	if err != nil {
		s.logger.Warn().Err(err).Str("index", indexName).Str("field", field).
			Msg("Spell suggestion dictionary open failed")
		return nil
	}
	defer dict.Close()

	var candidates []candidate
	for {
		entry, err := dict.Next()
		if err != nil {
			s.logger.Warn().Err(err).Str("field", field).Msg("Spell suggestion dictionary read failed")
			return nil
		}
		if entry == nil {
			break
		}

		// suggest only when not in index: an exact dictionary hit ends
		// the step with no result
		if entry.Term == term {
			return nil
		}

		if abs(len(entry.Term)-len(term)) > spellMaxEdits {
			continue
		}
		dist := boundedLevenshtein(term, entry.Term, spellMaxEdits)
		if dist < 1 || dist > spellMaxEdits {
			continue
		}
		longest := len(term)
		if len(entry.Term) > longest {
			longest = len(entry.Term)
		}
		if 1.0-float64(dist)/float64(longest) < spellAccuracy {
			continue
		}

		candidates = append(candidates, candidate{term: entry.Term, distance: dist, freq: entry.Count})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].freq > candidates[j].freq
	})

	out := make([]string, 0, s.count)
	for _, c := range candidates {
		out = append(out, c.term)
		if len(out) == s.count {
			break
		}
	}
	return out
}

// boundedLevenshtein computes edit distance with early exit once the
// running minimum exceeds maxDist. Returns maxDist+1 on overflow.
func boundedLevenshtein(a, b string, maxDist int) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}
		if rowMin > maxDist {
			return maxDist + 1
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
