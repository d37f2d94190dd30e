package index

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/models"
)

// ViewCountLookup resolves the current view count for an accession; nil
// disables view stamping
type ViewCountLookup func(accession string) int64

// OntologyTagger derives the depth-encoded ontology facet values for a
// document's free text; nil disables ontology tagging
type OntologyTagger func(text string) []string

// TxnManager coordinates per-submission updates across the coupled
// submission, pagetab and files indexes. Updates are idempotent at the
// submission level.
type TxnManager struct {
	pool      *Pool
	viewCount ViewCountLookup
	logger    arbor.ILogger

	mu     sync.RWMutex
	tagger OntologyTagger
}

// NewTxnManager creates the indexing transaction manager
func NewTxnManager(pool *Pool, viewCount ViewCountLookup, logger arbor.ILogger) *TxnManager {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &TxnManager{pool: pool, viewCount: viewCount, logger: logger}
}

// SetOntologyTagger wires the ontology facet tagger once the term store is
// ready
func (t *TxnManager) SetOntologyTagger(tagger OntologyTagger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tagger = tagger
}

func (t *TxnManager) ontologyTagger() OntologyTagger {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tagger
}

// UpdateSubmission replaces the documents of one submission: deletes the
// related pagetab and file documents, stages the new ones and upserts the
// submission document keyed on its accession. The caller decides when to
// Commit.
func (t *TxnManager) UpdateSubmission(accNo string, sub models.FlatDocument, files []models.FlatDocument, pagetab string) error {
	acc := strings.ToLower(strings.TrimSpace(accNo))
	if acc == "" {
		return models.NewInvalidArgument("accession must not be empty")
	}

	ptWriter, err := t.pool.Writer(models.IndexPagetab)
	if err != nil {
		return err
	}
	if _, err := ptWriter.DeleteByField(models.FieldAccession, acc); err != nil {
		return err
	}
	if pagetab != "" {
		if err := ptWriter.Upsert(acc, map[string]interface{}{
			models.FieldAccession: acc,
			models.FieldPagetab:   pagetab,
		}); err != nil {
			return err
		}
	}

	fileWriter, err := t.pool.Writer(models.IndexFiles)
	if err != nil {
		return err
	}
	if _, err := fileWriter.DeleteByField(models.FieldOwner, acc); err != nil {
		return err
	}
	for i, f := range files {
		doc := normaliseFileDoc(acc, i+1, f)
		if err := fileWriter.Upsert(doc[models.FieldID].(string), doc); err != nil {
			return err
		}
	}

	subWriter, err := t.pool.Writer(models.IndexSubmission)
	if err != nil {
		return err
	}
	doc := t.normaliseSubmission(acc, sub)
	if err := subWriter.Upsert(acc, doc); err != nil {
		return err
	}

	t.logger.Debug().
		Str("accession", acc).
		Int("files", len(files)).
		Msg("Submission staged")

	return nil
}

// Commit stamps the updateTime user-data, commits the submission-related
// indexes in order and refreshes all readers
func (t *TxnManager) Commit() error {
	if err := t.pool.CommitSubmissionRelatedIndices(); err != nil {
		return err
	}
	t.pool.RefreshAll()
	return nil
}

// DeleteSubmission removes every document of the accession from the
// submission, files and pagetab indexes, then commits
func (t *TxnManager) DeleteSubmission(accNo string) error {
	acc := strings.ToLower(strings.TrimSpace(accNo))
	if acc == "" {
		return models.NewInvalidArgument("accession must not be empty")
	}

	subWriter, err := t.pool.Writer(models.IndexSubmission)
	if err != nil {
		return err
	}
	if _, err := subWriter.DeleteByField(models.FieldAccession, acc); err != nil {
		return err
	}
	subWriter.Delete(acc)

	fileWriter, err := t.pool.Writer(models.IndexFiles)
	if err != nil {
		return err
	}
	if _, err := fileWriter.DeleteByField(models.FieldOwner, acc); err != nil {
		return err
	}

	ptWriter, err := t.pool.Writer(models.IndexPagetab)
	if err != nil {
		return err
	}
	if _, err := ptWriter.DeleteByField(models.FieldAccession, acc); err != nil {
		return err
	}
	ptWriter.Delete(acc)

	t.logger.Info().Str("accession", acc).Msg("Submission deleted")

	return t.Commit()
}

// normaliseSubmission applies the write-time invariants: canonical
// lower-case accession, lower-cased access tags, release-time defaulting,
// derived release year, pipe-splitting of multi-valued facet strings and
// the current view count.
func (t *TxnManager) normaliseSubmission(acc string, sub models.FlatDocument) map[string]interface{} {
	doc := make(map[string]interface{}, len(sub)+4)
	for k, v := range sub {
		doc[k] = v
	}

	doc[models.FieldID] = acc
	doc[models.FieldAccession] = acc

	switch v := doc[models.FieldAccess].(type) {
	case string:
		doc[models.FieldAccess] = lowerAll(strings.Split(v, models.FacetValueSeparator))
	case []string:
		doc[models.FieldAccess] = lowerAll(v)
	case nil:
		doc[models.FieldAccess] = []string{}
	}

	releaseTime := asInt64(doc[models.FieldReleaseTime])
	if releaseTime == 0 {
		if isPublic(doc) {
			releaseTime = asInt64(doc["modification_time"])
			if releaseTime == 0 {
				releaseTime = time.Now().UnixMilli()
			}
		} else {
			releaseTime = models.ReleaseTimeAbsent
		}
	}
	doc[models.FieldReleaseTime] = releaseTime
	delete(doc, "modification_time")

	if releaseTime > 0 {
		doc[models.FieldReleaseYear] = strconv.Itoa(time.UnixMilli(releaseTime).UTC().Year())
	}

	// facet dimensions use | as the in-string multi-value delimiter
	for _, field := range []string{models.FieldCollection, models.FieldType, models.FieldOntology} {
		if s, ok := doc[field].(string); ok && s != "" {
			values := strings.Split(s, models.FacetValueSeparator)
			if field == models.FieldCollection || field == models.FieldType {
				values = lowerAll(values)
			}
			doc[field] = values
		}
	}

	if t.viewCount != nil {
		doc[models.FieldViews] = t.viewCount(acc)
	}

	// the ontology facet is derived from the content when the source
	// supplied none
	if _, ok := doc[models.FieldOntology]; !ok {
		if tagger := t.ontologyTagger(); tagger != nil {
			if content, ok := doc[models.FieldContent].(string); ok && content != "" {
				if paths := tagger(content); len(paths) > 0 {
					doc[models.FieldOntology] = paths
				}
			}
		}
	}

	return doc
}

// normaliseFileDoc builds one file document with the id and owner
// invariants applied
func normaliseFileDoc(acc string, position int, f models.FlatDocument) map[string]interface{} {
	doc := make(map[string]interface{}, len(f)+2)
	for k, v := range f {
		doc[k] = v
	}
	doc[models.FieldID] = fmt.Sprintf("%s-%d", acc, position)
	doc[models.FieldOwner] = acc
	if _, ok := doc[models.FieldFileDirectory]; !ok {
		doc[models.FieldFileDirectory] = false
	}
	return doc
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, strings.ToLower(v))
		}
	}
	return out
}

func isPublic(doc map[string]interface{}) bool {
	switch v := doc[models.FieldAccess].(type) {
	case []string:
		for _, tag := range v {
			if strings.EqualFold(tag, "public") {
				return true
			}
		}
	case string:
		return strings.Contains(strings.ToLower(v), "public")
	}
	return false
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		if ms, err := strconv.ParseInt(n, 10, 64); err == nil {
			return ms
		}
	}
	return 0
}
