package index

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/ternarybob/arbor"
)

// deleteScanPage bounds each id-collection pass of a query-based delete
const deleteScanPage = 1000

// Writer is the shared write handle for one index. Updates accumulate in a
// pending batch and become visible on Commit. Safe for concurrent use.
type Writer struct {
	name   string
	idx    bleve.Index
	logger arbor.ILogger

	mu       sync.Mutex
	batch    *bleve.Batch
	userData map[string]string
}

func newWriter(name string, idx bleve.Index, logger arbor.ILogger) *Writer {
	return &Writer{
		name:     name,
		idx:      idx,
		logger:   logger,
		batch:    idx.NewBatch(),
		userData: make(map[string]string),
	}
}

// Upsert stages a document under id, replacing any previous document with
// the same id at commit
func (w *Writer) Upsert(id string, doc map[string]interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.batch.Index(id, doc); err != nil {
		return fmt.Errorf("failed to stage document %s in %s: %w", id, w.name, err)
	}
	return nil
}

// Delete stages a deletion by id
func (w *Writer) Delete(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batch.Delete(id)
}

// DeleteByField stages deletion of every committed document whose field
// equals term (keyword match, lowercased). Returns the number of staged
// deletions.
func (w *Writer) DeleteByField(field, term string) (int, error) {
	tq := query.NewTermQuery(strings.ToLower(term))
	tq.SetField(field)

	deleted := 0
	for {
		req := bleve.NewSearchRequestOptions(tq, deleteScanPage, deleted, false)
		res, err := w.idx.Search(req)
		if err != nil {
			return deleted, fmt.Errorf("delete scan on %s.%s failed: %w", w.name, field, err)
		}
		if len(res.Hits) == 0 {
			return deleted, nil
		}
		w.mu.Lock()
		for _, hit := range res.Hits {
			w.batch.Delete(hit.ID)
		}
		w.mu.Unlock()
		deleted += len(res.Hits)
		if uint64(deleted) >= res.Total {
			return deleted, nil
		}
	}
}

// DeleteAll stages deletion of every committed document; used by full
// index rebuilds
func (w *Writer) DeleteAll() (int, error) {
	deleted := 0
	for {
		req := bleve.NewSearchRequestOptions(query.NewMatchAllQuery(), deleteScanPage, deleted, false)
		res, err := w.idx.Search(req)
		if err != nil {
			return deleted, fmt.Errorf("delete scan on %s failed: %w", w.name, err)
		}
		if len(res.Hits) == 0 {
			return deleted, nil
		}
		w.mu.Lock()
		for _, hit := range res.Hits {
			w.batch.Delete(hit.ID)
		}
		w.mu.Unlock()
		deleted += len(res.Hits)
		if uint64(deleted) >= res.Total {
			return deleted, nil
		}
	}
}

// SetUserData stages a commit user-data entry applied on the next Commit
func (w *Writer) SetUserData(key, value string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.userData[key] = value
}

// Commit applies the pending batch and user-data, making staged changes
// visible to subsequently refreshed readers. I/O failures propagate.
func (w *Writer) Commit() error {
	w.mu.Lock()
	batch := w.batch
	userData := w.userData
	w.batch = w.idx.NewBatch()
	w.userData = make(map[string]string)
	w.mu.Unlock()

	if batch.Size() > 0 {
		if err := w.idx.Batch(batch); err != nil {
			return fmt.Errorf("commit of %s failed: %w", w.name, err)
		}
		w.logger.Debug().
			Str("index", w.name).
			Int("operations", batch.Size()).
			Msg("Batch committed")
	}

	for key, value := range userData {
		if err := w.idx.SetInternal([]byte(key), []byte(value)); err != nil {
			return fmt.Errorf("failed to stamp user data %s on %s: %w", key, w.name, err)
		}
	}

	return nil
}

// Pending returns the number of staged operations
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.batch.Size()
}
