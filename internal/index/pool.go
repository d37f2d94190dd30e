package index

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/models"
	"github.com/bioarchive/studysearch/internal/schema"
)

// updateTimeKey is the commit user-data key on the submission index
var updateTimeKey = []byte("updateTime")

// indexDirNames maps logical index names to their on-disk directories
var indexDirNames = map[string]string{
	models.IndexSubmission: "submission_index",
	models.IndexPagetab:    "pagetab_index",
	models.IndexFiles:      "file_index",
	models.IndexFacet:      "facet_index",
	models.IndexEFO:        "efo_index",
}

// SpellChecker is the suggester wired into the pool after the indexes are
// open; consulted lazily by the response processor
type SpellChecker interface {
	Suggest(term string) []string
}

// entry owns the writer and reader state for one named index
type entry struct {
	name string
	path string
	idx  bleve.Index

	writer *Writer

	mu       sync.Mutex // guards generation and refresh
	gen      uint64
	acquired int64 // outstanding snapshots, all generations
}

// Pool owns one Writer and a versioned reader per named index. Acquire and
// release of ReaderSnapshots is the only read path.
type Pool struct {
	baseDir string
	mu      sync.RWMutex
	entries map[string]*entry
	spell   SpellChecker
	logger  arbor.ILogger
}

// NewPool creates an empty pool rooted at baseDir
func NewPool(baseDir string, logger arbor.ILogger) *Pool {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Pool{
		baseDir: baseDir,
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// OpenIndex opens or creates the named index under the pool base directory.
// I/O errors here are fatal to startup.
func (p *Pool) OpenIndex(name string, registry *schema.Registry) error {
	dirName, ok := indexDirNames[name]
	if !ok {
		return fmt.Errorf("unknown index name: %s", name)
	}
	path := filepath.Join(p.baseDir, dirName)

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, BuildMapping(name, registry))
	}
	if err != nil {
		return fmt.Errorf("failed to open index %s at %s: %w", name, path, err)
	}

	e := &entry{
		name: name,
		path: path,
		idx:  idx,
	}
	e.writer = newWriter(name, idx, p.logger)

	p.mu.Lock()
	p.entries[name] = e
	p.mu.Unlock()

	count, _ := idx.DocCount()
	p.logger.Info().
		Str("index", name).
		Str("path", path).
		Int64("documents", int64(count)).
		Msg("Index opened")

	return nil
}

// OpenAll opens every named index
func (p *Pool) OpenAll(registry *schema.Registry) error {
	for _, name := range []string{
		models.IndexSubmission,
		models.IndexPagetab,
		models.IndexFiles,
		models.IndexFacet,
		models.IndexEFO,
	} {
		if err := p.OpenIndex(name, registry); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) entry(name string) (*entry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[name]
	if !ok {
		return nil, fmt.Errorf("index not open: %s", name)
	}
	return e, nil
}

// Acquire returns a handle on the live named index, stamped with its
// current refresh generation. Searches through the handle also see commits
// made after Acquire. Must be paired with Release on every exit path.
func (p *Pool) Acquire(name string) (*ReaderSnapshot, error) {
	e, err := p.entry(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	gen := e.gen
	e.acquired++
	e.mu.Unlock()

	return &ReaderSnapshot{index: name, gen: gen, idx: e.idx}, nil
}

// Release returns a snapshot to the pool. Releasing a snapshot to the
// wrong index is an invariant violation and fails loudly.
func (p *Pool) Release(name string, s *ReaderSnapshot) error {
	if s == nil {
		return nil
	}
	if s.index != name {
		p.logger.Error().
			Str("expected", name).
			Str("actual", s.index).
			Msg("Snapshot released to wrong index")
		return fmt.Errorf("snapshot for index %s released to index %s", s.index, name)
	}
	if s.released {
		return fmt.Errorf("snapshot for index %s released twice", s.index)
	}
	s.released = true

	e, err := p.entry(name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.acquired--
	e.mu.Unlock()
	return nil
}

// Writer returns the shared writer handle for the named index. Concurrent
// use is allowed; the writer serialises internally.
func (p *Pool) Writer(name string) (*Writer, error) {
	e, err := p.entry(name)
	if err != nil {
		return nil, err
	}
	return e.writer, nil
}

// CommitSubmissionRelatedIndices stamps updateTime commit user-data on the
// submission writer, then commits submission, pagetab and files in that
// order. Cross-index visibility is eventually consistent by design.
func (p *Pool) CommitSubmissionRelatedIndices() error {
	sub, err := p.Writer(models.IndexSubmission)
	if err != nil {
		return err
	}
	sub.SetUserData(string(updateTimeKey), strconv.FormatInt(time.Now().UnixMilli(), 10))

	for _, name := range []string{models.IndexSubmission, models.IndexPagetab, models.IndexFiles} {
		w, err := p.Writer(name)
		if err != nil {
			return err
		}
		if err := w.Commit(); err != nil {
			return fmt.Errorf("commit of %s failed: %w", name, err)
		}
	}
	return nil
}

// RefreshAll advances the refresh generation of every index. It rebuilds
// no reader view and cannot fail: handles wrap the live index, so commits
// are visible to readers as soon as they are applied, with or without a
// RefreshAll.
func (p *Pool) RefreshAll() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.entries {
		e.mu.Lock()
		e.gen++
		e.mu.Unlock()
	}
	p.logger.Debug().Msg("All index readers refreshed")
}

// SetSpellChecker wires the suggester consulted by the response processor
func (p *Pool) SetSpellChecker(sc SpellChecker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spell = sc
}

// GetSpellChecker returns the wired suggester, or nil
func (p *Pool) GetSpellChecker() SpellChecker {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.spell
}

// Outstanding returns the number of currently acquired snapshots for the
// named index; used by leak tests and the shutdown grace period
func (p *Pool) Outstanding(name string) int64 {
	e, err := p.entry(name)
	if err != nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acquired
}

// Metadata reports name, location, updateTime, size and document count for
// every open index
func (p *Pool) Metadata() []models.IndexMetadata {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]models.IndexMetadata, 0, len(p.entries))
	for _, name := range []string{
		models.IndexSubmission,
		models.IndexPagetab,
		models.IndexFiles,
		models.IndexFacet,
		models.IndexEFO,
	} {
		e, ok := p.entries[name]
		if !ok {
			continue
		}

		var updateTime int64
		if raw, err := e.idx.GetInternal(updateTimeKey); err == nil && len(raw) > 0 {
			if ms, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
				updateTime = ms
			}
		}

		count, _ := e.idx.DocCount()

		out = append(out, models.IndexMetadata{
			Name:              e.name,
			Location:          e.path,
			UpdateTime:        updateTime,
			Size:              dirSize(e.path),
			NumberOfDocuments: count,
		})
	}
	return out
}

// dirSize sums regular file sizes under a directory
func dirSize(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}

// Close waits up to ShutdownGracePeriod for acquired snapshots to be
// released, abandoning any still outstanding after that, then commits
// pending writes and closes every index. Called once at shutdown.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	deadline := time.Now().Add(common.ShutdownGracePeriod)
	for _, e := range p.entries {
		for {
			e.mu.Lock()
			outstanding := e.acquired
			e.mu.Unlock()
			if outstanding == 0 || time.Now().After(deadline) {
				if outstanding > 0 {
					p.logger.Warn().
						Str("index", e.name).
						Int64("outstanding", outstanding).
						Msg("Abandoning in-flight readers at shutdown")
				}
				break
			}
			time.Sleep(50 * time.Millisecond)
		}

		if err := e.writer.Commit(); err != nil {
			p.logger.Error().Err(err).Str("index", e.name).Msg("Final commit failed")
		}
		if err := e.idx.Close(); err != nil {
			p.logger.Error().Err(err).Str("index", e.name).Msg("Index close failed")
		}
	}
	p.entries = make(map[string]*entry)
}

// RemoveIndexDirs deletes all index directories under baseDir; used by the
// reset-on-startup option for clean test runs
func RemoveIndexDirs(baseDir string) error {
	for _, dir := range indexDirNames {
		if err := os.RemoveAll(filepath.Join(baseDir, dir)); err != nil {
			return err
		}
	}
	return nil
}
