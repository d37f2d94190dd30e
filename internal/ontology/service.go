package ontology

import (
	"context"
	"sync/atomic"

	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/httpclient"
	"github.com/bioarchive/studysearch/internal/index"
	"github.com/bioarchive/studysearch/internal/models"
)

// Service owns the ontology subsystem: the in-memory term store, the
// index loader and the autocomplete navigator. The term store is replaced
// atomically on refresh; readers always see a complete store.
type Service struct {
	pool     *index.Pool
	executor *index.Executor
	loader   *Loader
	auto     *Autocomplete
	cfg      common.OntologyConfig
	store    atomic.Pointer[TermStore]
	logger   arbor.ILogger
}

// NewService wires the ontology subsystem
func NewService(pool *index.Pool, executor *index.Executor, cfg *common.Config, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		pool:     pool,
		executor: executor,
		loader:   NewLoader(pool, cfg.Ontology, logger),
		auto:     NewAutocomplete(executor, cfg.Search.AutocompleteFilterByIndex, logger),
		cfg:      cfg.Ontology,
		logger:   logger,
	}
}

// Initialize builds the ontology index from the configured OWL file when
// the index is empty, then loads the term store. Must complete before the
// match methods are used.
func (s *Service) Initialize() error {
	if s.cfg.OwlFilename != "" {
		snap, err := s.pool.Acquire(models.IndexEFO)
		if err != nil {
			return err
		}
		count, countErr := snap.Index().DocCount()
		if rerr := s.pool.Release(models.IndexEFO, snap); rerr != nil {
			s.logger.Error().Err(rerr).Msg("Snapshot release failed")
		}
		if countErr != nil {
			return countErr
		}
		if count == 0 {
			if _, err := s.loader.LoadFromOWL(s.cfg.OwlFilename); err != nil {
				return err
			}
		}
	}

	store := NewTermStore(s.pool, s.logger)
	if err := store.Initialize(); err != nil {
		return err
	}
	s.store.Store(store)
	return nil
}

// Store returns the current term store; nil before Initialize
func (s *Service) Store() *TermStore {
	return s.store.Load()
}

// FacetValues tags free text with depth-encoded ontology facet entries
// through the current term store
func (s *Service) FacetValues(text string) []string {
	store := s.store.Load()
	if store == nil {
		return nil
	}
	return store.FacetValues(text)
}

// Autocomplete returns the autocomplete navigator
func (s *Service) Autocomplete() *Autocomplete {
	return s.auto
}

// Refresh downloads the ontology from the configured update URL, rebuilds
// the index and swaps in a freshly built term store
func (s *Service) Refresh(ctx context.Context, downloader *httpclient.Downloader) error {
	if s.cfg.UpdateURL == "" || s.cfg.LocalOwlFilename == "" {
		s.logger.Debug().Msg("Ontology refresh not configured")
		return nil
	}

	if err := downloader.Download(ctx, s.cfg.UpdateURL, s.cfg.LocalOwlFilename); err != nil {
		return err
	}

	if _, err := s.loader.LoadFromOWL(s.cfg.LocalOwlFilename); err != nil {
		return err
	}

	store := NewTermStore(s.pool, s.logger)
	if err := store.Initialize(); err != nil {
		return err
	}
	s.store.Store(store)

	s.logger.Info().Msg("Ontology refreshed")
	return nil
}
