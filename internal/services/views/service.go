package views

import (
	"strings"
	"sync/atomic"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bioarchive/studysearch/internal/common"
)

// ViewCount is one persisted per-accession counter
type ViewCount struct {
	Accession string `badgerhold:"key"`
	Count     int64
}

// Service maintains the process-wide view-count map. Readers see a
// consistent snapshot via copy-on-write; a single writer reloads on a
// timer.
type Service struct {
	store   *badgerhold.Store
	current atomic.Pointer[map[string]int64]
	logger  arbor.ILogger
}

// NewService creates the view-count service and performs the initial load
func NewService(store *badgerhold.Store, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	s := &Service{store: store, logger: logger}
	empty := make(map[string]int64)
	s.current.Store(&empty)
	if err := s.Reload(); err != nil {
		logger.Warn().Err(err).Msg("Initial view-count load failed - starting empty")
	}
	return s
}

// Lookup returns the current view count for an accession
func (s *Service) Lookup(accession string) int64 {
	snapshot := *s.current.Load()
	return snapshot[strings.ToLower(accession)]
}

// Increment bumps and persists the counter for an accession; the live
// snapshot picks the change up on the next reload
func (s *Service) Increment(accession string) error {
	accession = strings.ToLower(accession)

	var vc ViewCount
	err := s.store.Get(accession, &vc)
	if err != nil && err != badgerhold.ErrNotFound {
		return err
	}
	vc.Accession = accession
	vc.Count++
	return s.store.Upsert(accession, &vc)
}

// Reload replaces the snapshot with the persisted counters. Single-writer;
// scheduled on a timer.
func (s *Service) Reload() error {
	var counts []ViewCount
	if err := s.store.Find(&counts, nil); err != nil {
		return err
	}

	snapshot := make(map[string]int64, len(counts))
	for _, vc := range counts {
		snapshot[vc.Accession] = vc.Count
	}
	s.current.Store(&snapshot)

	s.logger.Debug().Int("accessions", len(snapshot)).Msg("View-count map reloaded")
	return nil
}
