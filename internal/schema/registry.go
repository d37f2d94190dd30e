package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/models"
)

// PublicCollection is the collection holding every releasable submission
const PublicCollection = "public"

// collectionFile is the on-disk shape of one collection schema overlay
type collectionFile struct {
	Name   string                      `toml:"name"`
	Parent string                      `toml:"parent"`
	Fields []models.PropertyDescriptor `toml:"fields"`
}

// Registry supplies field metadata to the parser, expander and facet
// engine. Built once at startup; read-only afterwards.
type Registry struct {
	mu          sync.RWMutex
	collections map[string][]*models.PropertyDescriptor
	global      map[string]*models.PropertyDescriptor
	children    map[string][]string // collection -> subcollections
	parents     map[string]string   // collection -> single parent
	logger      arbor.ILogger
}

// NewRegistry builds a registry from the built-in descriptor set plus any
// collection overlay files under dir (optional).
func NewRegistry(dir string, logger arbor.ILogger) (*Registry, error) {
	if logger == nil {
		logger = common.GetLogger()
	}

	r := &Registry{
		collections: make(map[string][]*models.PropertyDescriptor),
		global:      make(map[string]*models.PropertyDescriptor),
		children:    make(map[string][]string),
		parents:     make(map[string]string),
		logger:      logger,
	}

	r.register(PublicCollection, "", defaultDescriptors())

	if dir != "" {
		if err := r.loadDir(dir); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// loadDir loads every *.toml collection overlay under dir
func (r *Registry) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Warn().Str("dir", dir).Msg("Collection schema directory does not exist - using built-in fields only")
			return nil
		}
		return fmt.Errorf("failed to read schema directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read schema file %s: %w", path, err)
		}
		var cf collectionFile
		if err := toml.Unmarshal(data, &cf); err != nil {
			return fmt.Errorf("failed to parse schema file %s: %w", path, err)
		}
		if cf.Name == "" {
			return fmt.Errorf("schema file %s has no collection name", path)
		}
		descs := make([]*models.PropertyDescriptor, 0, len(cf.Fields))
		for i := range cf.Fields {
			descs = append(descs, &cf.Fields[i])
		}
		r.register(cf.Name, cf.Parent, descs)
		r.logger.Info().
			Str("collection", cf.Name).
			Int("fields", len(descs)).
			Msg("Loaded collection schema")
	}

	return nil
}

// register adds a collection and merges its fields into the global union.
// A duplicate parent assignment is a warning, not an error.
func (r *Registry) register(name, parent string, descs []*models.PropertyDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.collections[name] = append(r.collections[name], descs...)
	for _, d := range descs {
		if _, exists := r.global[d.Name]; !exists {
			r.global[d.Name] = d
		}
	}

	if parent != "" {
		if existing, ok := r.parents[name]; ok && existing != parent {
			r.logger.Warn().
				Str("collection", name).
				Str("existing_parent", existing).
				Str("new_parent", parent).
				Msg("Duplicate parent for collection - keeping existing")
		} else if !ok {
			r.parents[name] = parent
			r.children[parent] = append(r.children[parent], name)
		}
	}
}

// Get returns the global descriptor for a field name, or nil
func (r *Registry) Get(field string) *models.PropertyDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.global[field]
}

// Collection returns the descriptors of a collection, falling back to the
// public collection for unknown names
func (r *Registry) Collection(name string) []*models.PropertyDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if descs, ok := r.collections[name]; ok {
		return descs
	}
	return r.collections[PublicCollection]
}

// FacetDescriptors returns the facet-typed descriptors of a collection
func (r *Registry) FacetDescriptors(collection string) []*models.PropertyDescriptor {
	var out []*models.PropertyDescriptor
	for _, d := range r.Collection(collection) {
		if d.IsFacet() {
			out = append(out, d)
		}
	}
	return out
}

// DefaultQueryFields returns the field names used when no explicit field
// filter is supplied: retrieved fields that are expanded or tokenized.
func (r *Registry) DefaultQueryFields(collection string) []string {
	var out []string
	for _, d := range r.Collection(collection) {
		if d.Retrieved && (d.Expanded || d.FieldType == models.FieldTypeTokenizedString) {
			out = append(out, d.Name)
		}
	}
	sort.Strings(out)
	return out
}

// ExpandedFields returns the set of field names the query expander may
// rewrite
func (r *Registry) ExpandedFields() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool)
	for name, d := range r.global {
		if d.Expanded {
			out[name] = true
		}
	}
	return out
}

// HasChildren reports whether a collection has registered subcollections
func (r *Registry) HasChildren(collection string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.children[collection]) > 0
}

// Children returns the subcollections of a collection
func (r *Registry) Children(collection string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.children[collection]...)
}

// Parent returns the parent collection name, or ""
func (r *Registry) Parent(collection string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parents[collection]
}
