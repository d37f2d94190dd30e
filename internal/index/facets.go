package index

import (
	"github.com/bioarchive/studysearch/internal/models"
	"github.com/bioarchive/studysearch/internal/schema"
)

// SeedFacetDimensions writes one document per facet dimension into the
// facet index so the admin surface and UI can enumerate dimensions without
// consulting the schema files
func SeedFacetDimensions(pool *Pool, registry *schema.Registry) error {
	writer, err := pool.Writer(models.IndexFacet)
	if err != nil {
		return err
	}

	for _, d := range registry.FacetDescriptors(schema.PublicCollection) {
		doc := map[string]interface{}{
			"dimension":  d.Name,
			"title":      d.Title,
			"facet_type": d.FacetType,
		}
		if err := writer.Upsert(d.Name, doc); err != nil {
			return err
		}
	}

	return writer.Commit()
}
