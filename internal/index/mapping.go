package index

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/bioarchive/studysearch/internal/models"
	"github.com/bioarchive/studysearch/internal/schema"
)

// BuildMapping constructs the bleve index mapping for a named index.
// Submission mappings are driven by the field registry; the other indexes
// have fixed schemas.
func BuildMapping(name string, registry *schema.Registry) mapping.IndexMapping {
	switch name {
	case models.IndexSubmission:
		return submissionMapping(registry)
	case models.IndexFiles:
		return fileMapping()
	case models.IndexPagetab:
		return pagetabMapping()
	case models.IndexEFO:
		return ontologyMapping()
	case models.IndexFacet:
		return facetMapping()
	default:
		return bleve.NewIndexMapping()
	}
}

func submissionMapping(registry *schema.Registry) mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()
	for _, d := range registry.Collection(schema.PublicCollection) {
		dm.AddFieldMappingsAt(d.Name, fieldMappingFor(d))
	}
	im.DefaultMapping = dm
	return im
}

// fieldMappingFor translates one PropertyDescriptor into a bleve field
// mapping
func fieldMappingFor(d *models.PropertyDescriptor) *mapping.FieldMapping {
	switch d.FieldType {
	case models.FieldTypeLong, models.FieldTypeDate:
		fm := bleve.NewNumericFieldMapping()
		fm.Store = true
		fm.IncludeInAll = false
		fm.DocValues = true
		return fm
	case models.FieldTypeTokenizedString:
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = analyzerName(d.Analyzer)
		fm.Store = true
		fm.IncludeInAll = false
		fm.DocValues = d.Sortable
		// term vectors back the snippet highlighter
		fm.IncludeTermVectors = true
		return fm
	case models.FieldTypeFacet:
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		fm.IncludeInAll = false
		fm.DocValues = true
		return fm
	default: // string
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		fm.IncludeInAll = false
		fm.DocValues = true
		return fm
	}
}

// analyzerName resolves a descriptor analyzer name to a registered bleve
// analyzer, defaulting to the standard analyzer
func analyzerName(name string) string {
	switch name {
	case schema.AnalyzerKeyword:
		return keyword.Name
	case schema.AnalyzerStandard, "":
		return standard.Name
	default:
		return standard.Name
	}
}

func fileMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = keyword.Name

	dm := bleve.NewDocumentMapping()

	kw := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		fm.IncludeInAll = false
		fm.DocValues = true
		return fm
	}

	dm.AddFieldMappingsAt(models.FieldID, kw())
	dm.AddFieldMappingsAt(models.FieldOwner, kw())
	dm.AddFieldMappingsAt(models.FieldFilePath, kw())

	nameFM := bleve.NewTextFieldMapping()
	nameFM.Analyzer = standard.Name
	nameFM.Store = true
	nameFM.IncludeInAll = false
	dm.AddFieldMappingsAt(models.FieldFileName, nameFM)

	sizeFM := bleve.NewNumericFieldMapping()
	sizeFM.Store = true
	sizeFM.IncludeInAll = false
	sizeFM.DocValues = true
	dm.AddFieldMappingsAt(models.FieldFileSize, sizeFM)

	dm.AddFieldMappingsAt(models.FieldFileSection, kw())
	dm.AddFieldMappingsAt(models.FieldFileType, kw())

	dirFM := bleve.NewBooleanFieldMapping()
	dirFM.Store = true
	dirFM.IncludeInAll = false
	dm.AddFieldMappingsAt(models.FieldFileDirectory, dirFM)

	im.DefaultMapping = dm
	return im
}

func pagetabMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = keyword.Name

	dm := bleve.NewDocumentMapping()

	accFM := bleve.NewTextFieldMapping()
	accFM.Analyzer = keyword.Name
	accFM.Store = true
	accFM.IncludeInAll = false
	dm.AddFieldMappingsAt(models.FieldAccession, accFM)

	// raw pagetab payload is stored, never searched
	rawFM := bleve.NewTextFieldMapping()
	rawFM.Store = true
	rawFM.Index = false
	rawFM.IncludeInAll = false
	dm.AddFieldMappingsAt(models.FieldPagetab, rawFM)

	im.DefaultMapping = dm
	return im
}

// LowerKeywordAnalyzer indexes whole values lower-cased so ontology term
// lookups and prefix matches are case-insensitive while stored values keep
// their original case
const LowerKeywordAnalyzer = "keyword_lower"

func ontologyMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = keyword.Name

	_ = im.AddCustomAnalyzer(LowerKeywordAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})

	dm := bleve.NewDocumentMapping()

	kw := func(docValues bool) *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = LowerKeywordAnalyzer
		fm.Store = true
		fm.IncludeInAll = false
		fm.DocValues = docValues
		return fm
	}

	idFM := bleve.NewTextFieldMapping()
	idFM.Analyzer = keyword.Name
	idFM.Store = true
	idFM.IncludeInAll = false
	dm.AddFieldMappingsAt(models.FieldEFOID, idFM)

	dm.AddFieldMappingsAt(models.FieldTerm, kw(true)) // sorted by term in autocomplete
	dm.AddFieldMappingsAt(models.FieldAltTerm, kw(true))

	parentFM := bleve.NewTextFieldMapping()
	parentFM.Analyzer = keyword.Name
	parentFM.Store = true
	parentFM.IncludeInAll = false
	dm.AddFieldMappingsAt(models.FieldParent, parentFM)

	dm.AddFieldMappingsAt(models.FieldSynonyms, kw(false))
	dm.AddFieldMappingsAt(models.FieldExpansion, kw(false))
	dm.AddFieldMappingsAt(models.FieldEFOTerms, kw(false))
	dm.AddFieldMappingsAt(models.FieldFacetPath, kw(false))

	childFM := bleve.NewBooleanFieldMapping()
	childFM.Store = true
	childFM.IncludeInAll = false
	dm.AddFieldMappingsAt(models.FieldHasChildren, childFM)

	im.DefaultMapping = dm
	return im
}

func facetMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = keyword.Name

	dm := bleve.NewDocumentMapping()

	kw := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		fm.IncludeInAll = false
		return fm
	}

	dm.AddFieldMappingsAt("dimension", kw())
	dm.AddFieldMappingsAt("title", kw())
	dm.AddFieldMappingsAt("facet_type", kw())

	im.DefaultMapping = dm
	return im
}
