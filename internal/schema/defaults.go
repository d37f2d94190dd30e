package schema

import (
	"github.com/bioarchive/studysearch/internal/models"
)

// Analyzer names resolved by the index mapping layer
const (
	AnalyzerKeyword  = "keyword"
	AnalyzerStandard = "standard"
)

// defaultDescriptors is the built-in field set of the public collection.
// Collection overlay files extend or shadow these.
func defaultDescriptors() []*models.PropertyDescriptor {
	return []*models.PropertyDescriptor{
		{
			Name:      models.FieldID,
			Title:     "ID",
			FieldType: models.FieldTypeString,
			Analyzer:  AnalyzerKeyword,
			Retrieved: true,
		},
		{
			Name:        models.FieldAccession,
			Title:       "Accession",
			FieldType:   models.FieldTypeString,
			Analyzer:    AnalyzerKeyword,
			JSONPaths:   []string{"$.accno"},
			Retrieved:   true,
			ToLowerCase: true,
		},
		{
			Name:        models.FieldAccess,
			Title:       "Access",
			FieldType:   models.FieldTypeString,
			Analyzer:    AnalyzerKeyword,
			MultiValued: true,
			ToLowerCase: true,
			IsPrivate:   true,
		},
		{
			Name:      models.FieldReleaseTime,
			Title:     "Release time",
			FieldType: models.FieldTypeLong,
			Sortable:  true,
			Retrieved: true,
			Parser:    models.ParserTimestamp,
		},
		{
			Name:      models.FieldContent,
			Title:     "Content",
			FieldType: models.FieldTypeTokenizedString,
			Analyzer:  AnalyzerStandard,
			Retrieved: true,
			Expanded:  true,
		},
		{
			Name:      models.FieldTitle,
			Title:     "Title",
			FieldType: models.FieldTypeTokenizedString,
			Analyzer:  AnalyzerStandard,
			JSONPaths: []string{"$.section.attributes[?(@.name=='Title')].value", "$.attributes[?(@.name=='Title')].value"},
			Sortable:  true,
			Retrieved: true,
			Expanded:  true,
		},
		{
			Name:      models.FieldFiles,
			Title:     "Files",
			FieldType: models.FieldTypeLong,
			Sortable:  true,
			Retrieved: true,
			Parser:    models.ParserLong,
		},
		{
			Name:      models.FieldViews,
			Title:     "Views",
			FieldType: models.FieldTypeLong,
			Sortable:  true,
			Retrieved: true,
			Parser:    models.ParserLong,
		},
		{
			Name:      models.FieldAuthor,
			Title:     "Author",
			FieldType: models.FieldTypeTokenizedString,
			Analyzer:  AnalyzerStandard,
			JSONPaths: []string{"$.section.subsections[?(@.type=='Author')].attributes[?(@.name=='Name')].value"},
			Retrieved: true,
		},
		{
			Name:        models.FieldCollection,
			Title:       "Collection",
			FieldType:   models.FieldTypeFacet,
			MultiValued: true,
			ToLowerCase: true,
			FacetType:   "string",
			NAVisible:   false,
			Retrieved:   true,
		},
		{
			Name:        models.FieldType,
			Title:       "Study type",
			FieldType:   models.FieldTypeFacet,
			MultiValued: true,
			ToLowerCase: true,
			FacetType:   "string",
			NAVisible:   true,
			Retrieved:   true,
		},
		{
			Name:      models.FieldReleaseYear,
			Title:     "Released",
			FieldType: models.FieldTypeFacet,
			FacetType: "string",
			NAVisible: false,
			Retrieved: true,
		},
		{
			Name:        models.FieldOntology,
			Title:       "Ontology",
			FieldType:   models.FieldTypeFacet,
			MultiValued: true,
			FacetType:   "hierarchy",
			NAVisible:   false,
		},
	}
}
