package models

// FieldKind enumerates the indexable field kinds
type FieldKind string

const (
	FieldTypeString          FieldKind = "string"
	FieldTypeTokenizedString FieldKind = "tokenized_string"
	FieldTypeLong            FieldKind = "long"
	FieldTypeFacet           FieldKind = "facet"
	FieldTypeDate            FieldKind = "date"
)

// ParserKind enumerates the known source-value parsers. Extraction itself
// happens in the ingestion collaborator; the kind is carried so schema
// files round-trip faithfully.
type ParserKind string

const (
	ParserNone      ParserKind = ""
	ParserString    ParserKind = "string"
	ParserLong      ParserKind = "long"
	ParserBoolean   ParserKind = "boolean"
	ParserTimestamp ParserKind = "timestamp"
	ParserJoin      ParserKind = "join"
)

// PropertyDescriptor is the immutable schema record for one indexed field
type PropertyDescriptor struct {
	Name         string     `toml:"name" json:"name"`
	Title        string     `toml:"title" json:"title"`
	FieldType    FieldKind  `toml:"field_type" json:"fieldType"`
	Analyzer     string     `toml:"analyzer" json:"analyzer,omitempty"`
	JSONPaths    []string   `toml:"json_paths" json:"jsonPaths,omitempty"` // source extractors, logically OR-ed
	Sortable     bool       `toml:"sortable" json:"sortable,omitempty"`
	MultiValued  bool       `toml:"multi_valued" json:"multiValued,omitempty"`
	FacetType    string     `toml:"facet_type" json:"facetType,omitempty"`
	NAVisible    bool       `toml:"na_visible" json:"naVisible,omitempty"`
	Parser       ParserKind `toml:"parser" json:"parser,omitempty"`
	Retrieved    bool       `toml:"retrieved" json:"retrieved,omitempty"`
	Expanded     bool       `toml:"expanded" json:"expanded,omitempty"` // query expander opts in
	ToLowerCase  bool       `toml:"to_lower_case" json:"toLowerCase,omitempty"`
	DefaultValue string     `toml:"default_value" json:"defaultValue,omitempty"`
	IsPrivate    bool       `toml:"is_private" json:"isPrivate,omitempty"`
	Match        string     `toml:"match" json:"match,omitempty"`
}

// IsFacet reports whether the field carries facet values
func (p *PropertyDescriptor) IsFacet() bool {
	return p.FieldType == FieldTypeFacet
}

// NALabel returns the label used for absent facet values
func (p *PropertyDescriptor) NALabel() string {
	if p.DefaultValue != "" {
		return p.DefaultValue
	}
	return "N/A"
}
