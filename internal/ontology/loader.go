package ontology

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/bioarchive/studysearch/internal/common"
	"github.com/bioarchive/studysearch/internal/index"
	"github.com/bioarchive/studysearch/internal/models"
)

// Loader builds the ontology index from an OWL file. Stop-words, extra
// synonyms and the ignore list come from the ontology configuration.
type Loader struct {
	pool   *index.Pool
	cfg    common.OntologyConfig
	logger arbor.ILogger
}

// NewLoader creates the ontology index loader
func NewLoader(pool *index.Pool, cfg common.OntologyConfig, logger arbor.ILogger) *Loader {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Loader{pool: pool, cfg: cfg, logger: logger}
}

// LoadFromOWL rebuilds the ontology index from the OWL file at path.
// Returns the number of indexed nodes.
func (l *Loader) LoadFromOWL(path string) (int, error) {
	nodes, err := ParseOWL(path)
	if err != nil {
		return 0, err
	}

	stopwords := l.loadStopwords()
	ignored := l.loadIgnoreList()
	extraSynonyms := l.loadSynonymFile()

	byID := make(map[string]*models.OntologyNode, len(nodes))
	var kept []*models.OntologyNode
	for _, n := range nodes {
		if n.Term == "" || ignored[n.ID] || stopwords[strings.ToLower(n.Term)] {
			continue
		}
		n.AltTerms = dropStopwords(n.AltTerms, stopwords)
		n.Synonyms = dropStopwords(n.Synonyms, stopwords)
		if extra, ok := extraSynonyms[strings.ToLower(n.Term)]; ok {
			n.Synonyms = append(n.Synonyms, extra...)
		}
		byID[n.ID] = n
		kept = append(kept, n)
	}

	// child labels feed the related-term expansion; presence of children
	// drives the autocomplete tree markers
	children := make(map[string][]string)
	for _, n := range kept {
		for _, parent := range n.Parents {
			if _, ok := byID[parent]; ok {
				children[parent] = append(children[parent], n.Term)
			}
		}
	}

	writer, err := l.pool.Writer(models.IndexEFO)
	if err != nil {
		return 0, err
	}
	if _, err := writer.DeleteAll(); err != nil {
		return 0, err
	}

	for _, n := range kept {
		doc := map[string]interface{}{
			models.FieldEFOID:       n.ID,
			models.FieldTerm:        n.Term,
			models.FieldAltTerm:     n.AltTerms,
			models.FieldParent:      n.Parents,
			models.FieldSynonyms:    n.Synonyms,
			models.FieldEFOTerms:    children[n.ID],
			models.FieldHasChildren: len(children[n.ID]) > 0,
			models.FieldExpansion:   expansionTokens(n),
			models.FieldFacetPath:   facetPath(n, byID),
		}
		if err := writer.Upsert(n.ID, doc); err != nil {
			return 0, err
		}
	}

	if err := writer.Commit(); err != nil {
		return 0, err
	}
	l.pool.RefreshAll()

	l.logger.Info().
		Str("source", path).
		Int("nodes", len(kept)).
		Msg("Ontology index rebuilt")

	return len(kept), nil
}

// expansionTokens returns the lower-cased lookup tokens of a node: the
// primary term plus every alternative term and synonym, multi-word values
// space-normalised into single tokens
func expansionTokens(n *models.OntologyNode) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(term string) {
		token := strings.ToLower(strings.Join(strings.Fields(term), " "))
		if token == "" || seen[token] {
			return
		}
		seen[token] = true
		out = append(out, token)
	}
	add(n.Term)
	for _, t := range n.AltTerms {
		add(t)
	}
	for _, t := range n.Synonyms {
		add(t)
	}
	return out
}

// facetPath encodes the ancestor chain as depth-prefixed labels:
// "0/root", "1/child", ..., "n/term"
func facetPath(n *models.OntologyNode, byID map[string]*models.OntologyNode) []string {
	var chain []string
	seen := make(map[string]bool)
	current := n
	for current != nil && !seen[current.ID] {
		seen[current.ID] = true
		chain = append([]string{current.Term}, chain...)
		if len(current.Parents) == 0 {
			break
		}
		current = byID[current.Parents[0]]
	}

	out := make([]string, len(chain))
	for i, term := range chain {
		out[i] = fmt.Sprintf("%d/%s", i, term)
	}
	return out
}

func dropStopwords(terms []string, stopwords map[string]bool) []string {
	out := terms[:0]
	for _, t := range terms {
		if !stopwords[strings.ToLower(t)] {
			out = append(out, t)
		}
	}
	return out
}

// loadStopwords reads the comma/newline separated stop-word file
func (l *Loader) loadStopwords() map[string]bool {
	out := make(map[string]bool)
	if l.cfg.Stopwords == "" {
		return out
	}
	data, err := os.ReadFile(l.cfg.Stopwords)
	if err != nil {
		l.logger.Warn().Err(err).Str("path", l.cfg.Stopwords).Msg("Failed to read ontology stop-words")
		return out
	}
	for _, token := range strings.FieldsFunc(string(data), func(r rune) bool { return r == ',' || r == '\n' || r == '\r' }) {
		if token = strings.TrimSpace(token); token != "" {
			out[strings.ToLower(token)] = true
		}
	}
	return out
}

// loadIgnoreList reads the one-id-per-line ignore file
func (l *Loader) loadIgnoreList() map[string]bool {
	out := make(map[string]bool)
	if l.cfg.IgnoreList == "" {
		return out
	}
	data, err := os.ReadFile(l.cfg.IgnoreList)
	if err != nil {
		l.logger.Warn().Err(err).Str("path", l.cfg.IgnoreList).Msg("Failed to read ontology ignore list")
		return out
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
			out[line] = true
		}
	}
	return out
}

// loadSynonymFile reads extra synonym groups: one comma-separated group
// per line, first value is the primary term
func (l *Loader) loadSynonymFile() map[string][]string {
	out := make(map[string][]string)
	if l.cfg.Synonyms == "" {
		return out
	}
	data, err := os.ReadFile(l.cfg.Synonyms)
	if err != nil {
		l.logger.Warn().Err(err).Str("path", l.cfg.Synonyms).Msg("Failed to read ontology synonyms")
		return out
	}
	for _, line := range strings.Split(string(data), "\n") {
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			continue
		}
		primary := strings.ToLower(strings.TrimSpace(parts[0]))
		if primary == "" {
			continue
		}
		for _, syn := range parts[1:] {
			if syn = strings.TrimSpace(syn); syn != "" {
				out[primary] = append(out[primary], syn)
			}
		}
	}
	return out
}

// ParseOWL streams an OWL RDF/XML file and extracts every named class:
// id from rdf:about, primary label from rdfs:label, alternative terms and
// synonyms from the EFO/SKOS/oboInOwl annotation properties, parents from
// rdfs:subClassOf resources in document order.
func ParseOWL(path string) ([]*models.OntologyNode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open OWL file %s: %w", path, err)
	}
	defer f.Close()

	decoder := xml.NewDecoder(f)

	var nodes []*models.OntologyNode
	var current *models.OntologyNode
	var depth int
	var textTarget *string
	var deprecated bool

	appendText := func(s string) {
		if textTarget != nil {
			*textTarget += s
		}
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse OWL file %s: %w", path, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if current == nil {
				if el.Name.Local == "Class" {
					about := attrValue(el, "about")
					if about == "" {
						// anonymous class (restriction); skip subtree
						_ = decoder.Skip()
						continue
					}
					current = &models.OntologyNode{ID: about}
					depth = 0
					deprecated = false
				}
				continue
			}

			depth++
			textTarget = nil
			switch el.Name.Local {
			case "label":
				if current.Term == "" {
					textTarget = &current.Term
				}
			case "alternative_term", "altLabel":
				current.AltTerms = append(current.AltTerms, "")
				textTarget = &current.AltTerms[len(current.AltTerms)-1]
			case "hasExactSynonym", "hasRelatedSynonym":
				current.Synonyms = append(current.Synonyms, "")
				textTarget = &current.Synonyms[len(current.Synonyms)-1]
			case "subClassOf":
				if resource := attrValue(el, "resource"); resource != "" {
					current.Parents = append(current.Parents, resource)
				} else {
					// anonymous superclass expression
					_ = decoder.Skip()
					depth--
				}
			case "deprecated":
				deprecated = true
			}

		case xml.CharData:
			appendText(string(el))

		case xml.EndElement:
			if current == nil {
				continue
			}
			if depth == 0 && el.Name.Local == "Class" {
				current.Term = strings.TrimSpace(current.Term)
				current.AltTerms = trimAll(current.AltTerms)
				current.Synonyms = trimAll(current.Synonyms)
				if !deprecated && current.Term != "" {
					nodes = append(nodes, current)
				}
				current = nil
				continue
			}
			if depth > 0 {
				depth--
			}
			textTarget = nil
		}
	}

	return nodes, nil
}

func attrValue(el xml.StartElement, local string) string {
	for _, attr := range el.Attr {
		if attr.Name.Local == local {
			return attr.Value
		}
	}
	return ""
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
