// Package registry loads and serves the declarative rule catalog.
//
// A catalog is immutable once loaded. Hot reload builds a fresh catalog and
// swaps it atomically through a Holder, so in-flight evaluations always see
// a consistent snapshot.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/opensource-finance/heron/internal/domain"
)

// ErrMalformedCatalog indicates the catalog document failed structural
// validation. No partial catalog is ever returned.
var ErrMalformedCatalog = errors.New("malformed rule catalog")

// Document is the on-disk catalog format.
type Document struct {
	Version    string                  `json:"version"`
	RuleGroups map[string][]string     `json:"rule_groups,omitempty"`
	Rules      []domain.RuleDefinition `json:"rules"`
}

// Catalog is a loaded, validated, immutable rule collection.
type Catalog struct {
	version    string
	ruleGroups map[string][]string
	rules      []domain.RuleDefinition
	byID       map[string]*domain.RuleDefinition
	ordered    []*domain.RuleDefinition
}

// Load parses and validates a catalog document from r.
func Load(r io.Reader) (*Catalog, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	return FromDocument(&doc)
}

// LoadFile loads a catalog from a JSON file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// FromDocument validates a parsed document and builds a catalog.
func FromDocument(doc *Document) (*Catalog, error) {
	if err := validate(doc.Rules); err != nil {
		return nil, err
	}

	c := &Catalog{
		version:    doc.Version,
		ruleGroups: doc.RuleGroups,
		rules:      doc.Rules,
		byID:       make(map[string]*domain.RuleDefinition, len(doc.Rules)),
	}

	for i := range c.rules {
		r := &c.rules[i]
		// Duplicate ids are allowed at load time; the evaluator dedupes
		// triggered outcomes. ByID resolves to the first occurrence.
		if _, exists := c.byID[r.ID]; !exists {
			c.byID[r.ID] = r
		}
	}

	c.ordered = make([]*domain.RuleDefinition, 0, len(c.rules))
	for i := range c.rules {
		if c.rules[i].Enabled {
			c.ordered = append(c.ordered, &c.rules[i])
		}
	}
	sort.SliceStable(c.ordered, func(i, j int) bool {
		return c.ordered[i].Priority < c.ordered[j].Priority
	})

	return c, nil
}

// FromDefinitions builds a catalog directly from rule definitions, as when
// reloading from the repository.
func FromDefinitions(version string, rules []*domain.RuleDefinition) (*Catalog, error) {
	doc := &Document{Version: version, Rules: make([]domain.RuleDefinition, 0, len(rules))}
	for _, r := range rules {
		if r != nil {
			doc.Rules = append(doc.Rules, *r)
		}
	}
	return FromDocument(doc)
}

func validate(rules []domain.RuleDefinition) error {
	for i, r := range rules {
		switch {
		case r.ID == "":
			return fmt.Errorf("%w: rule %d missing id", ErrMalformedCatalog, i)
		case r.Bucket == "":
			return fmt.Errorf("%w: rule %s missing bucket", ErrMalformedCatalog, r.ID)
		case r.Condition.Type == "":
			return fmt.Errorf("%w: rule %s missing condition", ErrMalformedCatalog, r.ID)
		case r.Severity.Type == "":
			return fmt.Errorf("%w: rule %s missing severity", ErrMalformedCatalog, r.ID)
		case r.MessageTemplate == "":
			return fmt.Errorf("%w: rule %s missing message template", ErrMalformedCatalog, r.ID)
		}
	}
	return nil
}

// Version returns the catalog version string.
func (c *Catalog) Version() string { return c.version }

// RuleGroups returns the named rule groupings from the catalog document.
func (c *Catalog) RuleGroups() map[string][]string { return c.ruleGroups }

// Len returns the total number of rules, enabled or not.
func (c *Catalog) Len() int { return len(c.rules) }

// Rules returns all rule definitions in document order.
func (c *Catalog) Rules() []domain.RuleDefinition { return c.rules }

// EnabledByPriority returns enabled rules sorted by priority ascending,
// document order breaking ties. The returned slice is shared; callers must
// not modify it.
func (c *Catalog) EnabledByPriority() []*domain.RuleDefinition { return c.ordered }

// ByID returns the rule with the given id.
func (c *Catalog) ByID(id string) (*domain.RuleDefinition, bool) {
	r, ok := c.byID[id]
	return r, ok
}
