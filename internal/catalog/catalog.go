// Package catalog holds the static problem, shipping, salutation and status
// catalog shown by the intake wizard and validated by the ticket service.
//
// A Catalog is loaded once at start-up and never mutated afterwards; every
// accessor returns copies so callers cannot alter shared state.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/display-support/internal/domain"
)

//go:embed default.yaml
var defaultCatalog []byte

// Problem is one selectable problem descriptor within a category.
type Problem struct {
	ID          string `yaml:"id" json:"id"`
	Label       string `yaml:"label" json:"label"`
	Description string `yaml:"description" json:"description"`
}

// Category groups the problems a customer may pick after choosing a category.
type Category struct {
	ID          domain.Category `yaml:"id" json:"id"`
	Label       string          `yaml:"label" json:"label"`
	Description string          `yaml:"description" json:"description"`
	Problems    []Problem       `yaml:"problems" json:"problems"`
}

// ShippingOption is a display-only shipping choice. Price is a label, never charged.
type ShippingOption struct {
	ID          string `yaml:"id" json:"id"`
	Label       string `yaml:"label" json:"label"`
	Price       string `yaml:"price" json:"price"`
	Description string `yaml:"description" json:"description"`
	Recommended bool   `yaml:"recommended" json:"recommended"`
}

// Salutation is a labelled form of address.
type Salutation struct {
	ID    domain.Salutation `yaml:"id" json:"id"`
	Label string            `yaml:"label" json:"label"`
}

// Status carries customer-facing copy for a lifecycle stage.
type Status struct {
	ID          domain.TicketStatus `yaml:"id" json:"id"`
	Label       string              `yaml:"label" json:"label"`
	Description string              `yaml:"description" json:"description"`
}

// Provider is the read-only view consumers depend on.
type Provider interface {
	Categories() []Category
	Problems(category domain.Category) []Problem
	HasProblem(category domain.Category, problemID string) bool
	ShippingOptions() []ShippingOption
	HasShippingOption(id string) bool
	Salutations() []Salutation
	Statuses() []Status
	StatusLabel(status domain.TicketStatus) string
}

type document struct {
	Categories      []Category       `yaml:"categories"`
	ShippingOptions []ShippingOption `yaml:"shipping_options"`
	Salutations     []Salutation     `yaml:"salutations"`
	Statuses        []Status         `yaml:"statuses"`
}

// Catalog is the immutable in-memory catalog.
type Catalog struct {
	doc        document
	categories map[domain.Category]int
	shipping   map[string]struct{}
	statuses   map[domain.TicketStatus]int
}

var _ Provider = (*Catalog)(nil)

// Default parses the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file; an empty path falls back to the embedded default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{
		doc:        doc,
		categories: make(map[domain.Category]int, len(doc.Categories)),
		shipping:   make(map[string]struct{}, len(doc.ShippingOptions)),
		statuses:   make(map[domain.TicketStatus]int, len(doc.Statuses)),
	}
	for i, cat := range doc.Categories {
		if !cat.ID.Valid() {
			return nil, fmt.Errorf("catalog: unknown category %q", cat.ID)
		}
		if len(cat.Problems) == 0 {
			return nil, fmt.Errorf("catalog: category %q has no problems", cat.ID)
		}
		c.categories[cat.ID] = i
	}
	for _, cat := range domain.Categories {
		if _, ok := c.categories[cat]; !ok {
			return nil, fmt.Errorf("catalog: missing category %q", cat)
		}
	}
	if len(doc.ShippingOptions) == 0 {
		return nil, fmt.Errorf("catalog: no shipping options")
	}
	for _, opt := range doc.ShippingOptions {
		if opt.ID == "" {
			return nil, fmt.Errorf("catalog: shipping option without id")
		}
		c.shipping[opt.ID] = struct{}{}
	}
	for _, s := range doc.Salutations {
		if !s.ID.Valid() {
			return nil, fmt.Errorf("catalog: unknown salutation %q", s.ID)
		}
	}
	for i, s := range doc.Statuses {
		if !s.ID.Valid() {
			return nil, fmt.Errorf("catalog: unknown status %q", s.ID)
		}
		c.statuses[s.ID] = i
	}
	return c, nil
}

func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.doc.Categories))
	for i, cat := range c.doc.Categories {
		cat.Problems = append([]Problem(nil), cat.Problems...)
		out[i] = cat
	}
	return out
}

// Problems returns the problem catalog for category, or nil when unknown.
func (c *Catalog) Problems(category domain.Category) []Problem {
	i, ok := c.categories[category]
	if !ok {
		return nil
	}
	return append([]Problem(nil), c.doc.Categories[i].Problems...)
}

func (c *Catalog) HasProblem(category domain.Category, problemID string) bool {
	i, ok := c.categories[category]
	if !ok {
		return false
	}
	for _, p := range c.doc.Categories[i].Problems {
		if p.ID == problemID {
			return true
		}
	}
	return false
}

func (c *Catalog) ShippingOptions() []ShippingOption {
	return append([]ShippingOption(nil), c.doc.ShippingOptions...)
}

func (c *Catalog) HasShippingOption(id string) bool {
	_, ok := c.shipping[id]
	return ok
}

func (c *Catalog) Salutations() []Salutation {
	return append([]Salutation(nil), c.doc.Salutations...)
}

func (c *Catalog) Statuses() []Status {
	return append([]Status(nil), c.doc.Statuses...)
}

// StatusLabel falls back to the raw status value when no label is configured.
func (c *Catalog) StatusLabel(status domain.TicketStatus) string {
	if i, ok := c.statuses[status]; ok {
		return c.doc.Statuses[i].Label
	}
	return string(status)
}
