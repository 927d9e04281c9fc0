// Package catalog holds the ordered list of catalog items and derives the
// bundle of asset keys each item needs.
//
// Declaration order is priority order: the prefetch scheduler drains jobs
// front to back.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/worshipwaves/WDweb-sub002/pkg/asset"
)

var (
	// ErrDuplicateItem is returned when two items share an id.
	ErrDuplicateItem = errors.New("duplicate catalog item")

	// ErrEmptyID is returned for an item without an id.
	ErrEmptyID = errors.New("catalog item has empty id")

	// ErrBadTemplate is returned for a key template missing a placeholder.
	ErrBadTemplate = errors.New("invalid key template")
)

// Item is one catalog entry.
type Item struct {
	ID  string `yaml:"id" json:"id"`
	Tag int    `yaml:"tag" json:"tag"`
}

// Job is one item's bundle of related keys that should become ready together.
type Job struct {
	ItemID string
	Keys   [3]asset.Key // primary, secondary, tertiary
}

// Template derives the three asset keys of an item. Patterns may use the
// placeholders {id}, {tag} and {tier}.
type Template struct {
	Primary   string `mapstructure:"primary" validate:"required" yaml:"primary"`
	Secondary string `mapstructure:"secondary" validate:"required" yaml:"secondary"`
	Tertiary  string `mapstructure:"tertiary" validate:"required" yaml:"tertiary"`
	Tier      string `mapstructure:"tier" yaml:"tier"`
}

// DefaultTemplate returns the diffuse/normal/roughness layout.
func DefaultTemplate() Template {
	return Template{
		Primary:   "textures/{id}/{tier}/diffuse_{tag}.png",
		Secondary: "textures/{id}/{tier}/normal_{tag}.png",
		Tertiary:  "textures/{id}/{tier}/roughness_{tag}.png",
		Tier:      "2k",
	}
}

// Validate checks that every pattern references the item id.
func (t Template) Validate() error {
	patterns := []struct{ name, pattern string }{
		{"primary", t.Primary},
		{"secondary", t.Secondary},
		{"tertiary", t.Tertiary},
	}
	for _, p := range patterns {
		if !strings.Contains(p.pattern, "{id}") {
			return fmt.Errorf("%w: %s pattern %q has no {id} placeholder", ErrBadTemplate, p.name, p.pattern)
		}
	}
	return nil
}

// Expand returns the keys for one item.
func (t Template) Expand(item Item) [3]asset.Key {
	r := strings.NewReplacer(
		"{id}", item.ID,
		"{tag}", strconv.Itoa(item.Tag),
		"{tier}", t.Tier,
	)
	return [3]asset.Key{
		asset.Key(r.Replace(t.Primary)),
		asset.Key(r.Replace(t.Secondary)),
		asset.Key(r.Replace(t.Tertiary)),
	}
}

// Catalog is an immutable, ordered set of items.
type Catalog struct {
	items    []Item
	index    map[string]int
	template Template
}

// New builds a catalog from items in priority order.
func New(items []Item, template Template) (*Catalog, error) {
	if err := template.Validate(); err != nil {
		return nil, err
	}

	c := &Catalog{
		items:    make([]Item, 0, len(items)),
		index:    make(map[string]int, len(items)),
		template: template,
	}
	for i, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("%w (position %d)", ErrEmptyID, i)
		}
		if _, dup := c.index[item.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateItem, item.ID)
		}
		c.index[item.ID] = len(c.items)
		c.items = append(c.items, item)
	}
	return c, nil
}

// file is the on-disk catalog layout.
type file struct {
	Items []Item `yaml:"items"`
}

// Parse decodes a YAML catalog document.
func Parse(data []byte, template Template) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Items, template)
}

// Load reads a YAML catalog file.
func Load(path string, template Template) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data, template)
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.items) }

// Items returns a copy of the items in priority order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Item looks up an item by id.
func (c *Catalog) Item(id string) (Item, bool) {
	i, ok := c.index[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Job returns the key bundle for one item.
func (c *Catalog) Job(id string) (Job, bool) {
	item, ok := c.Item(id)
	if !ok {
		return Job{}, false
	}
	return Job{ItemID: item.ID, Keys: c.template.Expand(item)}, true
}

// Jobs returns one job per item, in priority order.
func (c *Catalog) Jobs() []Job {
	jobs := make([]Job, len(c.items))
	for i, item := range c.items {
		jobs[i] = Job{ItemID: item.ID, Keys: c.template.Expand(item)}
	}
	return jobs
}

// Template returns the key template.
func (c *Catalog) Template() Template { return c.template }
