// Package catalog holds the rental catalog data model, its validator and
// the editing operations. Everything here is pure: operations take a
// catalog, work on a deep copy and return the copy. Persistence lives in
// the store package.
package catalog

import (
	"strings"

	"rentcat/internal/slug"
)

// Catalog is the whole document: an ordered list of categories.
type Catalog []Category

// Category is a top-level grouping. Its identity is slug.Make(Name).
type Category struct {
	Name          string        `json:"name" yaml:"name"`
	Image         string        `json:"image" yaml:"image"`
	Subcategories []Subcategory `json:"subcategories" yaml:"subcategories"`
}

// Subcategory groups tools inside a category. Its identity is
// slug.Make(Name), unique within the parent category.
type Subcategory struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Tools       []Tool `json:"tools" yaml:"tools"`
}

// Tool is a rentable item. ID is caller-chosen and unique within its
// subcategory only.
type Tool struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Image       string      `json:"image" yaml:"image"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Pricing     Pricing     `json:"pricing" yaml:"pricing"`
	Deposit     *PriceValue `json:"deposit,omitempty" yaml:"deposit,omitempty"`
	Enabled     *bool       `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// Slug returns the category identity.
func (c Category) Slug() string { return slug.Make(c.Name) }

// Slug returns the subcategory identity.
func (s Subcategory) Slug() string { return slug.Make(s.Name) }

// IsEnabled reports whether the tool is listed. A missing flag means enabled.
func (t Tool) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// Clone returns a deep copy of the catalog. Nil slices in the source come
// back as empty slices so the encoded document never contains null lists.
func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	for i, cat := range c {
		out[i] = cat.Clone()
	}
	return out
}

// Clone returns a deep copy of the category.
func (c Category) Clone() Category {
	out := c
	out.Subcategories = make([]Subcategory, len(c.Subcategories))
	for i, sub := range c.Subcategories {
		out.Subcategories[i] = sub.Clone()
	}
	return out
}

// Clone returns a deep copy of the subcategory.
func (s Subcategory) Clone() Subcategory {
	out := s
	out.Tools = make([]Tool, len(s.Tools))
	for i, t := range s.Tools {
		out.Tools[i] = t.Clone()
	}
	return out
}

// Clone returns a deep copy of the tool.
func (t Tool) Clone() Tool {
	out := t
	out.Pricing = t.Pricing.Clone()
	if t.Deposit != nil {
		d := *t.Deposit
		out.Deposit = &d
	}
	if t.Enabled != nil {
		e := *t.Enabled
		out.Enabled = &e
	}
	return out
}

// ToolKey builds the composite key used by bulk operations.
func ToolKey(categorySlug, subcategorySlug, toolID string) string {
	return categorySlug + "/" + subcategorySlug + "/" + toolID
}

// ParseToolKey splits a composite key into its three parts.
func ParseToolKey(key string) (categorySlug, subcategorySlug, toolID string, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// ToolLocation addresses one tool inside a catalog.
type ToolLocation struct {
	CategoryIndex    int
	SubcategoryIndex int
	ToolIndex        int
	CategorySlug     string
	SubcategorySlug  string
	ToolID           string
}

// Key returns the composite key of the located tool.
func (l ToolLocation) Key() string {
	return ToolKey(l.CategorySlug, l.SubcategorySlug, l.ToolID)
}

// Walk calls fn for every tool in document order. The tool pointer refers
// to the catalog's own storage, so fn may modify it in place.
func (c Catalog) Walk(fn func(loc ToolLocation, t *Tool)) {
	for ci := range c {
		catSlug := c[ci].Slug()
		for si := range c[ci].Subcategories {
			sub := &c[ci].Subcategories[si]
			subSlug := sub.Slug()
			for ti := range sub.Tools {
				t := &sub.Tools[ti]
				fn(ToolLocation{
					CategoryIndex:    ci,
					SubcategoryIndex: si,
					ToolIndex:        ti,
					CategorySlug:     catSlug,
					SubcategorySlug:  subSlug,
					ToolID:           t.ID,
				}, t)
			}
		}
	}
}

// FindCategory returns the index of the category with the given slug.
func (c Catalog) FindCategory(categorySlug string) (int, bool) {
	for i := range c {
		if c[i].Slug() == categorySlug {
			return i, true
		}
	}
	return -1, false
}

// FindSubcategory returns the indexes of a subcategory addressed by slugs.
func (c Catalog) FindSubcategory(categorySlug, subcategorySlug string) (int, int, bool) {
	ci, ok := c.FindCategory(categorySlug)
	if !ok {
		return -1, -1, false
	}
	si := c[ci].findSubcategory(subcategorySlug)
	if si < 0 {
		return ci, -1, false
	}
	return ci, si, true
}

func (c Category) findSubcategory(subcategorySlug string) int {
	for i := range c.Subcategories {
		if c.Subcategories[i].Slug() == subcategorySlug {
			return i
		}
	}
	return -1
}

func (s Subcategory) findTool(id string) int {
	for i := range s.Tools {
		if s.Tools[i].ID == id {
			return i
		}
	}
	return -1
}

// FindToolLocations returns every location holding a tool with the given id.
// Ids are only unique within a subcategory, so more than one location is
// possible.
func (c Catalog) FindToolLocations(id string) []ToolLocation {
	var locs []ToolLocation
	c.Walk(func(loc ToolLocation, t *Tool) {
		if t.ID == id {
			locs = append(locs, loc)
		}
	})
	return locs
}

// Stats summarises the size of a catalog.
type Stats struct {
	Categories    int `json:"categories"`
	Subcategories int `json:"subcategories"`
	Tools         int `json:"tools"`
	EnabledTools  int `json:"enabled_tools"`
}

// Stats counts the nodes in the catalog.
func (c Catalog) Stats() Stats {
	var s Stats
	s.Categories = len(c)
	for _, cat := range c {
		s.Subcategories += len(cat.Subcategories)
	}
	c.Walk(func(_ ToolLocation, t *Tool) {
		s.Tools++
		if t.IsEnabled() {
			s.EnabledTools++
		}
	})
	return s
}
