package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"rentcat/internal/slug"
)

// CategoryRequest creates or edits a category. OriginalSlug addresses the
// category being edited; when empty the slug of Name is used.
type CategoryRequest struct {
	OriginalSlug string `json:"original_slug,omitempty"`
	Name         string `json:"name"`
	Image        string `json:"image"`
}

// SubcategoryRequest creates or edits a subcategory inside CategorySlug.
// A nil Description keeps the current one.
type SubcategoryRequest struct {
	CategorySlug string  `json:"category_slug"`
	OriginalSlug string  `json:"original_slug,omitempty"`
	Name         string  `json:"name"`
	Description  *string `json:"description,omitempty"`
}

// ToolRequest creates, edits or moves a tool.
//
// ToolID is the id before the edit; empty means a new tool. The original
// slugs narrow the lookup of ToolID when the same id exists in several
// subcategories. CategorySlug and SubcategorySlug name the target and
// default to the tool's current location. Nil payload fields keep their
// prior value.
type ToolRequest struct {
	ToolID                  string `json:"tool_id,omitempty"`
	OriginalCategorySlug    string `json:"original_category_slug,omitempty"`
	OriginalSubcategorySlug string `json:"original_subcategory_slug,omitempty"`
	CategorySlug            string `json:"category_slug,omitempty"`
	SubcategorySlug         string `json:"subcategory_slug,omitempty"`

	ID          *string `json:"id,omitempty"`
	Name        *string `json:"name,omitempty"`
	Image       *string `json:"image,omitempty"`
	Description *string `json:"description,omitempty"`

	// Pricing is a JSON object or a JSON string holding an object.
	Pricing json.RawMessage `json:"pricing,omitempty"`
	// Deposit is a number or a string; null or "" clears it.
	Deposit json.RawMessage `json:"deposit,omitempty"`
	Enabled *bool           `json:"enabled,omitempty"`
}

// UpsertCategory updates the addressed category in place or appends a new
// one. An empty Image on update keeps the existing image.
func UpsertCategory(c Catalog, req CategoryRequest) (Catalog, error) {
	out := c.Clone()
	name := strings.TrimSpace(req.Name)
	image := strings.TrimSpace(req.Image)

	key := req.OriginalSlug
	if key == "" {
		key = slug.Make(name)
	}
	if i, ok := out.FindCategory(key); ok {
		out[i].Name = name
		if image != "" {
			out[i].Image = image
		}
		return out, nil
	}
	return append(out, Category{Name: name, Image: image, Subcategories: []Subcategory{}}), nil
}

// UpsertSubcategory updates or appends a subcategory of an existing category.
func UpsertSubcategory(c Catalog, req SubcategoryRequest) (Catalog, error) {
	out := c.Clone()
	ci, ok := out.FindCategory(req.CategorySlug)
	if !ok {
		return nil, notFound(ErrCategoryNotFound, req.CategorySlug)
	}
	cat := &out[ci]
	name := strings.TrimSpace(req.Name)

	key := req.OriginalSlug
	if key == "" {
		key = slug.Make(name)
	}
	if si := cat.findSubcategory(key); si >= 0 {
		cat.Subcategories[si].Name = name
		if req.Description != nil {
			cat.Subcategories[si].Description = strings.TrimSpace(*req.Description)
		}
		return out, nil
	}

	sub := Subcategory{Name: name, Tools: []Tool{}}
	if req.Description != nil {
		sub.Description = strings.TrimSpace(*req.Description)
	}
	cat.Subcategories = append(cat.Subcategories, sub)
	return out, nil
}

// UpsertTool creates, edits, renames or moves a tool.
//
// The tool named by ToolID is located first; its fields are the defaults
// for everything the request leaves out. The merged tool is validated, then
// the target subcategory is resolved. If the target already holds a tool
// with the new id, the request is merged into that tool in place. Otherwise
// the original is removed (when the tool moves or its id changes) and the
// merged tool is appended to the target.
func UpsertTool(c Catalog, req ToolRequest) (Catalog, error) {
	out := c.Clone()

	var (
		origin *ToolLocation
		base   = Tool{Enabled: boolPtr(true)}
	)
	if req.ToolID != "" {
		loc, err := out.locateTool(req.ToolID, req.OriginalCategorySlug, req.OriginalSubcategorySlug)
		if err != nil {
			return nil, err
		}
		origin = &loc
		base = out.toolAt(loc).Clone()
	}

	catSlug, subSlug := req.CategorySlug, req.SubcategorySlug
	if origin != nil {
		if catSlug == "" {
			catSlug = origin.CategorySlug
		}
		if subSlug == "" {
			subSlug = origin.SubcategorySlug
		}
	}

	merged, err := applyToolRequest(base, req)
	if err != nil {
		return nil, err
	}
	if errs := ValidateTool(merged, "tool"); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	ci, ok := out.FindCategory(catSlug)
	if !ok {
		return nil, notFound(ErrCategoryNotFound, catSlug)
	}
	si := out[ci].findSubcategory(subSlug)
	if si < 0 {
		return nil, notFound(ErrSubcategoryNotFound, catSlug+"/"+subSlug)
	}
	target := &out[ci].Subcategories[si]

	if ti := target.findTool(merged.ID); ti >= 0 {
		if origin != nil && origin.CategoryIndex == ci && origin.SubcategoryIndex == si && origin.ToolIndex == ti {
			target.Tools[ti] = merged
			return out, nil
		}
		existing, err := applyToolRequest(target.Tools[ti], req)
		if err != nil {
			return nil, err
		}
		if errs := ValidateTool(existing, "tool"); len(errs) > 0 {
			return nil, &ValidationError{Errors: errs}
		}
		target.Tools[ti] = existing
		if origin != nil {
			out.removeTool(*origin)
		}
		return out, nil
	}

	if origin != nil {
		out.removeTool(*origin)
	}
	target.Tools = append(target.Tools, merged)
	return out, nil
}

// DeleteCategory removes a category and everything below it.
func DeleteCategory(c Catalog, categorySlug string) (Catalog, error) {
	ci, ok := c.FindCategory(categorySlug)
	if !ok {
		return nil, notFound(ErrCategoryNotFound, categorySlug)
	}
	out := c.Clone()
	return append(out[:ci], out[ci+1:]...), nil
}

// DeleteSubcategory removes a subcategory and its tools.
func DeleteSubcategory(c Catalog, categorySlug, subcategorySlug string) (Catalog, error) {
	out := c.Clone()
	ci, ok := out.FindCategory(categorySlug)
	if !ok {
		return nil, notFound(ErrCategoryNotFound, categorySlug)
	}
	si := out[ci].findSubcategory(subcategorySlug)
	if si < 0 {
		return nil, notFound(ErrSubcategoryNotFound, categorySlug+"/"+subcategorySlug)
	}
	subs := out[ci].Subcategories
	out[ci].Subcategories = append(subs[:si], subs[si+1:]...)
	return out, nil
}

// DeleteTool removes one tool.
func DeleteTool(c Catalog, categorySlug, subcategorySlug, toolID string) (Catalog, error) {
	out := c.Clone()
	ci, si, ok := out.FindSubcategory(categorySlug, subcategorySlug)
	if !ok {
		if ci < 0 {
			return nil, notFound(ErrCategoryNotFound, categorySlug)
		}
		return nil, notFound(ErrSubcategoryNotFound, categorySlug+"/"+subcategorySlug)
	}
	ti := out[ci].Subcategories[si].findTool(toolID)
	if ti < 0 {
		return nil, notFound(ErrToolNotFound, ToolKey(categorySlug, subcategorySlug, toolID))
	}
	out.removeTool(ToolLocation{CategoryIndex: ci, SubcategoryIndex: si, ToolIndex: ti})
	return out, nil
}

// locateTool resolves a pre-edit tool id, optionally scoped to an original
// category and subcategory.
func (c Catalog) locateTool(id, categorySlug, subcategorySlug string) (ToolLocation, error) {
	var matches []ToolLocation
	for _, loc := range c.FindToolLocations(id) {
		if categorySlug != "" && loc.CategorySlug != categorySlug {
			continue
		}
		if subcategorySlug != "" && loc.SubcategorySlug != subcategorySlug {
			continue
		}
		matches = append(matches, loc)
	}

	switch len(matches) {
	case 0:
		key := id
		if categorySlug != "" || subcategorySlug != "" {
			key = ToolKey(categorySlug, subcategorySlug, id)
		}
		return ToolLocation{}, notFound(ErrToolNotFound, key)
	case 1:
		return matches[0], nil
	default:
		keys := make([]string, len(matches))
		for i, m := range matches {
			keys[i] = m.Key()
		}
		return ToolLocation{}, fmt.Errorf("%w: %q exists at %s", ErrAmbiguousTool, id, strings.Join(keys, ", "))
	}
}

func (c Catalog) toolAt(loc ToolLocation) *Tool {
	return &c[loc.CategoryIndex].Subcategories[loc.SubcategoryIndex].Tools[loc.ToolIndex]
}

func (c Catalog) removeTool(loc ToolLocation) {
	sub := &c[loc.CategoryIndex].Subcategories[loc.SubcategoryIndex]
	sub.Tools = append(sub.Tools[:loc.ToolIndex], sub.Tools[loc.ToolIndex+1:]...)
}

// applyToolRequest overwrites the fields of t that the request carries.
func applyToolRequest(t Tool, req ToolRequest) (Tool, error) {
	out := t.Clone()
	if req.ID != nil {
		out.ID = strings.TrimSpace(*req.ID)
	}
	if req.Name != nil {
		out.Name = strings.TrimSpace(*req.Name)
	}
	if req.Image != nil {
		out.Image = strings.TrimSpace(*req.Image)
	}
	if req.Description != nil {
		out.Description = strings.TrimSpace(*req.Description)
	}
	if req.Enabled != nil {
		out.Enabled = boolPtr(*req.Enabled)
	}
	if len(req.Pricing) > 0 {
		p, err := DecodePricing(req.Pricing)
		if err != nil {
			return Tool{}, err
		}
		out.Pricing = p
	}
	if len(req.Deposit) > 0 {
		d, err := decodeDeposit(req.Deposit)
		if err != nil {
			return Tool{}, err
		}
		out.Deposit = d
	}
	return out, nil
}

// DecodePricing accepts a JSON object, or a JSON string whose content is an
// object, and checks the pricing rules on the result. null and [] are empty
// pricing.
func DecodePricing(raw json.RawMessage) (Pricing, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return Pricing{}, nil
	}
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return Pricing{}, fmt.Errorf("%w: %v", ErrInvalidPricing, err)
		}
		raw = json.RawMessage(strings.TrimSpace(inner))
	}
	if len(raw) == 0 || raw[0] != '{' && !bytes.Equal(raw, []byte("[]")) {
		return Pricing{}, fmt.Errorf("%w: want a mapping of label to price", ErrInvalidPricing)
	}

	var p Pricing
	if err := json.Unmarshal(raw, &p); err != nil {
		return Pricing{}, fmt.Errorf("%w: %v", ErrInvalidPricing, err)
	}
	for _, e := range p.entries {
		if strings.TrimSpace(e.Label) == "" {
			return Pricing{}, fmt.Errorf("%w: empty label", ErrInvalidPricing)
		}
		if e.Value.IsText && strings.TrimSpace(e.Value.Text) == "" {
			return Pricing{}, fmt.Errorf("%w: empty price for %q", ErrInvalidPricing, e.Label)
		}
	}
	return p, nil
}

func decodeDeposit(raw json.RawMessage) (*PriceValue, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`)) {
		return nil, nil
	}
	var v PriceValue
	if err := v.UnmarshalJSON(raw); err != nil {
		return nil, &ValidationError{Errors: FieldErrors{{Path: "tool.deposit", Message: "deposit must be a number or a string"}}}
	}
	if v.IsText {
		v.Text = strings.TrimSpace(v.Text)
		if v.Text == "" {
			return nil, nil
		}
	}
	return &v, nil
}

func boolPtr(b bool) *bool { return &b }
