package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"rentcat/internal/slug"
)

var toolIDPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidateDocument checks an externally supplied JSON document against the
// catalog rules. Every violation is collected; an empty result means the
// document can be decoded and stored as is.
func ValidateDocument(raw []byte) FieldErrors {
	doc, err := decodeTree(raw)
	if err != nil {
		return FieldErrors{{Message: fmt.Sprintf("invalid JSON: %v", err)}}
	}
	var errs FieldErrors
	validateCatalogNode(&errs, doc)
	return errs
}

// Validate checks an in-memory catalog. It runs the same rules as
// ValidateDocument over the catalog's encoded form.
func Validate(c Catalog) FieldErrors {
	raw, err := json.Marshal(c.Clone())
	if err != nil {
		return FieldErrors{{Message: fmt.Sprintf("catalog cannot be encoded: %v", err)}}
	}
	return ValidateDocument(raw)
}

// ValidateTool checks a single tool. path prefixes every reported field.
func ValidateTool(t Tool, path string) FieldErrors {
	raw, err := json.Marshal(t.Clone())
	if err != nil {
		return FieldErrors{{Path: path, Message: fmt.Sprintf("tool cannot be encoded: %v", err)}}
	}
	node, err := decodeTree(raw)
	if err != nil {
		return FieldErrors{{Path: path, Message: fmt.Sprintf("invalid JSON: %v", err)}}
	}
	var errs FieldErrors
	validateToolNode(&errs, node, path)
	return errs
}

func decodeTree(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after the document")
	}
	return doc, nil
}

func validateCatalogNode(errs *FieldErrors, doc any) {
	cats, ok := doc.([]any)
	if !ok {
		errs.add("", "document must be an array of categories")
		return
	}

	seen := make(map[string]int)
	for i, node := range cats {
		path := fmt.Sprintf("categories[%d]", i)
		obj, ok := node.(map[string]any)
		if !ok {
			errs.add(path, "category must be an object")
			continue
		}

		if name := requireString(errs, obj, path, "name"); name != "" {
			s := slug.Make(name)
			switch j, dup := seen[s]; {
			case s == "":
				errs.add(path+".name", "name %q does not produce a slug", name)
			case dup:
				errs.add(path+".name", "duplicate category slug %q (also categories[%d])", s, j)
			default:
				seen[s] = i
			}
		}
		requireString(errs, obj, path, "image")

		subs, ok := optionalArray(errs, obj, path, "subcategories")
		if !ok {
			continue
		}
		validateSubcategories(errs, subs, path)
	}
}

func validateSubcategories(errs *FieldErrors, subs []any, parent string) {
	seen := make(map[string]int)
	for i, node := range subs {
		path := fmt.Sprintf("%s.subcategories[%d]", parent, i)
		obj, ok := node.(map[string]any)
		if !ok {
			errs.add(path, "subcategory must be an object")
			continue
		}

		if name := requireString(errs, obj, path, "name"); name != "" {
			s := slug.Make(name)
			switch j, dup := seen[s]; {
			case s == "":
				errs.add(path+".name", "name %q does not produce a slug", name)
			case dup:
				errs.add(path+".name", "duplicate subcategory slug %q (also %s.subcategories[%d])", s, parent, j)
			default:
				seen[s] = i
			}
		}
		optionalString(errs, obj, path, "description")

		tools, ok := optionalArray(errs, obj, path, "tools")
		if !ok {
			continue
		}
		ids := make(map[string]int)
		for j, t := range tools {
			toolPath := fmt.Sprintf("%s.tools[%d]", path, j)
			id := validateToolNode(errs, t, toolPath)
			if id == "" {
				continue
			}
			if k, dup := ids[id]; dup {
				errs.add(toolPath+".id", "duplicate tool id %q (also %s.tools[%d])", id, path, k)
				continue
			}
			ids[id] = j
		}
	}
}

// validateToolNode returns the tool id when it is valid, "" otherwise.
func validateToolNode(errs *FieldErrors, node any, path string) string {
	obj, ok := node.(map[string]any)
	if !ok {
		errs.add(path, "tool must be an object")
		return ""
	}

	id := requireString(errs, obj, path, "id")
	if id != "" && !toolIDPattern.MatchString(id) {
		errs.add(path+".id", "id %q may only contain a-z, 0-9 and -", id)
		id = ""
	}
	requireString(errs, obj, path, "name")
	requireString(errs, obj, path, "image")
	optionalString(errs, obj, path, "description")

	if v, ok := obj["enabled"]; ok {
		if _, isBool := v.(bool); !isBool {
			errs.add(path+".enabled", "enabled must be true or false")
		}
	}

	if v, ok := obj["deposit"]; ok {
		switch v.(type) {
		case json.Number, string:
		default:
			errs.add(path+".deposit", "deposit must be a number or a string")
		}
	}

	pricing, ok := obj["pricing"]
	if !ok {
		errs.add(path+".pricing", "pricing is required")
		return id
	}
	validatePricingNode(errs, pricing, path+".pricing")
	return id
}

func validatePricingNode(errs *FieldErrors, node any, path string) {
	if arr, ok := node.([]any); ok && len(arr) == 0 {
		return
	}
	entries, ok := node.(map[string]any)
	if !ok {
		errs.add(path, "pricing must be a mapping of label to price")
		return
	}
	labels := make([]string, 0, len(entries))
	for label := range entries {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		v := entries[label]
		if strings.TrimSpace(label) == "" {
			errs.add(path, "pricing labels must not be empty")
			continue
		}
		entryPath := fmt.Sprintf("%s[%q]", path, label)
		switch val := v.(type) {
		case json.Number:
		case string:
			if strings.TrimSpace(val) == "" {
				errs.add(entryPath, "price must not be empty")
			}
		default:
			errs.add(entryPath, "price must be a number or a string")
		}
	}
}

// requireString reports a missing, non-string or blank field and returns
// the value otherwise.
func requireString(errs *FieldErrors, obj map[string]any, path, key string) string {
	v, ok := obj[key]
	if !ok {
		errs.add(path+"."+key, "%s is required", key)
		return ""
	}
	s, ok := v.(string)
	if !ok {
		errs.add(path+"."+key, "%s must be a string", key)
		return ""
	}
	if strings.TrimSpace(s) == "" {
		errs.add(path+"."+key, "%s must not be empty", key)
		return ""
	}
	return s
}

func optionalString(errs *FieldErrors, obj map[string]any, path, key string) {
	v, ok := obj[key]
	if !ok {
		return
	}
	if _, isString := v.(string); !isString {
		errs.add(path+"."+key, "%s must be a string", key)
	}
}

// optionalArray returns the array stored under key. A missing key is an
// empty array; anything other than an array is reported.
func optionalArray(errs *FieldErrors, obj map[string]any, path, key string) ([]any, bool) {
	v, ok := obj[key]
	if !ok {
		return nil, true
	}
	arr, ok := v.([]any)
	if !ok {
		errs.add(path+"."+key, "%s must be an array", key)
		return nil, false
	}
	return arr, true
}
