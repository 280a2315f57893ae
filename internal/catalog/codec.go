package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the serialization used by Import and Export.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json or yaml)", s)
	}
}

// EncodeJSON writes the catalog the way it is stored on disk: two-space
// indent, unescaped UTF-8, trailing newline.
func EncodeJSON(c Catalog) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.Clone()); err != nil {
		return nil, fmt.Errorf("encoding catalog: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeJSON decodes a stored document. It does not validate; callers that
// accept outside input run ValidateDocument first.
func DecodeJSON(raw []byte) (Catalog, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Catalog{}, nil
	}
	var c Catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("document is null, want an array of categories")
	}
	return c.Clone(), nil
}

// Export serializes the catalog in the given format.
func Export(c Catalog, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return EncodeJSON(c)
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(c.Clone()); err != nil {
			return nil, fmt.Errorf("encoding catalog as yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding catalog as yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// Import parses and validates a full replacement document. On any failure
// nothing is returned; the caller's catalog stays as it was.
//
// YAML input is first decoded into the typed model and re-encoded as JSON
// so both formats go through the same validation rules.
func Import(raw []byte, format Format) (Catalog, error) {
	switch format {
	case FormatJSON, "":
	case FormatYAML:
		var c Catalog
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return nil, &ValidationError{Errors: FieldErrors{{Message: fmt.Sprintf("invalid YAML: %v", err)}}}
		}
		if c == nil {
			c = Catalog{}
		}
		var err error
		raw, err = json.Marshal(c.Clone())
		if err != nil {
			return nil, fmt.Errorf("re-encoding yaml import: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	if errs := ValidateDocument(raw); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	c, err := DecodeJSON(raw)
	if err != nil {
		return nil, &ValidationError{Errors: FieldErrors{{Message: err.Error()}}}
	}
	return c, nil
}
