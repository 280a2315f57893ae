package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PriceValue is a pricing entry or deposit: either a number or a free-form
// string such as "do uzgodnienia".
type PriceValue struct {
	Number float64
	Text   string
	IsText bool
}

// Num returns a numeric price value.
func Num(v float64) PriceValue { return PriceValue{Number: v} }

// Text returns a textual price value.
func Text(s string) PriceValue { return PriceValue{Text: s, IsText: true} }

func (v PriceValue) String() string {
	if v.IsText {
		return v.Text
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

// MarshalJSON encodes numbers in shortest form and text as a JSON string.
func (v PriceValue) MarshalJSON() ([]byte, error) {
	if v.IsText {
		return marshalString(v.Text)
	}
	return []byte(strconv.FormatFloat(v.Number, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts a JSON number or a JSON string.
func (v *PriceValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("empty price value")
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("price value must be a number or a string, got %s", b)
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("price value %s: %w", n, err)
	}
	*v = Num(f)
	return nil
}

// MarshalYAML writes numbers as plain scalars and text as strings.
func (v PriceValue) MarshalYAML() (any, error) {
	return v.yamlNode(), nil
}

func (v PriceValue) yamlNode() *yaml.Node {
	if v.IsText {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Text}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v.String()}
}

// UnmarshalYAML accepts an int, float or string scalar.
func (v *PriceValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: price value must be a scalar", node.Line)
	}
	switch node.ShortTag() {
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*v = Num(f)
	case "!!str":
		*v = Text(node.Value)
	default:
		return fmt.Errorf("line %d: price value must be a number or a string", node.Line)
	}
	return nil
}

// PriceEntry is one label/value pair of a Pricing.
type PriceEntry struct {
	Label string
	Value PriceValue
}

// Pricing is an ordered label -> value mapping. Labels such as "1-3 Dni" and
// "4-7 Dni" are displayed in document order, so the order survives every
// decode/encode cycle.
type Pricing struct {
	entries []PriceEntry
}

// NewPricing builds a Pricing from entries in order. A repeated label
// overwrites the earlier value and keeps the earlier position.
func NewPricing(entries ...PriceEntry) Pricing {
	var p Pricing
	for _, e := range entries {
		p.Set(e.Label, e.Value)
	}
	return p
}

func (p Pricing) Len() int { return len(p.entries) }

// Get returns the value for label.
func (p Pricing) Get(label string) (PriceValue, bool) {
	for _, e := range p.entries {
		if e.Label == label {
			return e.Value, true
		}
	}
	return PriceValue{}, false
}

// Set replaces the value of an existing label or appends a new one.
func (p *Pricing) Set(label string, v PriceValue) {
	for i := range p.entries {
		if p.entries[i].Label == label {
			p.entries[i].Value = v
			return
		}
	}
	p.entries = append(p.entries, PriceEntry{Label: label, Value: v})
}

// Labels returns the labels in order.
func (p Pricing) Labels() []string {
	out := make([]string, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.Label
	}
	return out
}

// Entries returns a copy of the entries in order.
func (p Pricing) Entries() []PriceEntry {
	out := make([]PriceEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Clone returns an independent copy.
func (p Pricing) Clone() Pricing {
	if p.entries == nil {
		return Pricing{}
	}
	return Pricing{entries: p.Entries()}
}

// Equal reports whether both pricings hold the same entries in the same order.
func (p Pricing) Equal(o Pricing) bool {
	if len(p.entries) != len(o.entries) {
		return false
	}
	for i := range p.entries {
		if p.entries[i] != o.entries[i] {
			return false
		}
	}
	return true
}

// isDepositLabel matches labels the public site renders as a deposit row.
func isDepositLabel(label string) bool {
	return strings.Contains(strings.ToLower(label), "kaucja")
}

// Rates returns the rental rate entries, leaving out deposit rows.
func (p Pricing) Rates() []PriceEntry {
	var out []PriceEntry
	for _, e := range p.entries {
		if !isDepositLabel(e.Label) {
			out = append(out, e)
		}
	}
	return out
}

// DepositEntry returns the first entry whose label names a deposit.
func (p Pricing) DepositEntry() (PriceEntry, bool) {
	for _, e := range p.entries {
		if isDepositLabel(e.Label) {
			return e, true
		}
	}
	return PriceEntry{}, false
}

// MarshalJSON writes the entries as a JSON object in order.
func (p Pricing) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range p.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalString(e.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := e.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping key order. null and an empty
// array decode to an empty pricing.
func (p *Pricing) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	p.entries = nil
	if bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte("[]")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("pricing must be an object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		label, ok := tok.(string)
		if !ok {
			return fmt.Errorf("pricing label must be a string")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("pricing %q: %w", label, err)
		}
		var v PriceValue
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("pricing %q: %w", label, err)
		}
		p.Set(label, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalYAML writes an ordered mapping node.
func (p Pricing) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range p.entries {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Label}
		node.Content = append(node.Content, key, e.Value.yamlNode())
	}
	return node, nil
}

// UnmarshalYAML reads a mapping node keeping key order.
func (p *Pricing) UnmarshalYAML(node *yaml.Node) error {
	p.entries = nil
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: pricing must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var v PriceValue
		if err := v.UnmarshalYAML(node.Content[i+1]); err != nil {
			return fmt.Errorf("pricing %q: %w", node.Content[i].Value, err)
		}
		p.Set(node.Content[i].Value, v)
	}
	return nil
}

// marshalString encodes s as a JSON string without HTML escaping.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
