// Package schema describes the raw metadata fields an experiment records.
// A Schema is loaded once at startup from JSON and passed explicitly to the
// components that need it; there is no hidden global instance.
package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"kineticore/pkg/quantity"
)

// FieldType enumerates the supported value types of a raw field.
type FieldType string

const (
	FieldFloat  FieldType = "float"
	FieldString FieldType = "string"
	FieldBool   FieldType = "bool"
)

// Scope distinguishes operator-entered settings from instrument results.
type Scope string

const (
	ScopeInput  Scope = "input"
	ScopeResult Scope = "result"
)

// FieldSpec describes one raw field: its type, recording unit, whether the
// uploader must supply it, its display order, and its scope.
type FieldSpec struct {
	Label       string    `json:"label"`
	Type        FieldType `json:"type"`
	Unit        string    `json:"unit"`
	Required    bool      `json:"required"`
	Order       int       `json:"order"`
	Scope       Scope     `json:"scope"`
	Description string    `json:"description,omitempty"`
}

// Schema is an ordered collection of field specs keyed by field name.
type Schema struct {
	fields map[string]FieldSpec
	names  []string
}

// New builds a schema from a field map, validating each spec against the
// unit registry. Field names are ordered by their Order attribute.
func New(fields map[string]FieldSpec) (*Schema, error) {
	s := &Schema{fields: make(map[string]FieldSpec, len(fields))}
	for name, spec := range fields {
		if name == "" {
			return nil, fmt.Errorf("schema: empty field name")
		}
		switch spec.Type {
		case FieldFloat, FieldString, FieldBool:
		default:
			return nil, fmt.Errorf("schema: field %q has unknown type %q", name, spec.Type)
		}
		switch spec.Scope {
		case ScopeInput, ScopeResult:
		default:
			return nil, fmt.Errorf("schema: field %q has unknown scope %q", name, spec.Scope)
		}
		if spec.Type == FieldFloat && !quantity.KnownUnit(spec.Unit) {
			return nil, fmt.Errorf("schema: field %q records unknown unit %q", name, spec.Unit)
		}
		s.fields[name] = spec
		s.names = append(s.names, name)
	}
	sort.Slice(s.names, func(i, j int) bool {
		a, b := s.fields[s.names[i]], s.fields[s.names[j]]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return s.names[i] < s.names[j]
	})
	return s, nil
}

// Load reads a schema from a JSON document of the form
// {"fields": {"<name>": {<spec>}, ...}}.
func Load(r io.Reader) (*Schema, error) {
	var doc struct {
		Fields map[string]FieldSpec `json:"fields"`
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("schema: decode: %w", err)
	}
	if len(doc.Fields) == 0 {
		return nil, fmt.Errorf("schema: no fields defined")
	}
	return New(doc.Fields)
}

// LoadFile reads a schema from a JSON file on disk.
func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Field returns the spec for a named field.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	spec, ok := s.fields[name]
	return spec, ok
}

// Names returns field names in display order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Inputs returns the names of operator-entered fields in display order.
func (s *Schema) Inputs() []string {
	var out []string
	for _, name := range s.names {
		if s.fields[name].Scope == ScopeInput {
			out = append(out, name)
		}
	}
	return out
}

// Results returns the names of instrument-result fields in display order.
func (s *Schema) Results() []string {
	var out []string
	for _, name := range s.names {
		if s.fields[name].Scope == ScopeResult {
			out = append(out, name)
		}
	}
	return out
}

// Validate checks an uploaded raw-field map against the schema: every
// required field present, no unknown fields, float units convertible.
func (s *Schema) Validate(raw map[string]quantity.Quantity) error {
	for name := range raw {
		if _, ok := s.fields[name]; !ok {
			return fmt.Errorf("schema: unknown field %q", name)
		}
	}
	for _, name := range s.names {
		spec := s.fields[name]
		q, ok := raw[name]
		if !ok {
			if spec.Required {
				return fmt.Errorf("schema: required field %q missing", name)
			}
			continue
		}
		if spec.Type == FieldFloat && !quantity.KnownUnit(q.Unit) {
			return fmt.Errorf("schema: field %q has unknown unit %q", name, q.Unit)
		}
	}
	return nil
}

// Normalize converts every float field of a raw map to SI base units. The
// input map is not modified.
func (s *Schema) Normalize(raw map[string]quantity.Quantity) (map[string]quantity.Quantity, error) {
	if err := s.Validate(raw); err != nil {
		return nil, err
	}
	out := make(map[string]quantity.Quantity, len(raw))
	for name, q := range raw {
		spec := s.fields[name]
		if spec.Type != FieldFloat {
			out[name] = q
			continue
		}
		base, err := quantity.ToBase(q)
		if err != nil {
			return nil, fmt.Errorf("schema: normalize %q: %w", name, err)
		}
		out[name] = base
	}
	return out, nil
}
