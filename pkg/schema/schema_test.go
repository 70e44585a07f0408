package schema

import (
	"strings"
	"testing"

	"kineticore/pkg/quantity"
)

func flowFields() map[string]FieldSpec {
	return map[string]FieldSpec{
		"pressure":      {Label: "Saturator pressure", Type: FieldFloat, Unit: "bar", Required: true, Order: 1, Scope: ScopeInput},
		"temperature":   {Label: "Reactor temperature", Type: FieldFloat, Unit: "degC", Required: true, Order: 2, Scope: ScopeInput},
		"catalyst_mass": {Label: "Catalyst mass", Type: FieldFloat, Unit: "mg", Required: true, Order: 3, Scope: ScopeInput},
		"flow_rate":     {Label: "Carrier flow", Type: FieldFloat, Unit: "mL/min", Required: true, Order: 4, Scope: ScopeInput},
		"area_reactant": {Label: "Reactant peak area", Type: FieldFloat, Unit: "", Required: false, Order: 5, Scope: ScopeResult},
		"area_product":  {Label: "Product peak area", Type: FieldFloat, Unit: "", Required: false, Order: 6, Scope: ScopeResult},
	}
}

func TestNewOrdersByOrderAttribute(t *testing.T) {
	s, err := New(flowFields())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	want := []string{"pressure", "temperature", "catalyst_mass", "flow_rate", "area_reactant", "area_product"}
	got := s.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if inputs := s.Inputs(); len(inputs) != 4 || inputs[0] != "pressure" {
		t.Fatalf("Inputs() = %v", inputs)
	}
	if results := s.Results(); len(results) != 2 || results[1] != "area_product" {
		t.Fatalf("Results() = %v", results)
	}
}

func TestNewRejectsBadSpecs(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]FieldSpec
	}{
		{"unknown type", map[string]FieldSpec{"x": {Type: "decimal", Scope: ScopeInput}}},
		{"unknown scope", map[string]FieldSpec{"x": {Type: FieldFloat, Scope: "config"}}},
		{"unknown unit", map[string]FieldSpec{"x": {Type: FieldFloat, Unit: "furlong", Scope: ScopeInput}}},
		{"empty name", map[string]FieldSpec{"": {Type: FieldFloat, Scope: ScopeInput}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.fields); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	doc := `{"fields": {
		"pressure": {"label": "Pressure", "type": "float", "unit": "bar", "required": true, "order": 1, "scope": "input"},
		"note": {"label": "Note", "type": "string", "unit": "", "required": false, "order": 2, "scope": "input"}
	}}`
	s, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	spec, ok := s.Field("pressure")
	if !ok {
		t.Fatalf("pressure field missing")
	}
	if spec.Unit != "bar" || !spec.Required {
		t.Fatalf("pressure spec = %+v", spec)
	}
	if _, err := Load(strings.NewReader(`{"fields": {}}`)); err == nil {
		t.Fatalf("expected error for empty schema")
	}
	if _, err := Load(strings.NewReader(`{"columns": {}}`)); err == nil {
		t.Fatalf("expected error for unknown document keys")
	}
}

func TestValidate(t *testing.T) {
	s, err := New(flowFields())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	raw := map[string]quantity.Quantity{
		"pressure":      quantity.New(1.5, "bar"),
		"temperature":   quantity.New(250, "degC"),
		"catalyst_mass": quantity.New(250, "mg"),
		"flow_rate":     quantity.New(20, "mL/min"),
	}
	if err := s.Validate(raw); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	missing := map[string]quantity.Quantity{"pressure": quantity.New(1.5, "bar")}
	if err := s.Validate(missing); err == nil {
		t.Fatalf("expected error for missing required fields")
	}

	raw["extratron"] = quantity.New(1, "")
	if err := s.Validate(raw); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestNormalize(t *testing.T) {
	s, err := New(flowFields())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	raw := map[string]quantity.Quantity{
		"pressure":      quantity.New(1.5, "bar"),
		"temperature":   quantity.New(250, "degC"),
		"catalyst_mass": quantity.New(250, "mg"),
		"flow_rate":     quantity.New(20, "mL/min"),
		"area_reactant": quantity.New(1200, ""),
	}
	norm, err := s.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if got := norm["pressure"]; got.Value != 150000 || got.Unit != "Pa" {
		t.Fatalf("pressure normalized to %+v", got)
	}
	if got := norm["temperature"]; got.Value != 523.15 || got.Unit != "K" {
		t.Fatalf("temperature normalized to %+v", got)
	}
	if got := raw["pressure"]; got.Unit != "bar" {
		t.Fatalf("Normalize mutated its input: %+v", got)
	}
}
