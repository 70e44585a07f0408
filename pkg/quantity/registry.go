package quantity

import "fmt"

// conversion maps a recorded unit onto its SI base unit:
// base_value = value*Factor + Offset.
type conversion struct {
	Factor float64
	Offset float64
	Base   string
}

// registry is the process-wide unit table. It is built once at package
// initialisation and never mutated afterwards; all lookups are read-only.
var registry = map[string]conversion{
	// temperature
	"K":    {Factor: 1, Base: "K"},
	"degC": {Factor: 1, Offset: 273.15, Base: "K"},
	"°C":   {Factor: 1, Offset: 273.15, Base: "K"},
	// pressure
	"Pa":   {Factor: 1, Base: "Pa"},
	"kPa":  {Factor: 1e3, Base: "Pa"},
	"bar":  {Factor: 1e5, Base: "Pa"},
	"mbar": {Factor: 1e2, Base: "Pa"},
	"atm":  {Factor: 101325, Base: "Pa"},
	// mass
	"kg": {Factor: 1, Base: "kg"},
	"g":  {Factor: 1e-3, Base: "kg"},
	"mg": {Factor: 1e-6, Base: "kg"},
	// time
	"s":   {Factor: 1, Base: "s"},
	"min": {Factor: 60, Base: "s"},
	"h":   {Factor: 3600, Base: "s"},
	// amount
	"mol":  {Factor: 1, Base: "mol"},
	"mmol": {Factor: 1e-3, Base: "mol"},
	// volumetric flow
	"m^3/s":  {Factor: 1, Base: "m^3/s"},
	"L/min":  {Factor: 1e-3 / 60, Base: "m^3/s"},
	"mL/min": {Factor: 1e-6 / 60, Base: "m^3/s"},
	// concentration
	"mol/m^3": {Factor: 1, Base: "mol/m^3"},
	"mol/L":   {Factor: 1e3, Base: "mol/m^3"},
	// conductivity
	"S/m":   {Factor: 1, Base: "S/m"},
	"mS/cm": {Factor: 0.1, Base: "S/m"},
	"uS/cm": {Factor: 1e-4, Base: "S/m"},
	"µS/cm": {Factor: 1e-4, Base: "S/m"},
	// compound units used by derived quantities; already SI base
	"J/mol":       {Factor: 1, Base: "J/mol"},
	"kJ/mol":      {Factor: 1e3, Base: "J/mol"},
	"kg*s/mol":    {Factor: 1, Base: "kg*s/mol"},
	"mol/(kg*s)":  {Factor: 1, Base: "mol/(kg*s)"},
	"mol/(m^3*s)": {Factor: 1, Base: "mol/(m^3*s)"},
	// dimensionless
	"":  {Factor: 1, Base: ""},
	"1": {Factor: 1, Base: ""},
	"%": {Factor: 0.01, Base: ""},
}

// KnownUnit reports whether the registry can normalise the given unit.
func KnownUnit(unit string) bool {
	_, ok := registry[unit]
	return ok
}

// ToBase converts a quantity to its SI base representation. Offset units
// (temperatures) scale the uncertainty by the factor only.
func ToBase(q Quantity) (Quantity, error) {
	conv, ok := registry[q.Unit]
	if !ok {
		return Quantity{}, fmt.Errorf("unknown unit %q", q.Unit)
	}
	return Quantity{
		Value:       q.Value*conv.Factor + conv.Offset,
		Unit:        conv.Base,
		Uncertainty: q.Uncertainty * conv.Factor,
	}, nil
}

// BaseUnit returns the SI base unit symbol for a recorded unit.
func BaseUnit(unit string) (string, error) {
	conv, ok := registry[unit]
	if !ok {
		return "", fmt.Errorf("unknown unit %q", unit)
	}
	return conv.Base, nil
}
