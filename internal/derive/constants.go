// Package derive computes physical quantities from raw observation fields:
// saturation pressure, space time, and conversion for the flow reactor, and
// the initial-rate analysis of batch conductivity traces.
package derive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// AntoineCoefficients parameterize the Antoine vapor pressure correlation
// log10(p_sat/bar) = A - B/(T + C) with B and C in kelvin.
type AntoineCoefficients struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
}

// Constants is the explicit physical-constant configuration threaded through
// the derivation and simulation code. It is loaded once at startup.
type Constants struct {
	// GasConstant is R in J/(mol*K).
	GasConstant float64 `json:"gas_constant"`
	// Antoine maps substance names to their Antoine coefficients.
	Antoine map[string]AntoineCoefficients `json:"antoine"`
	// Substance selects the saturator feed for the flow experiment.
	Substance string `json:"substance"`
	// BatchThreshold is the conversion fraction marking the end of the
	// initial-rate region of a batch trace.
	BatchThreshold float64 `json:"batch_threshold"`
	// SlopeQuality is the minimum fit quality for growing the
	// progressive initial-slope window.
	SlopeQuality float64 `json:"slope_quality"`
}

// DefaultConstants returns the configuration used by the teaching lab:
// an ethanol-fed saturator and CODATA R.
func DefaultConstants() Constants {
	return Constants{
		GasConstant: 8.31446261815324,
		Antoine: map[string]AntoineCoefficients{
			"Ethanol": {A: 5.37229, B: 1670.409, C: -40.191},
		},
		Substance:      "Ethanol",
		BatchThreshold: 0.25,
		SlopeQuality:   0.99,
	}
}

// LoadConstants reads a constants configuration from JSON, filling any
// omitted field from the defaults.
func LoadConstants(r io.Reader) (Constants, error) {
	c := DefaultConstants()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Constants{}, fmt.Errorf("constants: decode: %w", err)
	}
	if c.GasConstant <= 0 {
		return Constants{}, fmt.Errorf("constants: gas constant must be positive")
	}
	if _, ok := c.Antoine[c.Substance]; !ok {
		return Constants{}, fmt.Errorf("constants: no Antoine coefficients for %q", c.Substance)
	}
	return c, nil
}

// LoadConstantsFile reads a constants configuration from a JSON file.
func LoadConstantsFile(path string) (Constants, error) {
	f, err := os.Open(path)
	if err != nil {
		return Constants{}, fmt.Errorf("constants: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadConstants(f)
}
