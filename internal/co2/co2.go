// Package co2 derives CO₂ mass from energy observations.
//
// The emission factors are calibrated on the 2024 Italian national energy
// mix (ISPRA figures for the grid average). All results are in kilograms.
package co2

import "math"

// Emission factors in kg CO₂ per kWh.
const (
	factorSolar      = 0.0215
	factorWind       = 0.0118
	factorHydro      = 0.0054
	factorBiomass    = 0.2282
	factorGeothermal = 0.0376
	factorGrid       = 0.4431
	factorOther      = 0.4950
)

var factors = map[string]float64{
	"solar":      factorSolar,
	"wind":       factorWind,
	"hydro":      factorHydro,
	"biomass":    factorBiomass,
	"geothermal": factorGeothermal,
	"grid":       factorGrid,
	"other":      factorOther,
}

var renewable = map[string]bool{
	"solar":      true,
	"wind":       true,
	"hydro":      true,
	"biomass":    true,
	"geothermal": true,
}

// Result holds the derived CO₂ masses for one observation.
type Result struct {
	Emitted float64
	Avoided float64
}

// Compute maps an energy source and a quantity in kWh to emitted and
// avoided CO₂ mass. It is a pure function: same inputs, same outputs, no
// I/O. An unrecognized source degrades to the grid factor instead of
// failing, so replaying historical rows can never error.
//
// Avoided mass is the difference to the grid factor and only applies to
// renewable sources; grid and other always avoid nothing.
func Compute(source string, amountKWh float64) Result {
	factor, ok := factors[source]
	if !ok {
		factor = factorGrid
	}

	res := Result{
		Emitted: round4(amountKWh * factor),
	}

	if renewable[source] {
		res.Avoided = round4(amountKWh * (factorGrid - factor))
	}

	return res
}

// GridFactor returns the grid-average emission factor in kg CO₂/kWh.
func GridFactor() float64 {
	return factorGrid
}

// Factor returns the emission factor for a source, falling back to the
// grid factor for unknown sources.
func Factor(source string) float64 {
	factor, ok := factors[source]
	if !ok {
		return factorGrid
	}
	return factor
}

// IsRenewable reports whether a source counts toward avoided emissions.
func IsRenewable(source string) bool {
	return renewable[source]
}

// round4 keeps four decimal places, matching the precision stored with
// every entry so interactive writes and batch recomputation never drift.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
