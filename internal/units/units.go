// Package units provides the physical-unit vocabulary shared by the cube
// background pipeline: energy, angle, time and solid angle.
package units

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Canonical units used inside the pipeline. Data read from disk is converted
// to these before it reaches a cube.
const (
	TeV    = "TeV"
	Degree = "deg"
	Second = "s"

	// Dimensionless marks event counts.
	Dimensionless = ""
	// BackgroundRate is rate per energy per solid angle.
	BackgroundRate = "1 / (s TeV sr)"
)

// DegreeSquaredToSteradian converts a deg² area into steradians.
const DegreeSquaredToSteradian = (math.Pi / 180) * (math.Pi / 180)

// ErrUnknownUnit is returned when a unit string cannot be interpreted.
var ErrUnknownUnit = errors.New("unknown unit")

var energyFactors = map[string]float64{
	"tev": 1,
	"gev": 1e-3,
	"mev": 1e-6,
	"kev": 1e-9,
	"ev":  1e-12,
	"pev": 1e3,
}

var angleFactors = map[string]float64{
	"deg":    1,
	"degree": 1,
	"rad":    180 / math.Pi,
	"radian": 180 / math.Pi,
	"arcmin": 1.0 / 60,
	"arcsec": 1.0 / 3600,
}

var timeFactors = map[string]float64{
	"s":      1,
	"sec":    1,
	"second": 1,
	"min":    60,
	"minute": 60,
	"h":      3600,
	"hour":   3600,
	"d":      86400,
	"day":    86400,
}

// normalise strips brackets and whitespace and lower-cases the unit so that
// header comments such as "[TeV]" and column units such as "deg " compare equal.
func normalise(unit string) string {
	u := strings.TrimSpace(unit)
	u = strings.TrimPrefix(u, "[")
	u = strings.TrimSuffix(u, "]")
	return strings.ToLower(strings.TrimSpace(u))
}

func lookup(table map[string]float64, kind, unit string) (float64, error) {
	u := normalise(unit)
	if u == "" {
		return 0, fmt.Errorf("%w: empty %s unit", ErrUnknownUnit, kind)
	}
	if f, ok := table[u]; ok {
		return f, nil
	}
	// plural spellings: "degrees", "seconds"
	if f, ok := table[strings.TrimSuffix(u, "s")]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("%w: %q is not a %s unit", ErrUnknownUnit, unit, kind)
}

// EnergyFactor returns the multiplier converting a value in unit to TeV.
func EnergyFactor(unit string) (float64, error) {
	return lookup(energyFactors, "energy", unit)
}

// AngleFactor returns the multiplier converting a value in unit to degrees.
func AngleFactor(unit string) (float64, error) {
	return lookup(angleFactors, "angle", unit)
}

// TimeFactor returns the multiplier converting a value in unit to seconds.
func TimeFactor(unit string) (float64, error) {
	return lookup(timeFactors, "time", unit)
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// SolidAngle returns the solid angle in steradians of a dy × dx bin given in
// degrees (small-angle approximation used for detector-plane bins).
func SolidAngle(dyDeg, dxDeg float64) float64 {
	return dyDeg * dxDeg * DegreeSquaredToSteradian
}
