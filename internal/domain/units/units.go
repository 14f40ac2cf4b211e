// Package units converts kitchen measurement quantities between units of the
// same dimension. Mass normalizes to grams, volume to milliliters, count to
// each.
package units

import (
	"errors"
	"fmt"
	"strings"
)

// Dimension groups units that convert between each other.
type Dimension string

const (
	// DimensionMass covers weight units, base gram.
	DimensionMass Dimension = "mass"
	// DimensionVolume covers liquid units, base milliliter.
	DimensionVolume Dimension = "volume"
	// DimensionCount covers discrete units, base each.
	DimensionCount Dimension = "count"
)

// ErrUnknownUnit indicates a unit name outside the conversion table.
var ErrUnknownUnit = errors.New("unknown unit")

// ErrDimensionMismatch indicates a conversion across dimensions.
var ErrDimensionMismatch = errors.New("units are not of the same dimension")

type unitDef struct {
	dimension Dimension
	// toBase is the multiplier into the dimension's base unit.
	toBase float64
}

// Compound factors derive from their smaller unit so ratios between related
// units stay exact: a pound is exactly 16 ounces, a tablespoon exactly 3
// teaspoons, a cup exactly 16 tablespoons.
const (
	ounceGrams   = 28.349523125
	poundGrams   = 16 * ounceGrams
	teaspoonML   = 4.92892159375
	tablespoonML = 3 * teaspoonML
	cupML        = 16 * tablespoonML
)

var table = map[string]unitDef{
	"g":    {DimensionMass, 1},
	"kg":   {DimensionMass, 1000},
	"oz":   {DimensionMass, ounceGrams},
	"lb":   {DimensionMass, poundGrams},
	"ml":   {DimensionVolume, 1},
	"l":    {DimensionVolume, 1000},
	"tsp":  {DimensionVolume, teaspoonML},
	"tbsp": {DimensionVolume, tablespoonML},
	"cup":  {DimensionVolume, cupML},
	"each": {DimensionCount, 1},
	"unit": {DimensionCount, 1},
}

func lookup(unit string) (unitDef, error) {
	def, ok := table[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return unitDef{}, fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}
	return def, nil
}

// DimensionOf returns the dimension a unit belongs to.
func DimensionOf(unit string) (Dimension, error) {
	def, err := lookup(unit)
	if err != nil {
		return "", err
	}
	return def.dimension, nil
}

// Convert converts a quantity from one unit to another within a dimension.
func Convert(quantity float64, from, to string) (float64, error) {
	fromDef, err := lookup(from)
	if err != nil {
		return 0, err
	}
	toDef, err := lookup(to)
	if err != nil {
		return 0, err
	}
	if fromDef.dimension != toDef.dimension {
		return 0, fmt.Errorf("%w: %q is %s, %q is %s",
			ErrDimensionMismatch, from, fromDef.dimension, to, toDef.dimension)
	}
	return quantity * fromDef.toBase / toDef.toBase, nil
}
