package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// AreaPlaces is the precision of computed square meters.
	AreaPlaces = 2
	// ComparePlaces is the precision used for identity keys and field diffs.
	ComparePlaces = 4
)

var (
	mmPerMeter    = decimal.NewFromInt(1000)
	cmPerMeter    = decimal.NewFromInt(100)
	meterPerInch  = decimal.RequireFromString("0.0254")
	micronPerMM   = decimal.NewFromInt(1000)
	lengthAliases = map[string]string{
		"":            "mtr",
		"m":           "mtr",
		"mtr":         "mtr",
		"mtrs":        "mtr",
		"meter":       "mtr",
		"meters":      "mtr",
		"metre":       "mtr",
		"metres":      "mtr",
		"mm":          "mm",
		"millimeter":  "mm",
		"millimeters": "mm",
		"cm":          "cm",
		"in":          "inch",
		"inch":        "inch",
		"inches":      "inch",
		"\"":          "inch",
	}
)

// NormalizeLengthUnit maps the spellings seen in forms and sheets onto
// mm, cm, inch or mtr.
func NormalizeLengthUnit(unit string) (string, bool) {
	u, ok := lengthAliases[strings.ToLower(strings.TrimSpace(unit))]
	return u, ok
}

// ToMeters converts a length in the given unit to meters.
func ToMeters(v float64, unit string) (float64, error) {
	u, ok := NormalizeLengthUnit(unit)
	if !ok {
		return 0, fmt.Errorf("unknown length unit %q", unit)
	}
	d := decimal.NewFromFloat(v)
	switch u {
	case "mm":
		d = d.Div(mmPerMeter)
	case "cm":
		d = d.Div(cmPerMeter)
	case "inch":
		d = d.Mul(meterPerInch)
	}
	return d.InexactFloat64(), nil
}

// ThicknessToMM converts a thickness in mm or micron to mm.
func ThicknessToMM(v float64, unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "micron", "microns", "um", "µ", "μ":
		return decimal.NewFromFloat(v).Div(micronPerMM).InexactFloat64()
	}
	return v
}

// Area multiplies two lengths given in meters and rounds to AreaPlaces.
func Area(lengthM, widthM float64) float64 {
	return RoundTo(decimal.NewFromFloat(lengthM).Mul(decimal.NewFromFloat(widthM)).InexactFloat64(), AreaPlaces)
}

func RoundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// CanonicalNumber renders a number for comparison: fixed precision, no
// trailing zeros. Absent numbers render as "".
func CanonicalNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return decimal.NewFromFloat(*v).Round(ComparePlaces).String()
}

func Float(v float64) *float64 { return &v }
