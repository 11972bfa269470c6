package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMeters(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		unit  string
		want  float64
	}{
		{"millimeters", 1000, "mm", 1},
		{"centimeters", 150, "cm", 1.5},
		{"inches", 10, "inch", 0.254},
		{"inch alias", 10, "in", 0.254},
		{"meters", 2.5, "mtr", 2.5},
		{"empty unit is meters", 2, "", 2},
		{"spelled out", 3, "Meters", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToMeters(tt.value, tt.unit)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestToMeters_UnknownUnit(t *testing.T) {
	_, err := ToMeters(1, "yard")
	assert.Error(t, err)
}

func TestThicknessToMM(t *testing.T) {
	assert.InDelta(t, 1.95, ThicknessToMM(1950, "micron"), 1e-9)
	assert.InDelta(t, 1.95, ThicknessToMM(1.95, "mm"), 1e-9)
	assert.InDelta(t, 1.95, ThicknessToMM(1.95, ""), 1e-9)
}

func TestArea_RoundsToTwoPlaces(t *testing.T) {
	assert.Equal(t, 2.47, Area(1.2345, 2))
	assert.Equal(t, 15.0, Area(10, 1.5))
}

func TestCanonicalNumber(t *testing.T) {
	assert.Equal(t, "", CanonicalNumber(nil))
	assert.Equal(t, "2", CanonicalNumber(Float(2.0)))
	assert.Equal(t, "1.95", CanonicalNumber(Float(1.95)))
	assert.Equal(t, "1.2346", CanonicalNumber(Float(1.23456)))
}
