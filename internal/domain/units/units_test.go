package units_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sous-os/sous-core/internal/domain/units"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name     string
		quantity float64
		from     string
		to       string
		want     float64
	}{
		{name: "kg to g", quantity: 2, from: "kg", to: "g", want: 2000},
		{name: "g to kg", quantity: 500, from: "g", to: "kg", want: 0.5},
		{name: "lb to oz", quantity: 1, from: "lb", to: "oz", want: 16},
		{name: "l to ml", quantity: 1.5, from: "l", to: "ml", want: 1500},
		{name: "tbsp to tsp", quantity: 1, from: "tbsp", to: "tsp", want: 3},
		{name: "cup to ml", quantity: 1, from: "cup", to: "ml", want: 236.5882365},
		{name: "cup to tbsp", quantity: 1, from: "cup", to: "tbsp", want: 16},
		{name: "same unit", quantity: 42, from: "g", to: "g", want: 42},
		{name: "each to unit", quantity: 3, from: "each", to: "unit", want: 3},
		{name: "case insensitive", quantity: 1, from: "KG", to: "g", want: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := units.Convert(tt.quantity, tt.from, tt.to)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestConvertErrors(t *testing.T) {
	t.Run("unknown unit", func(t *testing.T) {
		_, err := units.Convert(1, "stone", "g")
		require.ErrorIs(t, err, units.ErrUnknownUnit)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := units.Convert(1, "kg", "ml")
		require.ErrorIs(t, err, units.ErrDimensionMismatch)
	})
}

func TestDimensionOf(t *testing.T) {
	dim, err := units.DimensionOf("tbsp")
	require.NoError(t, err)
	assert.Equal(t, units.DimensionVolume, dim)

	_, err = units.DimensionOf("")
	require.ErrorIs(t, err, units.ErrUnknownUnit)
}
