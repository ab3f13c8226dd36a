package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"19.99", 1999},
		{"0.50", 50},
		{"100", 10000},
		{"0", 0},
		{"7.005", 701},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got := MinorUnits(decimal.RequireFromString(tt.amount))
			require.Equal(t, tt.want, got)
		})
	}
}
