package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitFees(t *testing.T) {
	tests := []struct {
		name  string
		total float64
	}{
		{name: "round total", total: 100.0},
		{name: "fractional total", total: 70.70},
		{name: "single cent", total: 0.01},
		{name: "zero", total: 0},
		{name: "large total", total: 987654.32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split := SplitFees(tt.total)

			assert.InDelta(t, tt.total*0.5, split.Creator, 1e-9)
			assert.InDelta(t, tt.total*0.4, split.Protocol, 1e-9)
			assert.InDelta(t, tt.total*0.1, split.Validator, 1e-9)

			// the three components must reconstruct the total
			assert.InDelta(t, tt.total, split.Creator+split.Protocol+split.Validator, 1e-9)
		})
	}
}
