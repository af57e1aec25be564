package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		num, den int
		want     string
	}{
		{0, 0, "0.00"},
		{35, 50, "70.00"},
		{1, 3, "33.33"},
		{2, 3, "66.67"},
		{1, 8, "12.50"},
		{50, 50, "100.00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, percent(tt.num, tt.den), "%d/%d", tt.num, tt.den)
	}
}
