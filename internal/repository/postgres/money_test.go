package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericStringToCents(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{"whole price", "149", 14900},
		{"price with cents", "149.90", 14990},
		{"cents only", "0.99", 99},
		{"free", "0", 0},
		{"free with decimals", "0.00", 0},
		{"rounding up", "99.999", 10000},
		{"rounding down", "99.994", 9999},
		{"with whitespace", "  49.50  ", 4950},
		{"single decimal", "5.5", 550},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := numericStringToCents(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}

	for _, bad := range []string{"", "abc", "R$149.90", "10.5.5"} {
		t.Run("invalid "+bad, func(t *testing.T) {
			_, err := numericStringToCents(bad)
			assert.Error(t, err)
		})
	}
}

func TestCentsToNumericString(t *testing.T) {
	tests := []struct {
		name     string
		input    int64
		expected string
	}{
		{"whole price", 14900, "149.00"},
		{"price with cents", 14990, "149.90"},
		{"cents only", 99, "0.99"},
		{"free", 0, "0.00"},
		{"single cent", 1, "0.01"},
		{"refund adjustment", -1050, "-10.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, centsToNumericString(tt.input))
		})
	}
}

func TestMoneyConversion_RoundTrip(t *testing.T) {
	for _, original := range []int64{0, 1, 10, 99, 14900, 999999, -14990, 999999999999} {
		str := centsToNumericString(original)
		cents, err := numericStringToCents(str)
		require.NoError(t, err)
		assert.Equal(t, original, cents, "cents=%d, str=%s", original, str)
	}
}
