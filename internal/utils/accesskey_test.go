package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleKey = "35240814200166000196650010000123451234567890"

func TestCleanDigits(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"already clean", "12345678", "12345678"},
		{"with spaces", "1234 5678", "12345678"},
		{"with separators", "3524-0814.2001/66", "35240814200166"},
		{"letters stripped", "abc123def456", "123456"},
		{"empty", "", ""},
		{"no digits", "abc-def", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanDigits(tt.input))
		})
	}
}

func TestIsValidAccessKey(t *testing.T) {
	assert.True(t, IsValidAccessKey(sampleKey))
	assert.False(t, IsValidAccessKey(sampleKey[:43]))
	assert.False(t, IsValidAccessKey(sampleKey+"0"))
	assert.False(t, IsValidAccessKey(""))
	assert.False(t, IsValidAccessKey(strings.Replace(sampleKey, "3", "x", 1)))
}

func TestFormatAccessKey(t *testing.T) {
	formatted := FormatAccessKey(sampleKey)
	assert.Equal(t, "3524 0814 2001 6600 0196 6500 1000 0123 4512 3456 7890", formatted)

	// anything that is not a bare 44-digit key passes through untouched
	assert.Equal(t, "not-a-key", FormatAccessKey("not-a-key"))
}

func TestHashAccessKey(t *testing.T) {
	h1 := HashAccessKey(sampleKey)
	h2 := HashAccessKey(sampleKey)

	require.Len(t, h1, 64)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, HashAccessKey(sampleKey[:43]+"1"))
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
		wantErr  bool
	}{
		{"brazilian comma", "12,50", 12.50, false},
		{"thousands with comma", "1.234,56", 1234.56, false},
		{"plain dot", "12.50", 12.50, false},
		{"integer", "42", 42, false},
		{"with surrounding spaces", "  7,25  ", 7.25, false},
		{"garbage", "abc", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimal(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 0.001)
		})
	}
}
