package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errUtils "github.com/kopi-vm/kopi/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
		wantErr  bool
	}{
		{name: "integer seconds", input: "600", expected: 600},
		{name: "seconds suffix", input: "30s", expected: 30},
		{name: "minutes suffix", input: "5m", expected: 300},
		{name: "hours suffix", input: "1h", expected: 3600},
		{name: "days suffix", input: "2d", expected: 172800},
		{name: "go compound", input: "1m30s", expected: 90},
		{name: "go fractional", input: "1.5h", expected: 5400},
		{name: "hourly keyword", input: "hourly", expected: 3600},
		{name: "daily keyword mixed case", input: "Daily", expected: 86400},
		{name: "whitespace", input: "  10m ", expected: 600},

		{name: "invalid string", input: "soon", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
		{name: "zero", input: "0", wantErr: true},
		{name: "negative integer", input: "-100", wantErr: true},
		{name: "negative with unit", input: "-1h", wantErr: true},
		{name: "unknown unit", input: "5x", wantErr: true},
		{name: "sub-second", input: "500ms", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err, "expected error for input %q", tt.input)
				assert.ErrorIs(t, err, errUtils.ErrInvalidDuration)
				return
			}
			require.NoError(t, err, "unexpected error for input %q", tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("10m")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, d)

	_, err = ParseDuration("never")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0ms", Format(0))
	assert.Equal(t, "850ms", Format(850*time.Millisecond))
	assert.Equal(t, "1.0s", Format(time.Second))
	assert.Equal(t, "2.5s", Format(2500*time.Millisecond))
	assert.Equal(t, "600.0s", Format(10*time.Minute))
}
