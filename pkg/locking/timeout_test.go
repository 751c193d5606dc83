package locking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errUtils "github.com/kopi-vm/kopi/errors"
)

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		input    string
		expected Timeout
	}{
		{"0", NoWait()},
		{"0s", NoWait()},
		{"00", NoWait()},
		{"0m", NoWait()},
		{"0h", NoWait()},
		{"0d", NoWait()},
		{"0h0m", NoWait()},
		{"0ms", NoWait()},
		{"infinite", Infinite()},
		{"INFINITE", Infinite()},
		{"30", Finite(30 * time.Second)},
		{"5m", Finite(5 * time.Minute)},
		{" 2h ", Finite(2 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeout(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseTimeout_Invalid(t *testing.T) {
	for _, input := range []string{"soon", "-5", "-0s", "1x", "0x", "", "m"} {
		_, err := ParseTimeout(input)
		require.Error(t, err, input)
		assert.ErrorIs(t, err, errUtils.ErrInvalidLockTimeout)
		assert.Equal(t, errUtils.ExitCodeUsage, errUtils.GetExitCode(err))
	}
}

func TestTimeout_String(t *testing.T) {
	assert.Equal(t, "0s", NoWait().String())
	assert.Equal(t, "600s", Finite(DefaultTimeout).String())
	assert.Equal(t, "500ms", Finite(500*time.Millisecond).String())
	assert.Equal(t, "1.5s", Finite(1500*time.Millisecond).String())
	assert.Equal(t, "infinite", Infinite().String())
	assert.True(t, Finite(-time.Second).IsNoWait())
}

func TestTimeoutResolver_Precedence(t *testing.T) {
	tests := []struct {
		name           string
		inputs         TimeoutInputs
		expected       Timeout
		expectedSource Source
	}{
		{
			name:           "nothing set uses default",
			inputs:         TimeoutInputs{},
			expected:       Finite(DefaultTimeout),
			expectedSource: SourceDefault,
		},
		{
			name:           "config only",
			inputs:         TimeoutInputs{Config: "120"},
			expected:       Finite(120 * time.Second),
			expectedSource: SourceConfig,
		},
		{
			name:           "environment beats config",
			inputs:         TimeoutInputs{Env: "45", Config: "120"},
			expected:       Finite(45 * time.Second),
			expectedSource: SourceEnvironment,
		},
		{
			name:           "cli beats everything",
			inputs:         TimeoutInputs{CLI: "0", Env: "45", Config: "120"},
			expected:       NoWait(),
			expectedSource: SourceCLI,
		},
		{
			name:           "invalid cli falls through to environment",
			inputs:         TimeoutInputs{CLI: "forever", Env: "infinite"},
			expected:       Infinite(),
			expectedSource: SourceEnvironment,
		},
		{
			name:           "all invalid falls through to default",
			inputs:         TimeoutInputs{CLI: "x", Env: "y", Config: "z"},
			expected:       Finite(DefaultTimeout),
			expectedSource: SourceDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewTimeoutResolver().Resolve(tt.inputs)
			assert.Equal(t, tt.expected, got.Timeout)
			assert.Equal(t, tt.expectedSource, got.Source)
		})
	}
}

func TestTimeoutResolver_LongTimeoutWarnsOnce(t *testing.T) {
	r := NewTimeoutResolver()

	r.Resolve(TimeoutInputs{CLI: "30m"})
	assert.False(t, r.warnedLong.Load())

	r.Resolve(TimeoutInputs{CLI: "2h"})
	assert.True(t, r.warnedLong.Load())

	r.Resolve(TimeoutInputs{Env: "3h"})
	assert.True(t, r.warnedLong.Load())
}

func TestSource_Labels(t *testing.T) {
	assert.Equal(t, "CLI flag", SourceCLI.String())
	assert.Equal(t, "--lock-timeout", SourceCLI.Setting())
	assert.Equal(t, EnvLockTimeout, SourceEnvironment.Setting())
	assert.Equal(t, "locking.timeout", SourceConfig.Setting())
	assert.Equal(t, "built-in default", SourceDefault.String())
}

func TestBackoff_Delay(t *testing.T) {
	b := DefaultBackoff()

	assert.Equal(t, 10*time.Millisecond, b.delay(1, 0, false))
	assert.Equal(t, 20*time.Millisecond, b.delay(2, 0, false))
	assert.Equal(t, 80*time.Millisecond, b.delay(4, 0, false))
	assert.Equal(t, 100*time.Millisecond, b.delay(5, 0, false))
	assert.Equal(t, 100*time.Millisecond, b.delay(50, 0, false))

	assert.Equal(t, 3*time.Millisecond, b.delay(5, 3*time.Millisecond, true))
	assert.Equal(t, time.Duration(0), b.delay(5, -time.Second, true))
}

func TestDefaultStaleAfter(t *testing.T) {
	assert.Equal(t, 11*time.Minute, DefaultStaleAfter(Finite(DefaultTimeout)))
	assert.Equal(t, 10*time.Minute, DefaultStaleAfter(Finite(30*time.Second)))
	assert.Equal(t, 10*time.Minute, DefaultStaleAfter(NoWait()))
	assert.Equal(t, 31*time.Minute, DefaultStaleAfter(Finite(30*time.Minute)))
	assert.Equal(t, time.Hour, DefaultStaleAfter(Infinite()))
}
