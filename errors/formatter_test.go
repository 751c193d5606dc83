package errors

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func plainConfig() FormatterConfig {
	config := DefaultFormatterConfig()
	config.Color = "never"
	return config
}

func TestDefaultFormatterConfig(t *testing.T) {
	config := DefaultFormatterConfig()

	assert.False(t, config.Verbose)
	assert.Equal(t, "auto", config.Color)
	assert.Equal(t, 80, config.MaxLineLength)
}

func TestFormat_NilError(t *testing.T) {
	assert.Empty(t, Format(nil, plainConfig()))
}

func TestFormat_SimpleError(t *testing.T) {
	result := Format(errors.New("lock file is busy"), plainConfig())

	assert.Contains(t, result, "lock file is busy")
	assert.NotContains(t, result, "💡")
}

func TestFormat_WithBuilder(t *testing.T) {
	err := Build(ErrLockTimeout).
		WithExplanation("Waited 2.00s for installation temurin-21-linux-x64 lock").
		WithHint("Increase the timeout with --lock-timeout").
		WithHintf("Or set %s=infinite", "KOPI_LOCK_TIMEOUT").
		WithContext("scope", "temurin-21-linux-x64").
		Err()

	result := Format(err, plainConfig())

	assert.Contains(t, result, "timed out waiting for lock")
	assert.Contains(t, result, "Waited 2.00s")
	assert.Contains(t, result, "Increase the timeout with --lock-timeout")
	assert.Contains(t, result, "Or set KOPI_LOCK_TIMEOUT=infinite")
	assert.Equal(t, 2, strings.Count(result, "💡"))
	assert.NotContains(t, result, "Context", "context table is verbose only")
}

func TestFormat_VerboseWithContext(t *testing.T) {
	err := Build(ErrLockAcquire).
		WithContext("scope", "cache").
		WithContext("backend", "fallback").
		WithHint("Check permissions on the locks directory").
		Err()

	config := plainConfig()
	config.Verbose = true

	result := Format(err, config)

	assert.Contains(t, result, "failed to acquire lock")
	assert.Contains(t, result, "Check permissions on the locks directory")
	assert.Contains(t, result, "Context")
	assert.Contains(t, result, "Value")
	assert.Contains(t, result, "backend")
	assert.Contains(t, result, "fallback")
	assert.Greater(t, strings.Count(result, "failed to acquire lock"), 1, "verbose output repeats the chain")
}

func TestFormat_LongMessageWraps(t *testing.T) {
	longMsg := "failed to acquire installation lock because the lock directory is on a read-only filesystem mounted from a remote host"
	config := plainConfig()
	config.MaxLineLength = 40

	result := Format(errors.New(longMsg), config)

	assert.Greater(t, strings.Count(result, "\n"), 1)
	assert.Contains(t, result, "read-only")
}

func TestShouldUseColor(t *testing.T) {
	assert.True(t, shouldUseColor("always"))
	assert.False(t, shouldUseColor("never"))
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		lines int
	}{
		{name: "short text", text: "hello world", width: 80, lines: 1},
		{name: "wraps", text: "one two three four five six seven eight nine ten", width: 15, lines: 4},
		{name: "single long word", text: "supercalifragilisticexpialidocious", width: 10, lines: 1},
		{name: "zero width uses default", text: "hello world", width: 0, lines: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := wrapText(tt.text, tt.width)
			assert.Len(t, strings.Split(result, "\n"), tt.lines)
			assert.Equal(t, strings.Fields(tt.text), strings.Fields(result))
		})
	}
}

func TestFormatContextTable_NoContext(t *testing.T) {
	assert.Empty(t, formatContextTable(errors.New("plain"), false))
}

func TestFormatContextTable_WithColor(t *testing.T) {
	err := Build(errors.New("test error")).
		WithContext("path", "/home/user/.kopi/locks/cache.lock").
		WithContext("mode", "advisory").
		Err()

	result := formatContextTable(err, true)

	assert.Contains(t, result, "path")
	assert.Contains(t, result, "/home/user/.kopi/locks/cache.lock")
	assert.Contains(t, result, "advisory")
}
