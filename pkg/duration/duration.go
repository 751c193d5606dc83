// Package duration parses and prints the human-readable durations used in kopi
// configuration (lock timeouts, hygiene thresholds, cache age).
package duration

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	errUtils "github.com/kopi-vm/kopi/errors"
	"github.com/kopi-vm/kopi/pkg/perf"
)

const (
	secondsPerMinute = 60
	secondsPerHour   = 3600
	secondsPerDay    = 86400
	secondsPerWeek   = 604800

	base10    = 10
	bitSize64 = 64
)

// Parse parses a positive duration string into whole seconds.
//
// Supported formats:
//   - Integer seconds: "600"
//   - Single suffix: "30s", "10m", "1h", "2d"
//   - Go duration syntax: "1m30s", "1.5h"
//   - Keywords: "minute", "hourly", "daily", "weekly"
func Parse(s string) (int64, error) {
	defer perf.Track(nil, "duration.Parse")()

	value := strings.TrimSpace(s)

	if intVal, err := strconv.ParseInt(value, base10, bitSize64); err == nil {
		if intVal > 0 {
			return intVal, nil
		}
		return 0, invalid(value, "Duration must be greater than zero")
	}

	if len(value) > 1 {
		unit := value[len(value)-1]
		if valInt, err := strconv.ParseInt(value[:len(value)-1], base10, bitSize64); err == nil {
			if valInt <= 0 {
				return 0, invalid(value, "Duration must be greater than zero")
			}
			switch unit {
			case 's':
				return valInt, nil
			case 'm':
				return valInt * secondsPerMinute, nil
			case 'h':
				return valInt * secondsPerHour, nil
			case 'd':
				return valInt * secondsPerDay, nil
			default:
				return 0, errUtils.Build(errUtils.ErrInvalidDuration).
					WithExplanation("Unrecognized duration unit").
					WithContext("unit", string(unit)).
					WithHint("Use 's' (seconds), 'm' (minutes), 'h' (hours), or 'd' (days)").
					Err()
			}
		}
	}

	if d, err := time.ParseDuration(value); err == nil {
		if d < time.Second {
			return 0, invalid(value, "Duration must be at least one second")
		}
		return int64(d / time.Second), nil
	}

	switch strings.ToLower(value) {
	case "minute":
		return secondsPerMinute, nil
	case "hourly":
		return secondsPerHour, nil
	case "daily":
		return secondsPerDay, nil
	case "weekly":
		return secondsPerWeek, nil
	default:
		return 0, invalid(value, "Unrecognized duration format")
	}
}

// ParseDuration is Parse returning a time.Duration.
func ParseDuration(s string) (time.Duration, error) {
	defer perf.Track(nil, "duration.ParseDuration")()

	seconds, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

// Format renders d for status messages: "850ms" below one second, "2.5s" above.
func Format(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func invalid(value, explanation string) error {
	return errUtils.Build(errUtils.ErrInvalidDuration).
		WithExplanation(explanation).
		WithContext("value", value).
		WithHint("Use formats like '600', '30s', '10m', '1h' or keywords like 'hourly'").
		Err()
}
