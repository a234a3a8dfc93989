// Package environment reads Ghost's GHOST_* and MATRIX_* settings from the
// process environment.
//
// Every helper returns a value or the supplied default; none of them exit the
// process. A malformed value is treated exactly like an unset one.
package environment

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the layout accepted by DateOr.
const DateLayout = "2006-01-02"

// StringOr returns the value of the named environment variable, or defaultValue
// if the variable is unset or empty.
func StringOr(name, defaultValue string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return defaultValue
}

// IntOr parses the named variable as a decimal integer.
func IntOr(name string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return defaultValue
	}
	return n
}

// DurationOr parses the named variable as a time.Duration ("500ms", "15s").
func DurationOr(name string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(name))
	if err != nil {
		return defaultValue
	}
	return d
}

// DateOr parses the named variable as a calendar date (YYYY-MM-DD, UTC).
// The zero time is a valid default and means "not configured".
func DateOr(name string, defaultValue time.Time) time.Time {
	d, err := time.Parse(DateLayout, os.Getenv(name))
	if err != nil {
		return defaultValue
	}
	return d
}

// StringSliceOr parses the named variable as a comma-separated list, trimming
// whitespace and dropping empty elements. Returns defaultValue if nothing
// usable remains.
func StringSliceOr(name string, defaultValue []string) []string {
	v := os.Getenv(name)
	if v == "" {
		return defaultValue
	}
	var result []string
	for _, p := range strings.Split(v, ",") {
		if t := strings.TrimSpace(p); t != "" {
			result = append(result, t)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
