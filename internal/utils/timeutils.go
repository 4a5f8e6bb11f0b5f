package utils

import (
	"fmt"
	"strconv"
	"time"
)

// ParseRFC3339 returns a time from the provided string or an error.
func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}

// ParseHours parses a positive hour count from a query parameter, falling
// back to def when absent or malformed.
func ParseHours(value string, def int) int {
	if value == "" {
		return def
	}
	h, err := strconv.Atoi(value)
	if err != nil || h <= 0 {
		return def
	}
	return h
}

// ParseLimit parses a positive result limit, capping at max.
func ParseLimit(value string, def, max int) int {
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
