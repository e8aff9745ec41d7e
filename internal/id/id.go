package id

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRecordID returns a fresh session-scoped record handle.
func NewRecordID() string {
	return uuid.NewString()
}

// FormatMonth returns a month key like "2025-01".
func FormatMonth(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// MonthOf returns the month key for t.
func MonthOf(t time.Time) string {
	return FormatMonth(t.Year(), t.Month())
}

// ParseMonth parses "2025-01" into year, month.
func ParseMonth(key string) (year int, month time.Month, err error) {
	parts := strings.SplitN(key, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid month key format: %q", key)
	}

	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year in month key %q: %w", key, err)
	}

	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month in month key %q: %w", key, err)
	}
	if m < 1 || m > 12 {
		return 0, 0, fmt.Errorf("month out of range in month key %q", key)
	}

	return year, time.Month(m), nil
}

// ShortID returns the first 8 characters of a record ID, for display.
// "9b2f0c1e-..." -> "9b2f0c1e"
func ShortID(recordID string) string {
	if len(recordID) <= 8 {
		return recordID
	}
	return recordID[:8]
}
