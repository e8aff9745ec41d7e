package id

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMonth(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  string
	}{
		{2025, time.January, "2025-01"},
		{2025, time.December, "2025-12"},
		{999, time.March, "0999-03"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMonth(tt.year, tt.month))
	}
}

func TestMonthOf(t *testing.T) {
	assert.Equal(t, "2024-02", MonthOf(time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)))
}

func TestParseMonth(t *testing.T) {
	year, month, err := ParseMonth("2025-01")
	require.NoError(t, err)
	assert.Equal(t, 2025, year)
	assert.Equal(t, time.January, month)
}

func TestParseMonth_Invalid(t *testing.T) {
	tests := []string{
		"",
		"2025",
		"abc-01",
		"2025-xx",
		"2025-13",
		"2025-00",
	}
	for _, key := range tests {
		_, _, err := ParseMonth(key)
		assert.Error(t, err, "ParseMonth(%q) should fail", key)
	}
}

func TestRoundTrip(t *testing.T) {
	key := FormatMonth(2024, time.November)
	year, month, err := ParseMonth(key)
	require.NoError(t, err)
	assert.Equal(t, 2024, year)
	assert.Equal(t, time.November, month)
}

func TestNewRecordID(t *testing.T) {
	a := NewRecordID()
	b := NewRecordID()
	assert.NotEqual(t, a, b)

	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "9b2f0c1e", ShortID("9b2f0c1e-1111-2222-3333-444455556666"))
	assert.Equal(t, "abc", ShortID("abc"))
	assert.Equal(t, "", ShortID(""))
}
