package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOfDay(t *testing.T) {
	in := time.Date(2024, 7, 9, 15, 30, 45, 123456789, time.UTC)
	got := StartOfDay(in)

	assert.Equal(t, time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC), got)
}

func TestEndOfDay(t *testing.T) {
	in := time.Date(2024, 7, 9, 15, 30, 45, 0, time.UTC)
	got := EndOfDay(in)

	assert.Equal(t, time.Date(2024, 7, 9, 23, 59, 59, 999999999, time.UTC), got)
}

func TestStartOfDay_NormalizesZone(t *testing.T) {
	// 02:30 in Almaty is still the previous UTC day
	almaty := time.FixedZone("ALMT", 5*3600)
	in := time.Date(2024, 3, 16, 2, 30, 0, 0, almaty)

	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), StartOfDay(in))
}

func TestIsSameDay(t *testing.T) {
	night := time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)
	morning := time.Date(2024, 3, 15, 0, 1, 0, 0, time.UTC)
	nextDay := time.Date(2024, 3, 16, 0, 1, 0, 0, time.UTC)

	assert.True(t, IsSameDay(night, morning))
	assert.False(t, IsSameDay(night, nextDay))
}

func TestIsSameDay_ComparesUTCDays(t *testing.T) {
	almaty := time.FixedZone("ALMT", 5*3600)
	lateUTC := time.Date(2024, 3, 15, 21, 0, 0, 0, time.UTC)
	// 04:00 on the 16th in Almaty is 23:00 on the 15th in UTC
	localMorning := time.Date(2024, 3, 16, 4, 0, 0, 0, almaty)

	assert.True(t, IsSameDay(lateUTC, localMorning))
}

func TestIsToday(t *testing.T) {
	assert.True(t, IsToday(Now()))
	assert.False(t, IsToday(Now().Add(-48*time.Hour)))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)
	b := time.Date(2024, 2, 2, 23, 0, 0, 0, time.UTC)

	assert.Equal(t, 2, DaysBetween(a, b))
	assert.Equal(t, 2, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
}

func TestDaysBetween_IgnoresTimeOfDay(t *testing.T) {
	lateEvening := time.Date(2024, 5, 1, 23, 50, 0, 0, time.UTC)
	earlyMorning := time.Date(2024, 5, 2, 0, 10, 0, 0, time.UTC)

	assert.Equal(t, 1, DaysBetween(lateEvening, earlyMorning))
}

func TestDaysSince(t *testing.T) {
	assert.Equal(t, 3, DaysSince(Now().Add(-72*time.Hour)))
	assert.Equal(t, 0, DaysSince(Now()))
}

func TestAge(t *testing.T) {
	age := Age(Now().Add(-time.Minute))
	assert.GreaterOrEqual(t, age, time.Minute)
	assert.Less(t, age, time.Minute+10*time.Second)
}

func TestAge_ZeroForFutureTimes(t *testing.T) {
	assert.Equal(t, time.Duration(0), Age(Now().Add(time.Hour)))
}

func TestFormatDateStr(t *testing.T) {
	msk := time.FixedZone("MSK", 3*3600)
	in := time.Date(2024, 12, 31, 2, 30, 0, 0, msk)

	assert.Equal(t, "2024-12-30", FormatDateStr(in))
}

func TestFormatDateTimeStr(t *testing.T) {
	in := time.Date(2024, 12, 30, 23, 30, 5, 0, time.UTC)

	assert.Equal(t, "2024-12-30 23:30:05", FormatDateTimeStr(in))
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-09-01")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestParseDate_RejectsOtherLayouts(t *testing.T) {
	_, err := ParseDate("01/09/2024")
	assert.Error(t, err)
}

func TestParseDate_RoundTrip(t *testing.T) {
	parsed, err := ParseDate("2025-02-28")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-28", FormatDateStr(parsed))
}

func TestFormatRelative(t *testing.T) {
	assert.Equal(t, "just now", FormatRelative(Now()))
	assert.Equal(t, "just now", FormatRelative(Now().Add(-5*time.Second)))
	assert.Equal(t, "30s ago", FormatRelative(Now().Add(-30*time.Second)))
	assert.Equal(t, "2m ago", FormatRelative(Now().Add(-125*time.Second)))
	assert.Equal(t, "2m from now", FormatRelative(Now().Add(125*time.Second)))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", FormatDuration(0))
	assert.Equal(t, "59s", FormatDuration(59*time.Second))
	assert.Equal(t, "1m", FormatDuration(time.Minute))
	assert.Equal(t, "59m", FormatDuration(59*time.Minute+59*time.Second))
	assert.Equal(t, "1h", FormatDuration(time.Hour))
	assert.Equal(t, "23h", FormatDuration(23*time.Hour+59*time.Minute))
	assert.Equal(t, "1d", FormatDuration(36*time.Hour))
	assert.Equal(t, "3d", FormatDuration(72*time.Hour))
}
