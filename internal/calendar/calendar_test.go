package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestIsTradingDay(t *testing.T) {
	cal := New([]string{"2024-05-01"})

	assert.True(t, cal.IsTradingDay(date("2024-05-06")))  // Monday
	assert.True(t, cal.IsTradingDay(date("2024-05-10")))  // Friday
	assert.False(t, cal.IsTradingDay(date("2024-05-04"))) // Saturday
	assert.False(t, cal.IsTradingDay(date("2024-05-05"))) // Sunday
	assert.False(t, cal.IsTradingDay(date("2024-05-01"))) // holiday on a Wednesday
}

func TestTradingDaysExcludesWeekendsAndHolidays(t *testing.T) {
	cal := New([]string{"2024-05-01", "2024-05-02", "2024-05-03"})

	days := cal.TradingDays(date("2024-04-29"), date("2024-05-10"))

	var got []string
	for _, d := range days {
		got = append(got, d.Format("2006-01-02"))
	}
	assert.Equal(t, []string{
		"2024-04-29", "2024-04-30",
		"2024-05-06", "2024-05-07", "2024-05-08", "2024-05-09", "2024-05-10",
	}, got)
}

func TestTradingDaysInvertedRangeIsEmpty(t *testing.T) {
	cal := New(nil)
	assert.Empty(t, cal.TradingDays(date("2024-06-10"), date("2024-06-01")))
	assert.Zero(t, cal.CountTradingDays(date("2024-06-10"), date("2024-06-01")))
}

func TestTradingDaysWeekendOnlyRangeIsEmpty(t *testing.T) {
	cal := New(nil)
	assert.Empty(t, cal.TradingDays(date("2024-05-04"), date("2024-05-05")))
}

func TestRecentTradingDays(t *testing.T) {
	cal := New([]string{"2024-05-01"})

	// Reference is Sunday 2024-05-05; May 1 is a holiday.
	days := cal.RecentTradingDays(date("2024-05-05"), 3)
	require.Len(t, days, 3)
	assert.Equal(t, "2024-05-03", days[0].Format("2006-01-02"))
	assert.Equal(t, "2024-05-02", days[1].Format("2006-01-02"))
	assert.Equal(t, "2024-04-30", days[2].Format("2006-01-02"))
}

func TestNormalize(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	ts := time.Date(2024, 5, 6, 15, 30, 45, 123, loc)

	n := Normalize(ts)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), n)
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cal, err := Load("testdata/does-not-exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, len(defaultHolidays), cal.HolidayCount())
}

func TestLoadReadsHolidayFile(t *testing.T) {
	cal, err := Load("testdata/calendar.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, cal.HolidayCount())
	assert.False(t, cal.IsTradingDay(date("2030-07-01")))
	assert.True(t, cal.IsTradingDay(date("2030-07-02")))
}
