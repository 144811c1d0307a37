// Package calendar decides which calendar dates are trading days. Weekday
// rules are fixed; the holiday exception set is data loaded from a file so
// it can be updated without a rebuild.
package calendar

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/viper"
)

const dateLayout = "2006-01-02"

// Calendar answers trading-day questions for a market. It is immutable after
// construction and safe for concurrent reads.
type Calendar struct {
	holidays map[string]struct{}
}

// New creates a Calendar with the given holiday dates (YYYY-MM-DD).
func New(holidays []string) *Calendar {
	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		set[h] = struct{}{}
	}
	return &Calendar{holidays: set}
}

// Load reads the holiday set from a YAML file with a top-level "holidays"
// list. When the file does not exist, the built-in default set is used.
func Load(path string) (*Calendar, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		// viper wraps open errors differently depending on the path form
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(errors.Unwrap(err)) || os.IsNotExist(err) {
			return New(defaultHolidays), nil
		}
		return nil, fmt.Errorf("failed to read calendar file %s: %w", path, err)
	}

	holidays := v.GetStringSlice("holidays")
	if len(holidays) == 0 {
		return New(defaultHolidays), nil
	}

	for _, h := range holidays {
		if _, err := time.Parse(dateLayout, h); err != nil {
			return nil, fmt.Errorf("invalid holiday date %q in %s: %w", h, path, err)
		}
	}

	return New(holidays), nil
}

// IsTradingDay reports whether the given date is a trading day: a weekday
// that is not in the holiday set. Only the calendar date of t is considered.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[t.Format(dateLayout)]
	return !holiday
}

// TradingDays returns every trading day in [start, end] in ascending order.
// A range with no trading days, including start after end, yields an empty
// slice.
func (c *Calendar) TradingDays(start, end time.Time) []time.Time {
	start = Normalize(start)
	end = Normalize(end)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// CountTradingDays returns the number of trading days in [start, end].
func (c *Calendar) CountTradingDays(start, end time.Time) int {
	return len(c.TradingDays(start, end))
}

// RecentTradingDays returns the n most recent trading days on or before ref,
// most recent first.
func (c *Calendar) RecentTradingDays(ref time.Time, n int) []time.Time {
	ref = Normalize(ref)

	var days []time.Time
	for d := ref; len(days) < n; d = d.AddDate(0, 0, -1) {
		if c.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// HolidayCount returns the size of the exception set.
func (c *Calendar) HolidayCount() int {
	return len(c.holidays)
}

// Holidays returns the exception set in ascending order.
func (c *Calendar) Holidays() []string {
	out := make([]string, 0, len(c.holidays))
	for h := range c.holidays {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Normalize truncates t to its calendar date in UTC. All dates handled by
// the calendar and the gap detector are normalized this way so that map and
// equality comparisons are exact.
func Normalize(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
