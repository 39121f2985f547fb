// Package market handles data persistence and market-state awareness for
// the trading system.
//
// Design rules:
//   - System must know if today is a trading day.
//   - System must know if the market is currently open.
//   - Do not rely only on weekday checks; exchange holiday data governs.
//   - One central Calendar type, used by both the weekly backtest state
//     machine and the live monitor loop.
package market

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Eastern is the US equity market's timezone.
var Eastern *time.Location

func init() {
	var err error
	Eastern, err = time.LoadLocation("America/New_York")
	if err != nil {
		panic(fmt.Sprintf("market: failed to load America/New_York timezone: %v", err))
	}
}

// NYSE/NASDAQ regular session hours (Eastern).
const (
	MarketOpenHour  = 9
	MarketOpenMin   = 30
	MarketCloseHour = 16
	MarketCloseMin  = 0
)

// Calendar provides exchange calendar and market state information.
type Calendar struct {
	holidays map[string]string // date (YYYY-MM-DD) -> reason
}

// HolidayEntry represents a single exchange holiday.
type HolidayEntry struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// NewCalendar creates a Calendar from a JSON holiday file.
func NewCalendar(holidayFilePath string) (*Calendar, error) {
	data, err := os.ReadFile(holidayFilePath)
	if err != nil {
		return nil, fmt.Errorf("market calendar: read holidays file: %w", err)
	}

	var entries []HolidayEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("market calendar: parse holidays: %w", err)
	}

	holidays := make(map[string]string, len(entries))
	for _, e := range entries {
		holidays[e.Date] = e.Reason
	}

	return &Calendar{holidays: holidays}, nil
}

// NewCalendarFromHolidays creates a Calendar directly from a holiday map.
// Useful for testing.
func NewCalendarFromHolidays(holidays map[string]string) *Calendar {
	return &Calendar{holidays: holidays}
}

// IsTradingDay returns true if the given date is a valid trading day: a
// weekday that is not an exchange holiday.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	d := date.In(Eastern)

	if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		return false
	}

	dateStr := d.Format("2006-01-02")
	if _, isHoliday := c.holidays[dateStr]; isHoliday {
		return false
	}

	return true
}

// HolidayReason returns the reason for a holiday, or empty string if not one.
func (c *Calendar) HolidayReason(date time.Time) string {
	dateStr := date.In(Eastern).Format("2006-01-02")
	return c.holidays[dateStr]
}

// IsMarketOpen returns true if the exchange is currently in its regular
// trading session.
func (c *Calendar) IsMarketOpen(now time.Time) bool {
	t := now.In(Eastern)

	if !c.IsTradingDay(t) {
		return false
	}

	currentMinutes := t.Hour()*60 + t.Minute()
	openMinutes := MarketOpenHour*60 + MarketOpenMin
	closeMinutes := MarketCloseHour*60 + MarketCloseMin

	return currentMinutes >= openMinutes && currentMinutes < closeMinutes
}

// TimeUntilNextSession returns the duration until the next market open.
// If the market is currently open, returns 0.
func (c *Calendar) TimeUntilNextSession(now time.Time) time.Duration {
	t := now.In(Eastern)

	if c.IsMarketOpen(t) {
		return 0
	}

	candidate := t
	for i := 0; i < 10; i++ {
		if i == 0 && c.IsTradingDay(candidate) {
			todayOpen := time.Date(candidate.Year(), candidate.Month(), candidate.Day(),
				MarketOpenHour, MarketOpenMin, 0, 0, Eastern)
			if t.Before(todayOpen) {
				return todayOpen.Sub(t)
			}
		}

		candidate = candidate.AddDate(0, 0, 1)
		if c.IsTradingDay(candidate) {
			nextOpen := time.Date(candidate.Year(), candidate.Month(), candidate.Day(),
				MarketOpenHour, MarketOpenMin, 0, 0, Eastern)
			return nextOpen.Sub(t)
		}
	}

	return 24 * time.Hour
}

// NextTradingDay returns the next trading day after the given date.
func (c *Calendar) NextTradingDay(date time.Time) time.Time {
	candidate := date.In(Eastern).AddDate(0, 0, 1)
	for i := 0; i < 10; i++ {
		if c.IsTradingDay(candidate) {
			return candidate
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// PreviousTradingDay returns the most recent trading day before the given date.
func (c *Calendar) PreviousTradingDay(date time.Time) time.Time {
	candidate := date.In(Eastern).AddDate(0, 0, -1)
	for i := 0; i < 10; i++ {
		if c.IsTradingDay(candidate) {
			return candidate
		}
		candidate = candidate.AddDate(0, 0, -1)
	}
	return candidate
}

// WeekdayIndex returns the backtest state machine's weekday index for a
// date: 0=Monday ... 4=Friday. Callers must only invoke this for trading
// days within the Mon-Fri range.
func WeekdayIndex(date time.Time) int {
	return int(date.In(Eastern).Weekday()) - 1
}
