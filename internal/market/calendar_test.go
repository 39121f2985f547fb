package market

import (
	"testing"
	"time"
)

func makeTestCalendar() *Calendar {
	return NewCalendarFromHolidays(map[string]string{
		"2026-01-01": "New Year's Day",
		"2026-07-03": "Independence Day (observed)",
		"2026-11-26": "Thanksgiving",
	})
}

func TestCalendar_WeekdayIsTradingDay(t *testing.T) {
	cal := makeTestCalendar()
	// Monday, Feb 2, 2026.
	monday := time.Date(2026, 2, 2, 10, 0, 0, 0, Eastern)
	if !cal.IsTradingDay(monday) {
		t.Error("expected Monday to be a trading day")
	}
}

func TestCalendar_WeekendIsNotTradingDay(t *testing.T) {
	cal := makeTestCalendar()
	saturday := time.Date(2026, 2, 7, 10, 0, 0, 0, Eastern)
	sunday := time.Date(2026, 2, 8, 10, 0, 0, 0, Eastern)

	if cal.IsTradingDay(saturday) {
		t.Error("expected Saturday to not be a trading day")
	}
	if cal.IsTradingDay(sunday) {
		t.Error("expected Sunday to not be a trading day")
	}
}

func TestCalendar_HolidayIsNotTradingDay(t *testing.T) {
	cal := makeTestCalendar()
	newYears := time.Date(2026, 1, 1, 10, 0, 0, 0, Eastern)

	if cal.IsTradingDay(newYears) {
		t.Error("expected New Year's Day to not be a trading day")
	}
	if reason := cal.HolidayReason(newYears); reason != "New Year's Day" {
		t.Errorf("expected \"New Year's Day\", got %q", reason)
	}
}

func TestCalendar_MarketOpenDuringTradingHours(t *testing.T) {
	cal := makeTestCalendar()
	during := time.Date(2026, 2, 2, 10, 30, 0, 0, Eastern)
	if !cal.IsMarketOpen(during) {
		t.Error("expected market to be open at 10:30 AM Eastern on a trading day")
	}
}

func TestCalendar_MarketClosedBeforeOpen(t *testing.T) {
	cal := makeTestCalendar()
	before := time.Date(2026, 2, 2, 9, 0, 0, 0, Eastern)
	if cal.IsMarketOpen(before) {
		t.Error("expected market to be closed at 9:00 AM Eastern")
	}
}

func TestCalendar_MarketClosedAfterClose(t *testing.T) {
	cal := makeTestCalendar()
	after := time.Date(2026, 2, 2, 16, 1, 0, 0, Eastern)
	if cal.IsMarketOpen(after) {
		t.Error("expected market to be closed at 4:01 PM Eastern")
	}
}

func TestCalendar_MarketClosedOnWeekend(t *testing.T) {
	cal := makeTestCalendar()
	saturday := time.Date(2026, 2, 7, 10, 30, 0, 0, Eastern)
	if cal.IsMarketOpen(saturday) {
		t.Error("expected market to be closed on Saturday")
	}
}

func TestCalendar_TimeUntilNextSession(t *testing.T) {
	cal := makeTestCalendar()

	friday := time.Date(2026, 2, 6, 16, 0, 0, 0, Eastern)
	duration := cal.TimeUntilNextSession(friday)
	if duration <= 0 {
		t.Errorf("expected positive duration, got %v", duration)
	}

	during := time.Date(2026, 2, 2, 10, 30, 0, 0, Eastern)
	duration = cal.TimeUntilNextSession(during)
	if duration != 0 {
		t.Errorf("expected 0 during market hours, got %v", duration)
	}
}

func TestCalendar_NextTradingDay(t *testing.T) {
	cal := makeTestCalendar()

	friday := time.Date(2026, 2, 6, 0, 0, 0, 0, Eastern)
	next := cal.NextTradingDay(friday)
	if next.Weekday() != time.Monday {
		t.Errorf("expected Monday after Friday, got %s", next.Weekday())
	}
}

func TestCalendar_PreviousTradingDay(t *testing.T) {
	cal := makeTestCalendar()

	monday := time.Date(2026, 2, 9, 0, 0, 0, 0, Eastern)
	prev := cal.PreviousTradingDay(monday)
	if prev.Weekday() != time.Friday {
		t.Errorf("expected Friday before Monday, got %s", prev.Weekday())
	}
}

func TestWeekdayIndex(t *testing.T) {
	monday := time.Date(2026, 2, 2, 0, 0, 0, 0, Eastern)
	if WeekdayIndex(monday) != 0 {
		t.Errorf("expected 0 for Monday, got %d", WeekdayIndex(monday))
	}
	friday := time.Date(2026, 2, 6, 0, 0, 0, 0, Eastern)
	if WeekdayIndex(friday) != 4 {
		t.Errorf("expected 4 for Friday, got %d", WeekdayIndex(friday))
	}
}
