package market

import (
	"testing"
	"time"

	"StockPulse/internal/config"
)

func newTestCalendar(t *testing.T) *Calendar {
	t.Helper()
	cal, err := NewCalendar(config.MarketConfig{
		Open:        "09:15",
		Close:       "15:30",
		TradingDays: []int{1, 2, 3, 4, 5},
		Timezone:    "UTC",
	})
	if err != nil {
		t.Fatalf("new calendar: %v", err)
	}
	return cal
}

func TestStatusOpenOnTradingDay(t *testing.T) {
	cal := newTestCalendar(t)

	// Monday 2026-03-02 10:00.
	st := cal.Status(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	if !st.IsTradingDay {
		t.Error("Monday should be a trading day")
	}
	if !st.IsOpen {
		t.Error("10:00 on a trading day should be open")
	}
	if st.NextClose.IsZero() {
		t.Error("next close must be set while open")
	}
	if st.NextClose.Hour() != 15 || st.NextClose.Minute() != 30 {
		t.Errorf("next close = %s, want 15:30", st.NextClose)
	}
}

func TestStatusClosedOnWeekend(t *testing.T) {
	cal := newTestCalendar(t)

	// Saturday, mid trading hours.
	st := cal.Status(time.Date(2026, 3, 7, 11, 0, 0, 0, time.UTC))
	if st.IsTradingDay {
		t.Error("Saturday is not a trading day")
	}
	if st.IsOpen {
		t.Error("market must be closed on a non-trading weekday regardless of time")
	}
	if !st.NextClose.IsZero() {
		t.Error("next close must be absent while closed")
	}
	// Next open is Monday 09:15.
	if st.NextOpen.Weekday() != time.Monday {
		t.Errorf("next open weekday = %s, want Monday", st.NextOpen.Weekday())
	}
	if st.NextOpen.Hour() != 9 || st.NextOpen.Minute() != 15 {
		t.Errorf("next open = %s, want 09:15", st.NextOpen)
	}
}

func TestStatusClosedOutsideHours(t *testing.T) {
	cal := newTestCalendar(t)

	// Monday 08:00, before open.
	st := cal.Status(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	if !st.IsTradingDay || st.IsOpen {
		t.Errorf("08:00 on a trading day: trading=%t open=%t, want trading and closed", st.IsTradingDay, st.IsOpen)
	}
	// Before close on a trading day, next open is still today's open.
	if st.NextOpen.Day() != 2 {
		t.Errorf("next open day = %d, want 2 (today)", st.NextOpen.Day())
	}

	// Monday 16:00, after close: next open rolls to Tuesday.
	st = cal.Status(time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC))
	if st.IsOpen {
		t.Error("16:00 is past close")
	}
	if st.NextOpen.Weekday() != time.Tuesday {
		t.Errorf("next open weekday = %s, want Tuesday", st.NextOpen.Weekday())
	}
}

func TestNextOpenSkipsWeekend(t *testing.T) {
	cal := newTestCalendar(t)

	// Friday 2026-03-06 after close: next open is Monday 03-09.
	next := cal.NextOpen(time.Date(2026, 3, 6, 17, 0, 0, 0, time.UTC))
	if next.Weekday() != time.Monday || next.Day() != 9 {
		t.Errorf("next open = %s, want Monday 2026-03-09", next)
	}
}

func TestCloseMinuteStillOpen(t *testing.T) {
	cal := newTestCalendar(t)

	if !cal.IsOpen(time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)) {
		t.Error("the close minute itself is still open")
	}
	if cal.IsOpen(time.Date(2026, 3, 2, 15, 31, 0, 0, time.UTC)) {
		t.Error("one minute past close must be closed")
	}
}
