// Package market answers "is the exchange open right now" from a fixed
// trading-day set and open/close times in one timezone. Pure wall-clock
// math; nothing here is persisted.
package market

import (
	"fmt"
	"time"

	"StockPulse/internal/config"
	"StockPulse/internal/model"
)

// Calendar computes market status for a fixed trading schedule.
type Calendar struct {
	openMin  int // minutes after midnight
	closeMin int
	days     map[time.Weekday]bool
	loc      *time.Location
}

// NewCalendar builds a Calendar from the market config section.
func NewCalendar(cfg config.MarketConfig) (*Calendar, error) {
	oh, om, err := config.ParseClock(cfg.Open)
	if err != nil {
		return nil, fmt.Errorf("market open: %w", err)
	}
	ch, cm, err := config.ParseClock(cfg.Close)
	if err != nil {
		return nil, fmt.Errorf("market close: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("market timezone: %w", err)
	}
	days := make(map[time.Weekday]bool, len(cfg.TradingDays))
	for _, d := range cfg.TradingDays {
		days[time.Weekday(d)] = true
	}
	return &Calendar{
		openMin:  oh*60 + om,
		closeMin: ch*60 + cm,
		days:     days,
		loc:      loc,
	}, nil
}

// Location returns the calendar's timezone.
func (c *Calendar) Location() *time.Location { return c.loc }

// IsTradingDay reports whether t falls on a configured trading weekday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	return c.days[t.In(c.loc).Weekday()]
}

// IsOpen reports whether t is within trading hours on a trading day.
// The close minute itself is still considered open.
func (c *Calendar) IsOpen(t time.Time) bool {
	local := t.In(c.loc)
	if !c.days[local.Weekday()] {
		return false
	}
	hm := local.Hour()*60 + local.Minute()
	return hm >= c.openMin && hm <= c.closeMin
}

// NextOpen returns the next market open instant. On a trading day before
// close this is today's open, even when the market is already open;
// callers that need a strictly future open compare against now.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	local := t.In(c.loc)
	d := local
	if local.Hour()*60+local.Minute() > c.closeMin {
		d = d.AddDate(0, 0, 1)
	}
	for i := 0; i < 7 && !c.days[d.Weekday()]; i++ {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.openMin/60, c.openMin%60, 0, 0, c.loc)
}

// todayClose returns the close instant on t's date.
func (c *Calendar) todayClose(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), c.closeMin/60, c.closeMin%60, 0, 0, c.loc)
}

// Status computes the full market status at t. Recomputed on every call.
// NextClose is set only while the market is open.
func (c *Calendar) Status(t time.Time) model.MarketStatus {
	local := t.In(c.loc)
	st := model.MarketStatus{
		IsOpen:       c.IsOpen(local),
		IsTradingDay: c.IsTradingDay(local),
		CurrentTime:  naive(local),
		NextOpen:     naive(c.NextOpen(local)),
	}
	if st.IsOpen {
		st.NextClose = naive(c.todayClose(local))
	}
	return st
}

// naive strips the location, reporting the local wall-clock instant the way
// the stored timestamps are kept.
func naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
