package market

import (
	"time"

	"github.com/scmhub/calendar"
)

// Clock answers trading-session questions in exchange time. All entry
// windows and exit cutoffs are defined in US/Eastern regardless of where
// the bot runs.
type Clock struct {
	location *time.Location
	nyse     *calendar.Calendar
}

func NewClock() *Clock {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return &Clock{
		location: loc,
		nyse:     calendar.XNYS(),
	}
}

// Location returns the exchange timezone.
func (c *Clock) Location() *time.Location {
	return c.location
}

// Eastern converts t to exchange time.
func (c *Clock) Eastern(t time.Time) time.Time {
	return t.In(c.location)
}

// IsTradingDay reports whether t falls on an NYSE business day.
func (c *Clock) IsTradingDay(t time.Time) bool {
	// Noon anchor avoids date shifts near midnight UTC.
	et := c.Eastern(t)
	noon := time.Date(et.Year(), et.Month(), et.Day(), 12, 0, 0, 0, c.location)
	return c.nyse.IsBusinessDay(noon)
}

// SessionOpen returns 09:30 ET on t's trading date.
func (c *Clock) SessionOpen(t time.Time) time.Time {
	return c.at(t, 9, 30)
}

// SessionClose returns 16:00 ET on t's trading date.
func (c *Clock) SessionClose(t time.Time) time.Time {
	return c.at(t, 16, 0)
}

// Expiration returns the settlement instant for a same-day option: the
// 16:00 ET close of t's trading date.
func (c *Clock) Expiration(t time.Time) time.Time {
	return c.SessionClose(t)
}

// MinutesSinceOpen returns the elapsed session time in minutes, negative
// before the open.
func (c *Clock) MinutesSinceOpen(t time.Time) float64 {
	return t.Sub(c.SessionOpen(t)).Minutes()
}

func (c *Clock) at(t time.Time, hour, minute int) time.Time {
	et := c.Eastern(t)
	return time.Date(et.Year(), et.Month(), et.Day(), hour, minute, 0, 0, c.location)
}
