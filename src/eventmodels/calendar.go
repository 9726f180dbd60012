package eventmodels

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	newYork     *time.Location
	newYorkOnce sync.Once
)

// NewYorkLocation returns the exchange time zone. Falls back to a fixed EST
// offset when the tz database is unavailable.
func NewYorkLocation() *time.Location {
	newYorkOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			log.Warnf("NewYorkLocation: failed to load tz database, using fixed EST offset: %v", err)
			loc = time.FixedZone("EST", -5*60*60)
		}

		newYork = loc
	})

	return newYork
}

type Calendar struct {
	Date        string
	MarketOpen  time.Time
	MarketClose time.Time
}

func (c *Calendar) IsBetweenMarketHours(t time.Time) bool {
	return (t.Equal(c.MarketOpen) || t.After(c.MarketOpen)) && t.Before(c.MarketClose)
}

// NewRegularSessionCalendar returns the 09:30-16:00 New York session for the
// day of t, or nil on weekends.
func NewRegularSessionCalendar(t time.Time) *Calendar {
	loc := NewYorkLocation()
	day := t.In(loc)
	if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		return nil
	}

	y, m, d := day.Date()
	return &Calendar{
		Date:        day.Format("2006-01-02"),
		MarketOpen:  time.Date(y, m, d, 9, 30, 0, 0, loc),
		MarketClose: time.Date(y, m, d, 16, 0, 0, 0, loc),
	}
}

// IsRegularTradingHours ignores exchange holidays.
func IsRegularTradingHours(t time.Time) bool {
	cal := NewRegularSessionCalendar(t)
	if cal == nil {
		return false
	}

	return cal.IsBetweenMarketHours(t)
}

// DateOnly truncates t to midnight of its New York date.
func DateOnly(t time.Time) time.Time {
	loc := NewYorkLocation()
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DaysBetween counts calendar days from the New York date of `from` to the New York date of `to`.
func DaysBetween(from, to time.Time) int {
	a := DateOnly(from)
	b := DateOnly(to)

	// dates are compared at noon UTC so DST shifts never change the count
	ua := time.Date(a.Year(), a.Month(), a.Day(), 12, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 12, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// DeriveNextFriday returns the first Friday strictly after the date of now.
func DeriveNextFriday(now time.Time) time.Time {
	today := DateOnly(now)
	daysAhead := int(time.Friday - today.Weekday())
	if daysAhead <= 0 {
		daysAhead += 7
	}

	return today.AddDate(0, 0, daysAhead)
}

// ParseGatewayDate accepts the gateway's YYYYMMDD form as well as ISO dates.
func ParseGatewayDate(s string) (time.Time, error) {
	loc := NewYorkLocation()
	if len(s) >= 8 && s[4] != '-' {
		return time.ParseInLocation("20060102", s[:8], loc)
	}

	if len(s) >= 10 {
		return time.ParseInLocation("2006-01-02", s[:10], loc)
	}

	return time.ParseInLocation("2006-01-02", s, loc)
}
