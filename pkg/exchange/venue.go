package exchange

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"
)

const (
	oneDay        = 24 * time.Hour
	maxLookupDays = 14
)

var (
	ErrInvalidSession = errors.New("invalid venue session")
)

var defaultWeekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// Venue describes the regular trading session of an exchange. Open and
// Close are offsets from local midnight, Close may be 24h for sessions
// running until midnight.
type Venue struct {
	Name       string
	Location   *time.Location
	Open       time.Duration
	Close      time.Duration
	Weekdays   []time.Weekday
	Holidays   []time.Time
	AlwaysOpen bool
}

// NewVenue creates a session venue, loading the time zone by name.
func NewVenue(name, timezone string, openAt, closeAt time.Duration, weekdays ...time.Weekday) (Venue, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Venue{}, fmt.Errorf("unable to load time zone %q: %w", timezone, err)
	}
	if len(weekdays) == 0 {
		weekdays = defaultWeekdays
	}
	v := Venue{
		Name:     name,
		Location: loc,
		Open:     openAt,
		Close:    closeAt,
		Weekdays: weekdays,
	}
	if err := v.Validate(); err != nil {
		return Venue{}, err
	}
	return v, nil
}

// ContinuousVenue never closes.
func ContinuousVenue(name string) Venue {
	return Venue{Name: name, Location: time.UTC, AlwaysOpen: true}
}

func (v Venue) Validate() error {
	if v.AlwaysOpen {
		return nil
	}
	if v.Open < 0 || v.Close > oneDay || v.Open >= v.Close {
		return fmt.Errorf("%w: %s open %v close %v", ErrInvalidSession, v.Name, v.Open, v.Close)
	}
	return nil
}

// IsOpen reports whether the venue trades at t.
func (v Venue) IsOpen(t time.Time) bool {
	if v.AlwaysOpen {
		return true
	}
	local := t.In(v.location())
	if !v.isTradingDay(local) {
		return false
	}
	offset := local.Sub(midnight(local))
	return offset >= v.Open && offset < v.Close
}

// IsOpenDuringBar reports whether the venue is open for the whole interval
// [start, end]. A bar ending exactly at the close is still open.
func (v Venue) IsOpenDuringBar(start, end time.Time) bool {
	if v.AlwaysOpen {
		return true
	}
	if !v.IsOpen(start) {
		return false
	}
	return !end.After(v.NextClose(start))
}

// NextOpen returns the session open on the first trading day after the
// local date of t.
func (v Venue) NextOpen(t time.Time) time.Time {
	local := t.In(v.location())
	day := midnight(local)

	for i := 1; i <= maxLookupDays; i++ {
		next := day.AddDate(0, 0, i)
		if v.AlwaysOpen {
			return next
		}
		if v.isTradingDay(next) {
			return next.Add(v.Open)
		}
	}
	return time.Time{}
}

// NextClose returns the first session close at or after t.
func (v Venue) NextClose(t time.Time) time.Time {
	local := t.In(v.location())
	day := midnight(local)

	if v.AlwaysOpen {
		return day.Add(oneDay)
	}

	for i := 0; i <= maxLookupDays; i++ {
		next := day.AddDate(0, 0, i)
		if !v.isTradingDay(next) {
			continue
		}
		if closeTime := next.Add(v.Close); !closeTime.Before(t) {
			return closeTime
		}
	}
	return time.Time{}
}

func (v Venue) isTradingDay(local time.Time) bool {
	weekdays := v.Weekdays
	if len(weekdays) == 0 {
		weekdays = defaultWeekdays
	}

	found := false
	for _, wd := range weekdays {
		if wd == local.Weekday() {
			found = true
			break
		}
	}
	if !found {
		return false
	}

	y, m, d := local.Date()
	for _, h := range v.Holidays {
		hy, hm, hd := h.Date()
		if hy == y && hm == m && hd == d {
			return false
		}
	}
	return true
}

func (v Venue) location() *time.Location {
	if v.Location == nil {
		return time.UTC
	}
	return v.Location
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
