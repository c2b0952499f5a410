package domain

import "time"

const dayLayout = "2006-01-02"

// Day is a calendar date in the service's configured location.
type Day string

// DayOf returns the calendar day of t in t's location.
func DayOf(t time.Time) Day {
	return Day(t.Format(dayLayout))
}

// Start returns midnight of d in loc.
func (d Day) Start(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dayLayout, string(d), loc)
}

// AddDays shifts d by n calendar days.
func (d Day) AddDays(n int) Day {
	t, err := time.Parse(dayLayout, string(d))
	if err != nil {
		return d
	}
	return DayOf(t.AddDate(0, 0, n))
}

func (d Day) String() string {
	return string(d)
}

// StartOfNextDay returns midnight after t, in t's location.
func StartOfNextDay(t time.Time) time.Time {
	y, m, dd := t.Date()
	return time.Date(y, m, dd+1, 0, 0, 0, 0, t.Location())
}
