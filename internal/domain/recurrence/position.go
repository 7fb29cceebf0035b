// internal/domain/recurrence/position.go
package recurrence

import "time"

// DatePosition describes where a date sits among the same weekdays of its month.
type DatePosition struct {
	Weekday time.Weekday
	Ordinal int  // 1-based count of this weekday in the month up to and including the date
	IsLast  bool // no later date in the month shares the weekday
}

// PositionOf derives the monthly position of d. A date is the Nth weekday where
// N = (day-1)/7 + 1, and it is the last one when a week later falls in the next month.
func PositionOf(d Date) DatePosition {
	return DatePosition{
		Weekday: d.Weekday(),
		Ordinal: (d.Day-1)/7 + 1,
		IsLast:  d.Day+7 > daysInMonth(d.Year, d.Month),
	}
}

// Matches reports whether p satisfies the given monthly position.
func (p DatePosition) Matches(mp MonthlyPosition) bool {
	if p.Weekday != mp.Weekday {
		return false
	}
	if mp.Ordinal == Last {
		return p.IsLast
	}
	return p.Ordinal == mp.Ordinal
}

// nthWeekday returns the date of the given monthly position in year/month. ok is false
// when the month has no such date (e.g. a fifth Monday in a month with four).
func nthWeekday(year int, month time.Month, mp MonthlyPosition) (Date, bool) {
	last := daysInMonth(year, month)
	if mp.Ordinal == Last {
		lastWeekday := NewDate(year, month, last).Weekday()
		back := (int(lastWeekday) - int(mp.Weekday) + 7) % 7
		return Date{Year: year, Month: month, Day: last - back}, true
	}
	firstWeekday := NewDate(year, month, 1).Weekday()
	day := 1 + (int(mp.Weekday)-int(firstWeekday)+7)%7 + (mp.Ordinal-1)*7
	if day > last {
		return Date{}, false
	}
	return Date{Year: year, Month: month, Day: day}, true
}

// dayOfMonth returns year/month/day if the month has that day.
func dayOfMonth(year int, month time.Month, day int) (Date, bool) {
	if day > daysInMonth(year, month) {
		return Date{}, false
	}
	return Date{Year: year, Month: month, Day: day}, true
}
