// internal/domain/recurrence/occurrences.go
package recurrence

import (
	"iter"
	"slices"
	"time"
)

// Forever is an upper query bound later than any occurrence a rule can produce in
// practice. Use it as "to" when the end condition alone should bound the sequence.
var Forever = Date{Year: 9999, Month: time.December, Day: 31}

// Occurrences yields the dates on which r recurs within the half-open window [from, to),
// in ascending order. The sequence is finite, has no side effects and can be ranged over
// any number of times. Counted rules count from the anchor, so occurrences past the
// count never appear no matter where the window starts.
func Occurrences(r Rule, from, to Date) iter.Seq[Date] {
	return func(yield func(Date) bool) {
		if from.Before(r.Anchor) {
			from = r.Anchor
		}
		if !to.After(from) {
			return
		}
		if r.End.IsOnDate() && r.End.Until.Before(from) {
			return
		}
		switch r.Frequency {
		case Daily:
			r.daily(from, to, yield)
		case Weekly:
			r.weekly(from, to, yield)
		case Monthly:
			r.monthly(from, to, yield)
		}
	}
}

// Between collects Occurrences into a slice.
func Between(r Rule, from, to Date) []Date {
	return slices.Collect(Occurrences(r, from, to))
}

// IsOccurrence reports whether r recurs on d.
func IsOccurrence(r Rule, d Date) bool {
	for range Occurrences(r, d, d.AddDays(1)) {
		return true
	}
	return false
}

// NextOnOrAfter returns the first occurrence of r on or after d.
func NextOnOrAfter(r Rule, d Date) (Date, bool) {
	for occ := range Occurrences(r, d, Forever) {
		return occ, true
	}
	return Date{}, false
}

// inBounds reports whether d is before the window end and not past an UNTIL date.
func (r Rule) inBounds(d, to Date) bool {
	if !d.Before(to) {
		return false
	}
	return !r.End.IsOnDate() || !d.After(r.End.Until)
}

// exhausted reports whether the occurrence with zero-based index idx is past the count.
func (r Rule) exhausted(idx int) bool {
	return r.End.IsCounted() && idx >= r.End.Count
}

// daily: occurrence k falls on anchor + k*interval, so the first candidate in the
// window is found by division.
func (r Rule) daily(from, to Date, yield func(Date) bool) {
	for k := ceilDiv(from.DaysSince(r.Anchor), r.Interval); ; k++ {
		if r.exhausted(k) {
			return
		}
		d := r.Anchor.AddDays(k * r.Interval)
		if !r.inBounds(d, to) || !yield(d) {
			return
		}
	}
}

// weekly: weeks run Monday..Sunday. Cycle c starts interval*c weeks after the anchor's
// week and holds one date per selected weekday. The first cycle only counts dates on or
// after the anchor; every later cycle contributes len(weekdays) occurrences, which gives
// the occurrence index at the start of any cycle in closed form.
func (r Rule) weekly(from, to Date, yield func(Date) bool) {
	days := r.weekdays()
	offsets := make([]int, len(days))
	for i, w := range days {
		offsets[i] = mondayOffset(w)
	}
	anchorOffset := mondayOffset(r.Anchor.Weekday())
	firstCycle := 0
	for _, off := range offsets {
		if off >= anchorOffset {
			firstCycle++
		}
	}

	weekStart := r.Anchor.AddDays(-anchorOffset)
	period := 7 * r.Interval
	cycle := from.DaysSince(weekStart) / period

	idx := 0
	if cycle > 0 {
		idx = firstCycle + (cycle-1)*len(offsets)
	}

	for ; ; cycle++ {
		start := weekStart.AddDays(cycle * period)
		for _, off := range offsets {
			d := start.AddDays(off)
			if d.Before(r.Anchor) {
				continue
			}
			if r.exhausted(idx) {
				return
			}
			idx++
			if d.Before(from) {
				continue
			}
			if !r.inBounds(d, to) || !yield(d) {
				return
			}
		}
	}
}

// monthly: candidate month k is anchor month + k*interval. Months without a matching
// date (no 5th Tuesday, no 31st) are skipped and do not consume the count. Uncounted
// rules jump straight to the first candidate month of the window; counted rules walk
// from the anchor to keep the index exact.
func (r Rule) monthly(from, to Date, yield func(Date) bool) {
	k := 0
	if !r.End.IsCounted() {
		k = monthsBetween(r.Anchor, from) / r.Interval
	}

	idx := 0
	for ; ; k++ {
		year, month := addMonths(r.Anchor.Year, r.Anchor.Month, k*r.Interval)
		monthStart := Date{Year: year, Month: month, Day: 1}
		if !r.inBounds(monthStart, to) {
			return
		}
		d, ok := r.monthCandidate(year, month)
		if !ok {
			continue
		}
		if r.exhausted(idx) {
			return
		}
		idx++
		if d.Before(from) {
			continue
		}
		if !r.inBounds(d, to) || !yield(d) {
			return
		}
	}
}

func (r Rule) monthCandidate(year int, month time.Month) (Date, bool) {
	if pos, ok := r.MonthlyPosition.Get(); ok {
		return nthWeekday(year, month, pos)
	}
	return dayOfMonth(year, month, r.Anchor.Day)
}

func monthsBetween(a, b Date) int {
	return (b.Year-a.Year)*12 + int(b.Month) - int(a.Month)
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	total := year*12 + int(month) - 1 + n
	return total / 12, time.Month(total%12 + 1)
}

// ceilDiv is ceiling division for a >= 0, b > 0.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
