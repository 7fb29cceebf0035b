// internal/domain/recurrence/rrule.go
package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// ROption converts r into an RFC 5545 rule anchored at UTC midnight of the anchor date.
func (r Rule) ROption() rrule.ROption {
	opt := rrule.ROption{
		Dtstart:  r.Anchor.Time(time.UTC),
		Interval: r.Interval,
		Wkst:     rrule.MO,
	}
	switch r.Frequency {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
		for _, w := range r.weekdays() {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[w])
		}
	case Monthly:
		opt.Freq = rrule.MONTHLY
		if pos, ok := r.MonthlyPosition.Get(); ok {
			wd := rruleWeekdays[pos.Weekday]
			opt.Byweekday = []rrule.Weekday{wd.Nth(pos.Ordinal)}
		} else {
			opt.Bymonthday = []int{r.Anchor.Day}
		}
	}
	switch r.End.Kind {
	case EndAfterCount:
		opt.Count = r.End.Count
	case EndOnDate:
		opt.Until = r.End.Until.Time(time.UTC)
	}
	return opt
}

// RRule builds the equivalent rrule-go rule.
func (r Rule) RRule() (*rrule.RRule, error) {
	rr, err := rrule.NewRRule(r.ROption())
	if err != nil {
		return nil, fmt.Errorf("converting %s to RRULE: %w", Encode(r), err)
	}
	return rr, nil
}

// RRuleString returns the RFC 5545 RRULE value (without DTSTART), as written into
// iCalendar exports.
func (r Rule) RRuleString() string {
	opt := r.ROption()
	return opt.RRuleString()
}
