// internal/domain/recurrence/rule.go
package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/mo"
)

// ErrMalformedRule is returned (wrapped in a ParseError) for any rule that cannot be
// decoded or that violates a rule invariant.
var ErrMalformedRule = errors.New("malformed recurrence rule")

// ParseError names the field that made a rule malformed.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrMalformedRule, e.Field, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrMalformedRule }

func malformed(field, format string, args ...any) error {
	return &ParseError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Frequency is the base cadence of a rule.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
)

// Last is the ordinal meaning "the last <weekday> of the month".
const Last = -1

// MonthlyPosition is "the Nth (or last) weekday of the month".
type MonthlyPosition struct {
	Ordinal int // 1..5 or Last
	Weekday time.Weekday
}

// EndKind selects which end condition of a rule is active.
type EndKind int

const (
	EndNever EndKind = iota
	EndOnDate
	EndAfterCount
)

// End is the terminating condition of a rule. Exactly one variant is active; build it
// with Never, OnDate or AfterCount.
type End struct {
	Kind  EndKind
	Until Date // EndOnDate only
	Count int  // EndAfterCount only
}

func Never() End              { return End{Kind: EndNever} }
func OnDate(d Date) End       { return End{Kind: EndOnDate, Until: d} }
func AfterCount(n int) End    { return End{Kind: EndAfterCount, Count: n} }
func (e End) IsNever() bool   { return e.Kind == EndNever }
func (e End) IsOnDate() bool  { return e.Kind == EndOnDate }
func (e End) IsCounted() bool { return e.Kind == EndAfterCount }

// Rule is a single recurrence definition owned by an event.
type Rule struct {
	Frequency Frequency
	Interval  int
	// ByWeekday is used for WEEKLY rules; empty means the anchor's weekday. Kept sorted
	// Monday-first with no duplicates.
	ByWeekday []time.Weekday
	// MonthlyPosition is used for MONTHLY rules; absent means the anchor's day-of-month.
	MonthlyPosition mo.Option[MonthlyPosition]
	Anchor          Date
	End             End
}

// NewRule builds a rule and validates it. Weekdays are normalized into canonical order.
func NewRule(freq Frequency, interval int, anchor Date, end End, opts ...RuleOption) (Rule, error) {
	r := Rule{
		Frequency:       freq,
		Interval:        interval,
		MonthlyPosition: mo.None[MonthlyPosition](),
		Anchor:          anchor,
		End:             end,
	}
	for _, opt := range opts {
		opt(&r)
	}
	r.ByWeekday = normalizeWeekdays(r.ByWeekday)
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// RuleOption sets optional parts of a rule in NewRule.
type RuleOption func(*Rule)

func WithWeekdays(days ...time.Weekday) RuleOption {
	return func(r *Rule) { r.ByWeekday = append(r.ByWeekday, days...) }
}

func WithMonthlyPosition(p MonthlyPosition) RuleOption {
	return func(r *Rule) { r.MonthlyPosition = mo.Some(p) }
}

// WithAnchorPosition sets the monthly position derived from the anchor date. When last
// is true the position is "last <weekday>" instead of the counted ordinal.
func WithAnchorPosition(last bool) RuleOption {
	return func(r *Rule) {
		pos := PositionOf(r.Anchor)
		if last {
			r.MonthlyPosition = mo.Some(MonthlyPosition{Ordinal: Last, Weekday: pos.Weekday})
			return
		}
		r.MonthlyPosition = mo.Some(MonthlyPosition{Ordinal: pos.Ordinal, Weekday: pos.Weekday})
	}
}

// Validate checks every rule invariant and returns a ParseError for the first violation.
func (r Rule) Validate() error {
	switch r.Frequency {
	case Daily, Weekly, Monthly:
	case "":
		return malformed("FREQ", "missing")
	default:
		return malformed("FREQ", "unsupported frequency %q", r.Frequency)
	}
	if r.Interval < 1 {
		return malformed("INTERVAL", "must be a positive integer, got %d", r.Interval)
	}
	if r.Anchor.IsZero() {
		return malformed("DTSTART", "missing")
	}

	if len(r.ByWeekday) > 0 {
		if r.Frequency != Weekly {
			return malformed("BYDAY", "weekday list is only valid for WEEKLY rules")
		}
		if !slices.Contains(r.ByWeekday, r.Anchor.Weekday()) {
			return malformed("BYDAY", "weekday list must include the anchor weekday %s", weekdayCode(r.Anchor.Weekday()))
		}
	}

	if pos, ok := r.MonthlyPosition.Get(); ok {
		if r.Frequency != Monthly {
			return malformed("BYDAY", "monthly position is only valid for MONTHLY rules")
		}
		if pos.Ordinal != Last && (pos.Ordinal < 1 || pos.Ordinal > 5) {
			return malformed("BYDAY", "ordinal must be 1..5 or -1, got %d", pos.Ordinal)
		}
		if !PositionOf(r.Anchor).Matches(pos) {
			return malformed("BYDAY", "position %s does not match anchor %s", positionCode(pos), r.Anchor)
		}
	}

	switch r.End.Kind {
	case EndNever:
		if r.End.Count != 0 || !r.End.Until.IsZero() {
			return malformed("END", "never-ending rule carries a count or until date")
		}
	case EndOnDate:
		if r.End.Count != 0 {
			return malformed("END", "both UNTIL and COUNT set")
		}
		if r.End.Until.IsZero() {
			return malformed("UNTIL", "missing date")
		}
		if r.End.Until.Before(r.Anchor) {
			return malformed("UNTIL", "%s is before anchor %s", r.End.Until, r.Anchor)
		}
	case EndAfterCount:
		if !r.End.Until.IsZero() {
			return malformed("END", "both UNTIL and COUNT set")
		}
		if r.End.Count < 1 {
			return malformed("COUNT", "must be at least 1, got %d", r.End.Count)
		}
	default:
		return malformed("END", "unknown end kind %d", r.End.Kind)
	}
	return nil
}

// weekdays returns the effective weekday set of a WEEKLY rule.
func (r Rule) weekdays() []time.Weekday {
	if len(r.ByWeekday) == 0 {
		return []time.Weekday{r.Anchor.Weekday()}
	}
	return r.ByWeekday
}

// mondayOffset maps a weekday to its offset from Monday (Mon=0 .. Sun=6).
func mondayOffset(w time.Weekday) int {
	return (int(w) + 6) % 7
}

func normalizeWeekdays(days []time.Weekday) []time.Weekday {
	if len(days) == 0 {
		return nil
	}
	out := slices.Clone(days)
	slices.SortFunc(out, func(a, b time.Weekday) int { return mondayOffset(a) - mondayOffset(b) })
	return slices.Compact(out)
}
