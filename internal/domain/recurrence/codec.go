// internal/domain/recurrence/codec.go
package recurrence

import (
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Wire format, e.g.
//
//	FREQ=WEEKLY;INTERVAL=1;DTSTART=20250312;BYDAY=WE;COUNT=3
//	FREQ=MONTHLY;INTERVAL=1;DTSTART=20240130;BYDAY=5TU;END=NEVER
//
// Exactly one of COUNT, UNTIL or END=NEVER must be present. Unknown keys are ignored.

const wireDateLayout = "20060102"

var weekdayCodes = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

func weekdayCode(w time.Weekday) string { return weekdayCodes[w] }

func parseWeekdayCode(s string) (time.Weekday, bool) {
	for w, code := range weekdayCodes {
		if code == s {
			return w, true
		}
	}
	return 0, false
}

func positionCode(p MonthlyPosition) string {
	return strconv.Itoa(p.Ordinal) + weekdayCode(p.Weekday)
}

// Encode serializes a rule into its wire form. The rule is expected to be valid.
func Encode(r Rule) string {
	parts := []string{
		"FREQ=" + string(r.Frequency),
		"INTERVAL=" + strconv.Itoa(r.Interval),
		"DTSTART=" + r.Anchor.Time(time.UTC).Format(wireDateLayout),
	}
	if len(r.ByWeekday) > 0 {
		codes := make([]string, len(r.ByWeekday))
		for i, w := range r.ByWeekday {
			codes[i] = weekdayCode(w)
		}
		parts = append(parts, "BYDAY="+strings.Join(codes, ","))
	}
	if pos, ok := r.MonthlyPosition.Get(); ok {
		parts = append(parts, "BYDAY="+positionCode(pos))
	}
	switch r.End.Kind {
	case EndAfterCount:
		parts = append(parts, "COUNT="+strconv.Itoa(r.End.Count))
	case EndOnDate:
		parts = append(parts, "UNTIL="+r.End.Until.Time(time.UTC).Format(wireDateLayout))
	default:
		parts = append(parts, "END=NEVER")
	}
	return strings.Join(parts, ";")
}

// Decode parses the wire form. Every failure wraps ErrMalformedRule.
func Decode(s string) (Rule, error) {
	fields := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return Rule{}, malformed(part, "expected KEY=VALUE")
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		if _, dup := fields[key]; dup {
			return Rule{}, malformed(key, "given more than once")
		}
		fields[key] = strings.ToUpper(strings.TrimSpace(value))
	}

	r := Rule{MonthlyPosition: mo.None[MonthlyPosition]()}

	freq, ok := fields["FREQ"]
	if !ok {
		return Rule{}, malformed("FREQ", "missing")
	}
	r.Frequency = Frequency(freq)

	r.Interval = 1
	if v, ok := fields["INTERVAL"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Rule{}, malformed("INTERVAL", "not an integer: %q", v)
		}
		r.Interval = n
	}

	start, ok := fields["DTSTART"]
	if !ok {
		return Rule{}, malformed("DTSTART", "missing")
	}
	anchor, err := parseWireDate(start)
	if err != nil {
		return Rule{}, malformed("DTSTART", "%v", err)
	}
	r.Anchor = anchor

	if v, ok := fields["BYDAY"]; ok {
		if err := decodeByDay(&r, v); err != nil {
			return Rule{}, err
		}
	}

	end, err := decodeEnd(fields)
	if err != nil {
		return Rule{}, err
	}
	r.End = end

	r.ByWeekday = normalizeWeekdays(r.ByWeekday)
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

func decodeByDay(r *Rule, v string) error {
	if v == "" {
		return malformed("BYDAY", "empty")
	}
	if r.Frequency == Monthly {
		if strings.Contains(v, ",") {
			return malformed("BYDAY", "monthly rules take a single position")
		}
		if len(v) < 3 {
			return malformed("BYDAY", "monthly position needs an ordinal, got %q", v)
		}
		ordinal, err := strconv.Atoi(v[:len(v)-2])
		if err != nil {
			return malformed("BYDAY", "bad ordinal in %q", v)
		}
		w, ok := parseWeekdayCode(v[len(v)-2:])
		if !ok {
			return malformed("BYDAY", "unknown weekday in %q", v)
		}
		r.MonthlyPosition = mo.Some(MonthlyPosition{Ordinal: ordinal, Weekday: w})
		return nil
	}
	for _, code := range strings.Split(v, ",") {
		w, ok := parseWeekdayCode(strings.TrimSpace(code))
		if !ok {
			return malformed("BYDAY", "unknown weekday %q", code)
		}
		r.ByWeekday = append(r.ByWeekday, w)
	}
	return nil
}

func decodeEnd(fields map[string]string) (End, error) {
	count, hasCount := fields["COUNT"]
	until, hasUntil := fields["UNTIL"]
	never, hasNever := fields["END"]

	set := 0
	for _, present := range []bool{hasCount, hasUntil, hasNever} {
		if present {
			set++
		}
	}
	if set != 1 {
		return End{}, malformed("END", "exactly one of COUNT, UNTIL or END=NEVER required, found %d", set)
	}

	switch {
	case hasCount:
		n, err := strconv.Atoi(count)
		if err != nil {
			return End{}, malformed("COUNT", "not an integer: %q", count)
		}
		return AfterCount(n), nil
	case hasUntil:
		d, err := parseWireDate(until)
		if err != nil {
			return End{}, malformed("UNTIL", "%v", err)
		}
		return OnDate(d), nil
	default:
		if never != "NEVER" {
			return End{}, malformed("END", "unknown value %q", never)
		}
		return Never(), nil
	}
}

func parseWireDate(s string) (Date, error) {
	// Accept a trailing time part (20250312T000000Z) for rules pasted from iCalendar.
	if i := strings.IndexByte(s, 'T'); i > 0 {
		s = s[:i]
	}
	t, err := time.Parse(wireDateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}
