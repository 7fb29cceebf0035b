// internal/domain/recurrence/preset.go
package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

// PresetKey identifies one of the recurrence choices offered for a start date.
type PresetKey string

const (
	PresetDaily       PresetKey = "daily"
	PresetWeekly      PresetKey = "weekly"
	PresetMonthlyNth  PresetKey = "monthly_nth"
	PresetMonthlyLast PresetKey = "monthly_last"
	PresetCustom      PresetKey = "custom"
)

// Preset is a labelled recurrence choice. Rule is absent for PresetCustom.
type Preset struct {
	Key   PresetKey
	Label string
	Rule  mo.Option[Rule]
}

// PresetsFor derives the preset choices for an anchor date. Labels are computed from
// the date: a Wednesday anchor yields "Weekly on Wednesdays". The "last weekday" preset
// is offered only when the anchor is the last such weekday of its month. Preset rules
// never end; the end condition is chosen separately.
func PresetsFor(anchor Date) []Preset {
	pos := PositionOf(anchor)
	presets := []Preset{
		{
			Key:   PresetDaily,
			Label: "Daily",
			Rule:  mo.Some(mustRule(Daily, anchor)),
		},
		{
			Key:   PresetWeekly,
			Label: "Weekly on " + weekdayPlural(pos.Weekday),
			Rule:  mo.Some(mustRule(Weekly, anchor, WithWeekdays(pos.Weekday))),
		},
		{
			Key:   PresetMonthlyNth,
			Label: fmt.Sprintf("Monthly on the %s %s", ordinalWord(pos.Ordinal), pos.Weekday),
			Rule:  mo.Some(mustRule(Monthly, anchor, WithAnchorPosition(false))),
		},
	}
	if pos.IsLast {
		presets = append(presets, Preset{
			Key:   PresetMonthlyLast,
			Label: fmt.Sprintf("Monthly on the last %s", pos.Weekday),
			Rule:  mo.Some(mustRule(Monthly, anchor, WithAnchorPosition(true))),
		})
	}
	return append(presets, Preset{Key: PresetCustom, Label: "Custom…", Rule: mo.None[Rule]()})
}

func mustRule(freq Frequency, anchor Date, opts ...RuleOption) Rule {
	r, err := NewRule(freq, 1, anchor, Never(), opts...)
	if err != nil {
		panic(fmt.Sprintf("preset rule for %s: %v", anchor, err))
	}
	return r
}

// DetectPreset maps a stored rule back to the preset it was built from, ignoring the end
// condition. The match is partial by nature: a rule that fits no preset shape returns
// None and should be edited as custom.
func DetectPreset(r Rule) mo.Option[PresetKey] {
	if r.Interval != 1 {
		return mo.None[PresetKey]()
	}
	anchorPos := PositionOf(r.Anchor)
	switch r.Frequency {
	case Daily:
		return mo.Some(PresetDaily)
	case Weekly:
		if len(r.ByWeekday) == 0 || (len(r.ByWeekday) == 1 && r.ByWeekday[0] == anchorPos.Weekday) {
			return mo.Some(PresetWeekly)
		}
	case Monthly:
		pos, ok := r.MonthlyPosition.Get()
		if !ok || pos.Weekday != anchorPos.Weekday {
			break
		}
		if pos.Ordinal == Last {
			return mo.Some(PresetMonthlyLast)
		}
		if pos.Ordinal == anchorPos.Ordinal {
			return mo.Some(PresetMonthlyNth)
		}
	}
	return mo.None[PresetKey]()
}

// PresetKeyOf is DetectPreset with PresetCustom standing in for no match.
func PresetKeyOf(r Rule) PresetKey {
	return DetectPreset(r).OrElse(PresetCustom)
}

// Describe renders a rule as a sentence, e.g. "Every 2 weeks on Mondays and Thursdays,
// until March 26, 2025".
func Describe(r Rule) string {
	var b strings.Builder
	switch r.Frequency {
	case Daily:
		b.WriteString(every(r.Interval, "Daily", "day"))
	case Weekly:
		names := make([]string, 0, len(r.weekdays()))
		for _, w := range r.weekdays() {
			names = append(names, weekdayPlural(w))
		}
		b.WriteString(every(r.Interval, "Weekly", "week"))
		b.WriteString(" on ")
		b.WriteString(joinWords(names))
	case Monthly:
		b.WriteString(every(r.Interval, "Monthly", "month"))
		if pos, ok := r.MonthlyPosition.Get(); ok {
			fmt.Fprintf(&b, " on the %s %s", ordinalWord(pos.Ordinal), pos.Weekday)
		} else {
			fmt.Fprintf(&b, " on day %d", r.Anchor.Day)
		}
	}
	switch r.End.Kind {
	case EndOnDate:
		b.WriteString(", until ")
		b.WriteString(r.End.Until.Time(time.UTC).Format("January 2, 2006"))
	case EndAfterCount:
		if r.End.Count == 1 {
			b.WriteString(", once")
		} else {
			fmt.Fprintf(&b, ", %d times", r.End.Count)
		}
	}
	return b.String()
}

func every(interval int, single, unit string) string {
	if interval == 1 {
		return single
	}
	return "Every " + strconv.Itoa(interval) + " " + unit + "s"
}

func weekdayPlural(w time.Weekday) string {
	return w.String() + "s"
}

func ordinalWord(n int) string {
	switch n {
	case 1:
		return "first"
	case 2:
		return "second"
	case 3:
		return "third"
	case 4:
		return "fourth"
	case 5:
		return "fifth"
	case Last:
		return "last"
	default:
		return strconv.Itoa(n) + "th"
	}
}

func joinWords(words []string) string {
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	default:
		return strings.Join(words[:len(words)-1], ", ") + " and " + words[len(words)-1]
	}
}
