package recurrence_test

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurring_events/internal/domain/recurrence"
)

func d(s string) recurrence.Date { return recurrence.MustParseDate(s) }

func dates(ss ...string) []recurrence.Date {
	out := make([]recurrence.Date, len(ss))
	for i, s := range ss {
		out[i] = d(s)
	}
	return out
}

func mustRule(t *testing.T, freq recurrence.Frequency, interval int, anchor string, end recurrence.End, opts ...recurrence.RuleOption) recurrence.Rule {
	t.Helper()
	r, err := recurrence.NewRule(freq, interval, d(anchor), end, opts...)
	require.NoError(t, err)
	return r
}

func TestOccurrences(t *testing.T) {
	tests := []struct {
		name     string
		rule     func(t *testing.T) recurrence.Rule
		from, to string
		expected []recurrence.Date
	}{
		{
			name: "weekly on wednesdays three times",
			rule: func(t *testing.T) recurrence.Rule {
				return mustRule(t, recurrence.Weekly, 1, "2025-03-12", recurrence.AfterCount(3), recurrence.WithWeekdays(time.Wednesday))
			},
			from:     "2025-03-12",
			to:       "9999-12-31",
			expected: dates("2025-03-12", "2025-03-19", "2025-03-26"),
		},
		{
			name: "daily every third day, window after the anchor",
			rule: func(t *testing.T) recurrence.Rule {
				return mustRule(t, recurrence.Daily, 3, "2025-03-12", recurrence.AfterCount(4))
			},
			from:     "2025-03-16",
			to:       "2025-12-31",
			expected: dates("2025-03-18", "2025-03-21"),
		},
		{
			name: "counted rule never leaks past its count",
			rule: func(t *testing.T) recurrence.Rule {
				return mustRule(t, recurrence.Weekly, 1, "2025-03-12", recurrence.AfterCount(3))
			},
			from:     "2025-04-01",
			to:       "2025-05-01",
			expected: nil,
		},
		{
			name: "until date is inclusive",
			rule: func(t *testing.T) recurrence.Rule {
				return mustRule(t, recurrence.Weekly, 1, "2025-03-12", recurrence.OnDate(d("2025-03-26")))
			},
			from:     "2025-01-01",
			to:       "2026-01-01",
			expected: dates("2025-03-12", "2025-03-19", "2025-03-26"),
		},
		{
			name: "window entirely after until",
			rule: func(t *testing.T) recurrence.Rule {
				return mustRule(t, recurrence.Weekly, 1, "2025-03-12", recurrence.OnDate(d("2025-03-26")))
			},
			from:     "2025-03-27",
			to:       "2026-01-01",
			expected: nil,
		},
		{
			name: "fortnightly on three weekdays skips days before the anchor",
			rule: func(t *testing.T) recurrence.Rule {
				return mustRule(t, recurrence.Weekly, 2, "2025-03-12", recurrence.AfterCount(5),
					recurrence.WithWeekdays(time.Monday, time.Wednesday, time.Friday))
			},
			from:     "2025-03-01",
			to:       "2025-06-01",
			expected: dates("2025-03-12", "2025-03-14", "2025-03-24", "2025-03-26", "2025-03-28"),
		},
		{
			name: "fortnightly jump-ahead keeps the count index",
			rule: func(t *testing.T) recurrence.Rule {
				return mustRule(t, recurrence.Weekly, 2, "2025-03-12", recurrence.AfterCount(5),
					recurrence.WithWeekdays(time.Monday, time.Wednesday, time.Friday))
			},
			from:     "2025-03-25",
			to:       "2025-06-01",
			expected: dates("2025-03-26", "2025-03-28"),
		},
		{
			name: "fifth tuesday skips months with four",
			rule: func(t *testing.T) recurrence.Rule {
				return mustRule(t, recurrence.Monthly, 1, "2024-01-30", recurrence.Never(), recurrence.WithAnchorPosition(false))
			},
			from:     "2024-01-01",
			to:       "2025-01-01",
			expected: dates("2024-01-30", "2024-04-30", "2024-07-30", "2024-10-29", "2024-12-31"),
		},
		{
			name: "last friday of the month",
			rule: func(t *testing.T) recurrence.Rule {
				return mustRule(t, recurrence.Monthly, 1, "2025-01-31", recurrence.AfterCount(3), recurrence.WithAnchorPosition(true))
			},
			from:     "2025-01-01",
			to:       "2026-01-01",
			expected: dates("2025-01-31", "2025-02-28", "2025-03-28"),
		},
		{
			name: "day-of-month rule skips short months",
			rule: func(t *testing.T) recurrence.Rule {
				return mustRule(t, recurrence.Monthly, 1, "2025-01-31", recurrence.AfterCount(3))
			},
			from:     "2025-01-01",
			to:       "2026-01-01",
			expected: dates("2025-01-31", "2025-03-31", "2025-05-31"),
		},
		{
			name: "empty window",
			rule: func(t *testing.T) recurrence.Rule {
				return mustRule(t, recurrence.Daily, 1, "2025-03-12", recurrence.Never())
			},
			from:     "2025-03-20",
			to:       "2025-03-20",
			expected: nil,
		},
		{
			name: "distant window on a never-ending daily rule",
			rule: func(t *testing.T) recurrence.Rule {
				return mustRule(t, recurrence.Daily, 7, "2000-01-01", recurrence.Never())
			},
			from:     "2100-01-01",
			to:       "2100-01-15",
			expected: dates("2100-01-02", "2100-01-09"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := recurrence.Between(tt.rule(t), d(tt.from), d(tt.to))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestOccurrences_Restartable(t *testing.T) {
	r := mustRule(t, recurrence.Monthly, 2, "2024-01-30", recurrence.Never(), recurrence.WithAnchorPosition(true))
	seq := recurrence.Occurrences(r, d("2024-01-01"), d("2027-01-01"))

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestOccurrences_EarlyBreak(t *testing.T) {
	r := mustRule(t, recurrence.Daily, 1, "2025-01-01", recurrence.Never())
	var got []recurrence.Date
	for occ := range recurrence.Occurrences(r, d("2025-01-01"), recurrence.Forever) {
		got = append(got, occ)
		if len(got) == 3 {
			break
		}
	}
	assert.Equal(t, dates("2025-01-01", "2025-01-02", "2025-01-03"), got)
}

func TestOccurrences_AfterCountYieldsExactlyN(t *testing.T) {
	rules := []recurrence.Rule{
		mustRule(t, recurrence.Daily, 2, "2025-03-12", recurrence.AfterCount(40)),
		mustRule(t, recurrence.Weekly, 3, "2025-03-12", recurrence.AfterCount(25),
			recurrence.WithWeekdays(time.Wednesday, time.Sunday)),
		mustRule(t, recurrence.Monthly, 1, "2024-01-30", recurrence.AfterCount(12), recurrence.WithAnchorPosition(false)),
		mustRule(t, recurrence.Monthly, 5, "2025-01-31", recurrence.AfterCount(7)),
		mustRule(t, recurrence.Weekly, 1, "2020-02-29", recurrence.AfterCount(3000)),
	}
	for _, r := range rules {
		t.Run(recurrence.Encode(r), func(t *testing.T) {
			got := recurrence.Between(r, r.Anchor, recurrence.Forever)
			require.Len(t, got, r.End.Count)
			assert.Equal(t, r.Anchor, got[0])
			assert.True(t, slices.IsSortedFunc(got, func(a, b recurrence.Date) int { return a.Compare(b) }))
		})
	}
}

func TestOccurrences_OnDateNeverExceeded(t *testing.T) {
	until := d("2025-09-30")
	rules := []recurrence.Rule{
		mustRule(t, recurrence.Daily, 5, "2025-03-12", recurrence.OnDate(until)),
		mustRule(t, recurrence.Weekly, 1, "2025-03-12", recurrence.OnDate(until), recurrence.WithWeekdays(time.Wednesday, time.Saturday)),
		mustRule(t, recurrence.Monthly, 1, "2025-03-12", recurrence.OnDate(until), recurrence.WithAnchorPosition(false)),
	}
	windows := [][2]string{
		{"2025-01-01", "2030-01-01"},
		{"2025-09-01", "2025-12-01"},
		{"2025-10-01", "2026-01-01"},
	}
	for _, r := range rules {
		for _, w := range windows {
			for _, occ := range recurrence.Between(r, d(w[0]), d(w[1])) {
				assert.False(t, occ.After(until), "rule %s produced %s", recurrence.Encode(r), occ)
			}
		}
	}
}

// The enumerator must agree with an independent RFC 5545 implementation.
func TestOccurrences_MatchesRRule(t *testing.T) {
	rules := []recurrence.Rule{
		mustRule(t, recurrence.Daily, 4, "2025-03-12", recurrence.Never()),
		mustRule(t, recurrence.Weekly, 2, "2025-03-12", recurrence.AfterCount(30),
			recurrence.WithWeekdays(time.Monday, time.Wednesday, time.Friday)),
		mustRule(t, recurrence.Weekly, 3, "2025-03-16", recurrence.OnDate(d("2026-06-01")),
			recurrence.WithWeekdays(time.Sunday, time.Tuesday)),
		mustRule(t, recurrence.Monthly, 1, "2024-01-30", recurrence.Never(), recurrence.WithAnchorPosition(false)),
		mustRule(t, recurrence.Monthly, 2, "2025-03-31", recurrence.AfterCount(10), recurrence.WithAnchorPosition(true)),
		mustRule(t, recurrence.Monthly, 1, "2025-01-31", recurrence.Never()),
	}
	from, to := d("2025-06-01"), d("2027-01-01")

	for _, r := range rules {
		t.Run(recurrence.Encode(r), func(t *testing.T) {
			rr, err := r.RRule()
			require.NoError(t, err)

			var expected []recurrence.Date
			for _, tm := range rr.Between(from.Time(time.UTC), to.AddDays(-1).Time(time.UTC), true) {
				expected = append(expected, recurrence.DateOf(tm))
			}
			assert.Equal(t, expected, recurrence.Between(r, from, to))
		})
	}
}

func TestIsOccurrenceAndNext(t *testing.T) {
	r := mustRule(t, recurrence.Weekly, 1, "2025-03-12", recurrence.AfterCount(3))

	assert.True(t, recurrence.IsOccurrence(r, d("2025-03-19")))
	assert.False(t, recurrence.IsOccurrence(r, d("2025-03-20")))
	assert.False(t, recurrence.IsOccurrence(r, d("2025-04-02")))

	next, ok := recurrence.NextOnOrAfter(r, d("2025-03-20"))
	require.True(t, ok)
	assert.Equal(t, d("2025-03-26"), next)

	_, ok = recurrence.NextOnOrAfter(r, d("2025-03-27"))
	assert.False(t, ok)
}
