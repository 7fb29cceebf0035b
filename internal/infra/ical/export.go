// internal/infra/ical/export.go
package ical

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"recurring_events/internal/domain/event"
	"recurring_events/internal/domain/recurrence"
)

const productID = "-//recurring_events//Event Series//EN"

const icsDateLayout = "20060102"

// ExportSeries renders the event as a VCALENDAR with one all-day VEVENT. Recurring events
// carry an RRULE and one EXDATE per cancelled date.
func ExportSeries(e *event.Event, cancelled []recurrence.Date) (string, error) {
	rule, err := e.Rule()
	if err != nil {
		return "", fmt.Errorf("exporting event %s: %w", e.ID, err)
	}

	cal := ics.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ics.MethodPublish)

	ev := cal.AddEvent(e.ID)
	ev.SetSummary(e.Title)
	ev.SetDtStampTime(e.UpdatedAt.UTC())
	ev.SetAllDayStartAt(e.StartDate.Time(time.UTC))

	if r, ok := rule.Get(); ok {
		ev.AddRrule(r.RRuleString())
		for _, d := range cancelled {
			if !recurrence.IsOccurrence(r, d) {
				continue
			}
			ev.AddProperty(ics.ComponentPropertyExdate, d.Time(time.UTC).Format(icsDateLayout),
				ics.WithValue(string(ics.ValueDataTypeDate)))
		}
	}

	return cal.Serialize(), nil
}
