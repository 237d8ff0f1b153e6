// Package calendar turns an event's date and time-of-day fields into concrete
// instants in the catalog's fixed operating timezone, and renders the two
// calendar consumers (ICS file, Google Calendar link) from that single rule so
// they can never diverge.
package calendar

import (
	"fmt"
	"net/url"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/ro-savage/nz-tech-events/internal/models"
)

const (
	// All-day events block out business hours.
	allDayStartHour = 9
	allDayEndHour   = 17

	// Events with a start time but no end time get a fixed default duration.
	defaultDuration = 2 * time.Hour

	descriptionLimit = 1000
)

// ResolveTimes computes the (start, end) instants for an event in the given
// timezone. End date defaults to the start date when unset.
func ResolveTimes(e *models.Event, loc *time.Location) (time.Time, time.Time) {
	endDate := e.StartDate
	if e.EndDate != nil {
		endDate = *e.EndDate
	}

	if e.StartTime != nil {
		start := atTime(e.StartDate, e.StartTime.Hour(), e.StartTime.Minute(), loc)
		if e.EndTime != nil {
			return start, atTime(endDate, e.EndTime.Hour(), e.EndTime.Minute(), loc)
		}
		return start, start.Add(defaultDuration)
	}

	// All-day event
	start := atTime(e.StartDate, allDayStartHour, 0, loc)
	end := atTime(endDate, allDayEndHour, 0, loc)
	return start, end
}

func atTime(date time.Time, hour, minute int, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc)
}

// LocationText joins address, primary city and primary region label for the
// calendar location field.
func LocationText(e *models.Event) string {
	var parts []string
	if e.Address != nil && *e.Address != "" {
		parts = append(parts, *e.Address)
	}
	if primary := e.PrimaryLocation(); primary != nil {
		if primary.City != nil && *primary.City != "" {
			parts = append(parts, *primary.City)
		}
		parts = append(parts, primary.Region.DisplayLabel())
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// ICS renders a single-event iCalendar file.
func ICS(e *models.Event, loc *time.Location, now time.Time) string {
	start, end := ResolveTimes(e, loc)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//NZ Tech Events//techevents.co.nz//EN")
	cal.SetCalscale("GREGORIAN")

	tzid := &ics.KeyValues{Key: string(ics.ParameterTzid), Value: []string{loc.String()}}

	ev := cal.AddEvent(fmt.Sprintf("event-%s@techevents.co.nz", e.ID))
	ev.SetDtStampTime(now.UTC())
	ev.SetProperty(ics.ComponentPropertyDtStart, start.Format("20060102T150405"), tzid)
	ev.SetProperty(ics.ComponentPropertyDtEnd, end.Format("20060102T150405"), tzid)
	ev.SetSummary(e.Title)
	ev.SetDescription(truncate(e.Description, descriptionLimit))
	ev.SetLocation(LocationText(e))
	if e.RegistrationURL != nil && *e.RegistrationURL != "" {
		ev.SetURL(*e.RegistrationURL)
	}

	return cal.Serialize()
}

// GoogleCalendarURL builds an "add to calendar" render link.
func GoogleCalendarURL(e *models.Event, loc *time.Location) string {
	start, end := ResolveTimes(e, loc)

	params := url.Values{}
	params.Set("action", "TEMPLATE")
	params.Set("text", e.Title)
	params.Set("dates", googleTime(start)+"/"+googleTime(end))
	params.Set("details", truncate(e.Description, descriptionLimit))
	params.Set("location", LocationText(e))
	params.Set("ctz", loc.String())

	return "https://calendar.google.com/calendar/render?" + params.Encode()
}

func googleTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
