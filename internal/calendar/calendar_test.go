package calendar

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ro-savage/nz-tech-events/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func timeOfDay(t *testing.T, s string) *models.TimeOfDay {
	t.Helper()
	tod, err := models.ParseTimeOfDay(s)
	require.NoError(t, err)
	return &tod
}

func TestResolveTimesAllDay(t *testing.T) {
	event := &models.Event{StartDate: date(2026, 3, 1)}

	start, end := ResolveTimes(event, time.UTC)
	require.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC), end)
}

func TestResolveTimesAllDayMultiDay(t *testing.T) {
	endDate := date(2026, 3, 3)
	event := &models.Event{StartDate: date(2026, 3, 1), EndDate: &endDate}

	start, end := ResolveTimes(event, time.UTC)
	require.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC), end)
}

func TestResolveTimesDefaultDuration(t *testing.T) {
	event := &models.Event{
		StartDate: date(2026, 3, 1),
		StartTime: timeOfDay(t, "18:00"),
	}

	start, end := ResolveTimes(event, time.UTC)
	require.Equal(t, time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC), end)
}

func TestResolveTimesExplicitRange(t *testing.T) {
	endDate := date(2026, 3, 2)
	event := &models.Event{
		StartDate: date(2026, 3, 1),
		EndDate:   &endDate,
		StartTime: timeOfDay(t, "09:30"),
		EndTime:   timeOfDay(t, "16:00"),
	}

	start, end := ResolveTimes(event, time.UTC)
	require.Equal(t, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC), end)
}

func TestLocationText(t *testing.T) {
	address := "12 Example St"
	city := "Wellington CBD"
	event := &models.Event{
		Address: &address,
		Locations: []models.EventLocation{
			{Region: models.RegionWellington, City: &city, Position: 0},
			{Region: models.RegionOnline, Position: 1},
		},
	}
	require.Equal(t, "12 Example St, Wellington CBD, Wellington", LocationText(event))

	require.Empty(t, LocationText(&models.Event{}))
}

func TestICS(t *testing.T) {
	event := &models.Event{
		ID:          uuid.New(),
		Title:       "Go Meetup",
		Description: "Talks and pizza",
		StartDate:   date(2026, 3, 1),
		StartTime:   timeOfDay(t, "18:00"),
		Locations:   []models.EventLocation{{Region: models.RegionWellington}},
	}

	content := ICS(event, time.UTC, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.Contains(t, content, "BEGIN:VEVENT")
	require.Contains(t, content, "SUMMARY:Go Meetup")
	require.Contains(t, content, "20260301T180000")
	require.Contains(t, content, "20260301T200000")
	require.Contains(t, content, event.ID.String())
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("ē", 20)
	got := truncate(long, 10)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, strings.Repeat("ē", 7)+"...", got)

	require.Equal(t, "short", truncate("short", 10))
}

func TestGoogleCalendarURL(t *testing.T) {
	event := &models.Event{
		ID:          uuid.New(),
		Title:       "Go Meetup",
		Description: "Talks and pizza",
		StartDate:   date(2026, 3, 1),
	}

	u := GoogleCalendarURL(event, time.UTC)
	require.True(t, strings.HasPrefix(u, "https://calendar.google.com/calendar/render?"))
	require.Contains(t, u, "action=TEMPLATE")
	require.Contains(t, u, "20260301T090000Z%2F20260301T170000Z")
}
