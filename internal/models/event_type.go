package models

import (
	"strings"

	"github.com/pkg/errors"
)

// EventType categorizes an event. Persisted as an integer; talk and awards
// were added after "other", so existing rows keep their discriminants.
type EventType int

const (
	EventTypeConference EventType = iota
	EventTypeMeetup
	EventTypeWorkshop
	EventTypeHackathon
	EventTypeWebinar
	EventTypeNetworking
	EventTypeOther
	EventTypeTalk
	EventTypeAwards
)

// AllEventTypes lists every event type in persisted order.
var AllEventTypes = []EventType{
	EventTypeConference, EventTypeMeetup, EventTypeWorkshop, EventTypeHackathon,
	EventTypeWebinar, EventTypeNetworking, EventTypeOther, EventTypeTalk,
	EventTypeAwards,
}

var eventTypeSlugs = map[EventType]string{
	EventTypeConference: "conference",
	EventTypeMeetup:     "meetup",
	EventTypeWorkshop:   "workshop",
	EventTypeHackathon:  "hackathon",
	EventTypeWebinar:    "webinar",
	EventTypeNetworking: "networking",
	EventTypeOther:      "other",
	EventTypeTalk:       "talk",
	EventTypeAwards:     "awards",
}

var eventTypesBySlug = func() map[string]EventType {
	m := make(map[string]EventType, len(eventTypeSlugs))
	for t, s := range eventTypeSlugs {
		m[s] = t
	}
	return m
}()

func (t EventType) String() string {
	return eventTypeSlugs[t]
}

// Valid reports whether t is a recognized event type.
func (t EventType) Valid() bool {
	_, ok := eventTypeSlugs[t]
	return ok
}

// DisplayLabel returns the human-facing label.
func (t EventType) DisplayLabel() string {
	return titleize(t.String())
}

// ParseEventType resolves a slug to an EventType.
func ParseEventType(s string) (EventType, error) {
	t, ok := eventTypesBySlug[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, errors.Errorf("unknown event type %q", s)
	}
	return t, nil
}
