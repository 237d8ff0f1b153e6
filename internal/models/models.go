package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// TrustTier is a user's moderation standing.
type TrustTier int

const (
	TierOrdinary TrustTier = iota
	TierApprovedOrganiser
	TierAdministrator
)

// User owns events and carries the trust tier consumed by moderation and
// rate limiting. Authentication lives outside this service.
type User struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	EmailAddress      string    `gorm:"not null;uniqueIndex" json:"email_address"`
	Name              string    `json:"name"`
	Admin             bool      `gorm:"not null;default:false" json:"admin"`
	ApprovedOrganiser bool      `gorm:"not null;default:false" json:"approved_organiser"`
	Events            []Event   `gorm:"foreignKey:UserID" json:"-"`
}

// Tier derives the trust tier from the user's flags.
func (u *User) Tier() TrustTier {
	switch {
	case u == nil:
		return TierOrdinary
	case u.Admin:
		return TierAdministrator
	case u.ApprovedOrganiser:
		return TierApprovedOrganiser
	default:
		return TierOrdinary
	}
}

// DisplayName falls back to the local part of the email address.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if i := strings.Index(u.EmailAddress, "@"); i > 0 {
		return u.EmailAddress[:i]
	}
	return u.EmailAddress
}

// Event is a time-bound catalog entry with one or more locations.
type Event struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Title           string          `gorm:"size:200;not null" json:"title"`
	Description     string          `gorm:"type:text;not null" json:"description"`
	ShortSummary    *string         `gorm:"type:text" json:"short_summary,omitempty"`
	StartDate       time.Time       `gorm:"type:date;not null;index:idx_events_start_date" json:"start_date"`
	EndDate         *time.Time      `gorm:"type:date" json:"end_date,omitempty"`
	StartTime       *TimeOfDay      `gorm:"type:time" json:"start_time,omitempty"`
	EndTime         *TimeOfDay      `gorm:"type:time" json:"end_time,omitempty"`
	Cost            *string         `json:"cost,omitempty"`
	EventType       EventType       `gorm:"not null;default:0;index" json:"event_type"`
	RegistrationURL *string         `json:"registration_url,omitempty"`
	Address         *string         `gorm:"type:text" json:"address,omitempty"`
	Approved        bool            `gorm:"not null;default:false" json:"approved"`
	UserID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	User            User            `gorm:"foreignKey:UserID" json:"-"`
	Locations       []EventLocation `gorm:"foreignKey:EventID" json:"locations"`
}

// EventLocation is one region/city entry of an event's location set. The
// lowest position is the event's primary location.
type EventLocation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	EventID   uuid.UUID `gorm:"type:uuid;not null;index:idx_event_locations_event;index:idx_event_locations_event_region" json:"event_id"`
	Region    Region    `gorm:"not null;index;index:idx_event_locations_event_region" json:"region"`
	City      *string   `json:"city,omitempty"`
	Position  int       `gorm:"not null;default:0" json:"position"`
}

// FullDisplay renders "City, Region-Label" or just the region label.
func (l *EventLocation) FullDisplay() string {
	if l.City != nil && *l.City != "" {
		return *l.City + ", " + l.Region.DisplayLabel()
	}
	return l.Region.DisplayLabel()
}

// PrimaryLocation returns the location with the lowest position, ties broken
// by insertion order. Nil only for an event that violates the location
// invariant.
func (e *Event) PrimaryLocation() *EventLocation {
	var primary *EventLocation
	for i := range e.Locations {
		if primary == nil || e.Locations[i].Position < primary.Position {
			primary = &e.Locations[i]
		}
	}
	return primary
}

// InRegion reports whether any of the event's locations covers the region.
func (e *Event) InRegion(region Region) bool {
	for i := range e.Locations {
		if e.Locations[i].Region == region {
			return true
		}
	}
	return false
}

// MultiDay reports whether the event spans more than one calendar day.
func (e *Event) MultiDay() bool {
	return e.EndDate != nil && !e.EndDate.Equal(e.StartDate)
}

// Free reports whether the event looks free to attend.
func (e *Event) Free() bool {
	return e.Cost == nil || *e.Cost == "" || strings.Contains(strings.ToLower(*e.Cost), "free")
}

// DisplaySummary prefers the short summary, else truncates the description.
func (e *Event) DisplaySummary(limit int) string {
	if e.ShortSummary != nil && *e.ShortSummary != "" {
		return *e.ShortSummary
	}
	if limit > 0 {
		if r := []rune(e.Description); len(r) > limit {
			return string(r[:limit-3]) + "..."
		}
	}
	return e.Description
}

// EmailSubscription is a per-region weekly digest subscription.
type EmailSubscription struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	EmailAddress     string     `gorm:"not null;uniqueIndex:idx_subscriptions_email_region" json:"email_address"`
	Region           Region     `gorm:"not null;index;uniqueIndex:idx_subscriptions_email_region" json:"region"`
	UnsubscribeToken string     `gorm:"not null;uniqueIndex" json:"-"`
	LastSentAt       *time.Time `json:"last_sent_at,omitempty"`
}

// SetupModels runs database migrations for all models
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&Event{},
		&EventLocation{},
		&EmailSubscription{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to migrate database models")
	}
	return nil
}
