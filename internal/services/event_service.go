package services

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ro-savage/nz-tech-events/internal/mail"
	"github.com/ro-savage/nz-tech-events/internal/metrics"
	"github.com/ro-savage/nz-tech-events/internal/models"
	"github.com/ro-savage/nz-tech-events/internal/repositories"
)

const (
	maxTitleLength  = 200
	rateLimitWindow = 24 * time.Hour
	rateLimitMax    = 10
)

var validate = validator.New()

// EventRepository is the persistence surface the event service needs.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	SaveWithLocations(ctx context.Context, event *models.Event, locations []models.EventLocation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetApproved(ctx context.Context, id uuid.UUID, approved bool) error
	List(ctx context.Context, q repositories.EventListQuery) ([]models.Event, error)
	ListPending(ctx context.Context) ([]models.Event, error)
	ListByOwner(ctx context.Context, userID uuid.UUID) ([]models.Event, error)
	CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
}

// EventService handles event lifecycle, moderation and catalog queries
type EventService struct {
	events  EventRepository
	mailer  mail.Mailer
	metrics *metrics.Metrics
	loc     *time.Location
	clock   func() time.Time
}

// NewEventService creates a new event service
func NewEventService(events EventRepository, mailer mail.Mailer, m *metrics.Metrics, loc *time.Location) *EventService {
	return &EventService{
		events:  events,
		mailer:  mailer,
		metrics: m,
		loc:     loc,
		clock:   time.Now,
	}
}

// LocationInput is one proposed entry of an event's location set. Remove
// marks an entry for removal; validation runs against the final set after
// removals are applied.
type LocationInput struct {
	Region   string `json:"region"`
	City     string `json:"city"`
	Position int    `json:"position"`
	Remove   bool   `json:"remove"`
}

// EventInput carries the writable fields of an event. Dates are "2006-01-02",
// times of day "15:04".
type EventInput struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	ShortSummary    string          `json:"short_summary"`
	StartDate       string          `json:"start_date"`
	EndDate         string          `json:"end_date"`
	StartTime       string          `json:"start_time"`
	EndTime         string          `json:"end_time"`
	Cost            string          `json:"cost"`
	EventType       string          `json:"event_type"`
	RegistrationURL string          `json:"registration_url"`
	Address         string          `json:"address"`
	Locations       []LocationInput `json:"locations"`
}

// initialApproval decides the approval flag set exactly once at creation.
func initialApproval(tier models.TrustTier) bool {
	return tier == models.TierAdministrator || tier == models.TierApprovedOrganiser
}

// CreateEvent validates the input, applies the creation rate limit and
// persists a new event with its location set. Every violated invariant is
// reported in a single ValidationError.
func (s *EventService) CreateEvent(ctx context.Context, actor *models.User, input EventInput) (*models.Event, error) {
	if actor == nil {
		return nil, ErrForbidden
	}

	now := s.clock()
	parsed, verr := s.parseInput(input)

	// The rate limit is checked in the same validation pass as the other
	// invariants so the caller sees one combined failure list.
	if actor.Tier() == models.TierOrdinary {
		count, err := s.events.CountCreatedSince(ctx, actor.ID, now.Add(-rateLimitWindow))
		if err != nil {
			return nil, errors.Wrap(err, "failed to check creation rate limit")
		}
		if count >= rateLimitMax {
			verr.add("base", "you have reached the limit of 10 events per day, please try again later")
		}
	}

	if !verr.empty() {
		s.metrics.IncrementCounter(metrics.CounterValidationFailed)
		return nil, verr
	}

	event := parsed.toEvent()
	event.ID = uuid.New()
	event.UserID = actor.ID
	event.Approved = initialApproval(actor.Tier())
	for i := range event.Locations {
		event.Locations[i].ID = uuid.New()
	}

	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}

	s.metrics.IncrementCounter(metrics.CounterEventsCreated)
	log.Info().
		Str("event_id", event.ID.String()).
		Str("owner_id", actor.ID.String()).
		Bool("approved", event.Approved).
		Msg("Event created")

	return event, nil
}

// UpdateEvent re-validates and saves an event. Editing never re-derives the
// approval flag, in either state.
func (s *EventService) UpdateEvent(ctx context.Context, actor *models.User, id uuid.UUID, input EventInput) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canEdit(actor, event) {
		return nil, ErrForbidden
	}

	parsed, verr := s.parseInput(input)
	if !verr.empty() {
		s.metrics.IncrementCounter(metrics.CounterValidationFailed)
		return nil, verr
	}

	parsed.applyTo(event)
	locations := parsed.locations()
	for i := range locations {
		locations[i].ID = uuid.New()
	}

	if err := s.events.SaveWithLocations(ctx, event, locations); err != nil {
		return nil, err
	}

	log.Info().
		Str("event_id", event.ID.String()).
		Str("actor_id", actor.ID.String()).
		Msg("Event updated")

	return event, nil
}

// DestroyEvent deletes an event and its locations.
func (s *EventService) DestroyEvent(ctx context.Context, actor *models.User, id uuid.UUID) error {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !canEdit(actor, event) {
		return ErrForbidden
	}

	if err := s.events.Delete(ctx, id); err != nil {
		return err
	}

	s.metrics.IncrementCounter(metrics.CounterEventsDestroyed)
	log.Info().
		Str("event_id", id.String()).
		Str("actor_id", actor.ID.String()).
		Msg("Event destroyed")

	return nil
}

// ApproveEvent transitions a pending event to approved. Only administrators
// may approve; approving an already-approved event is a no-op.
func (s *EventService) ApproveEvent(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Event, error) {
	if actor == nil || !actor.Admin {
		return nil, ErrForbidden
	}

	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.Approved {
		return event, nil
	}

	if err := s.events.SetApproved(ctx, id, true); err != nil {
		return nil, err
	}
	event.Approved = true

	s.metrics.IncrementCounter(metrics.CounterEventsApproved)
	log.Info().
		Str("event_id", id.String()).
		Str("admin_id", actor.ID.String()).
		Msg("Event approved")

	// Fire-and-forget hand-off; the notice failing never fails the approval.
	if err := s.mailer.SendEventApproved(ctx, *event, event.User); err != nil {
		log.Warn().Err(err).Str("event_id", id.String()).Msg("Failed to hand off approval notice")
	}

	return event, nil
}

// RejectEvent destroys the event regardless of its current state. There is no
// rejected resting state.
func (s *EventService) RejectEvent(ctx context.Context, actor *models.User, id uuid.UUID) error {
	if actor == nil || !actor.Admin {
		return ErrForbidden
	}

	if _, err := s.events.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return err
	}

	s.metrics.IncrementCounter(metrics.CounterEventsRejected)
	log.Info().
		Str("event_id", id.String()).
		Str("admin_id", actor.ID.String()).
		Msg("Event rejected and deleted")

	return nil
}

// CatalogFilters narrows a public catalog listing. A nil filter matches
// everything.
type CatalogFilters struct {
	Region    *models.Region
	City      *string
	EventType *models.EventType
}

// ListUpcoming returns approved events whose start date is today or later,
// soonest first.
func (s *EventService) ListUpcoming(ctx context.Context, filters CatalogFilters) ([]models.Event, error) {
	return s.events.List(ctx, repositories.EventListQuery{
		Partition:    repositories.PartitionUpcoming,
		Today:        s.today(),
		Region:       filters.Region,
		City:         filters.City,
		EventType:    filters.EventType,
		ApprovedOnly: true,
	})
}

// ListPast returns approved events whose start date has passed, most recent
// first.
func (s *EventService) ListPast(ctx context.Context, filters CatalogFilters) ([]models.Event, error) {
	return s.events.List(ctx, repositories.EventListQuery{
		Partition:    repositories.PartitionPast,
		Today:        s.today(),
		Region:       filters.Region,
		City:         filters.City,
		EventType:    filters.EventType,
		ApprovedOnly: true,
	})
}

// ListPending returns the admin moderation queue.
func (s *EventService) ListPending(ctx context.Context, actor *models.User) ([]models.Event, error) {
	if actor == nil || !actor.Admin {
		return nil, ErrForbidden
	}
	return s.events.ListPending(ctx)
}

// ListOwn returns all of the actor's events in either approval state.
func (s *EventService) ListOwn(ctx context.Context, actor *models.User) ([]models.Event, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	return s.events.ListByOwner(ctx, actor.ID)
}

// GetEvent returns one event. Pending events are visible only to their owner
// and administrators; to anyone else they do not exist.
func (s *EventService) GetEvent(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !event.Approved && !canEdit(actor, event) {
		return nil, repositories.ErrNotFound
	}
	return event, nil
}

func (s *EventService) today() time.Time {
	return dateIn(s.clock(), s.loc)
}

func canEdit(actor *models.User, event *models.Event) bool {
	if actor == nil {
		return false
	}
	return actor.Admin || actor.ID == event.UserID
}

// parsedEvent holds validated, typed event fields ready to persist.
type parsedEvent struct {
	title           string
	description     string
	shortSummary    *string
	startDate       time.Time
	endDate         *time.Time
	startTime       *models.TimeOfDay
	endTime         *models.TimeOfDay
	cost            *string
	eventType       models.EventType
	registrationURL *string
	address         *string
	locs            []models.EventLocation
}

// parseInput validates the raw input against every EventRecord invariant and
// returns the typed fields plus the full violation list.
func (s *EventService) parseInput(input EventInput) (*parsedEvent, *ValidationError) {
	verr := &ValidationError{}
	parsed := &parsedEvent{}

	parsed.title = input.Title
	if input.Title == "" {
		verr.add("title", "is required")
	} else if len(input.Title) > maxTitleLength {
		verr.add("title", "must be at most 200 characters")
	}

	parsed.description = input.Description
	if input.Description == "" {
		verr.add("description", "is required")
	}

	if input.StartDate == "" {
		verr.add("start_date", "is required")
	} else if d, err := time.Parse("2006-01-02", input.StartDate); err != nil {
		verr.add("start_date", "is not a valid date")
	} else {
		parsed.startDate = d
	}

	if input.EndDate != "" {
		if d, err := time.Parse("2006-01-02", input.EndDate); err != nil {
			verr.add("end_date", "is not a valid date")
		} else {
			parsed.endDate = &d
			if !parsed.startDate.IsZero() && d.Before(parsed.startDate) {
				verr.add("end_date", "must be on or after the start date")
			}
		}
	}

	if input.StartTime != "" {
		if t, err := models.ParseTimeOfDay(input.StartTime); err != nil {
			verr.add("start_time", "is not a valid time")
		} else {
			parsed.startTime = &t
		}
	}
	if input.EndTime != "" {
		if t, err := models.ParseTimeOfDay(input.EndTime); err != nil {
			verr.add("end_time", "is not a valid time")
		} else {
			parsed.endTime = &t
		}
	}

	if input.EventType == "" {
		verr.add("event_type", "is required")
	} else if t, err := models.ParseEventType(input.EventType); err != nil {
		verr.add("event_type", "is not a recognized event type")
	} else {
		parsed.eventType = t
	}

	if input.RegistrationURL != "" {
		if err := validate.Var(input.RegistrationURL, "url"); err != nil {
			verr.add("registration_url", "must be a valid URL")
		} else {
			parsed.registrationURL = &input.RegistrationURL
		}
	}

	parsed.shortSummary = optional(input.ShortSummary)
	parsed.cost = optional(input.Cost)
	parsed.address = optional(input.Address)

	// Location invariants apply to the proposed final set, after removal
	// markers are applied, never to intermediate states.
	kept := make([]models.EventLocation, 0, len(input.Locations))
	for i, loc := range input.Locations {
		if loc.Remove {
			continue
		}
		region, err := models.ParseRegion(loc.Region)
		if err != nil {
			verr.add("locations", "has an unrecognized region")
			continue
		}
		position := loc.Position
		if position == 0 {
			position = i
		}
		kept = append(kept, models.EventLocation{
			Region:   region,
			City:     optional(loc.City),
			Position: position,
		})
	}
	if len(kept) == 0 {
		verr.add("locations", "at least one location is required")
	}
	parsed.locs = kept

	return parsed, verr
}

func (p *parsedEvent) toEvent() *models.Event {
	return &models.Event{
		Title:           p.title,
		Description:     p.description,
		ShortSummary:    p.shortSummary,
		StartDate:       p.startDate,
		EndDate:         p.endDate,
		StartTime:       p.startTime,
		EndTime:         p.endTime,
		Cost:            p.cost,
		EventType:       p.eventType,
		RegistrationURL: p.registrationURL,
		Address:         p.address,
		Locations:       p.locations(),
	}
}

// applyTo copies the validated fields onto an existing event, leaving the
// approval flag and ownership untouched.
func (p *parsedEvent) applyTo(event *models.Event) {
	event.Title = p.title
	event.Description = p.description
	event.ShortSummary = p.shortSummary
	event.StartDate = p.startDate
	event.EndDate = p.endDate
	event.StartTime = p.startTime
	event.EndTime = p.endTime
	event.Cost = p.cost
	event.EventType = p.eventType
	event.RegistrationURL = p.registrationURL
	event.Address = p.address
}

func (p *parsedEvent) locations() []models.EventLocation {
	locs := make([]models.EventLocation, len(p.locs))
	copy(locs, p.locs)
	return locs
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
