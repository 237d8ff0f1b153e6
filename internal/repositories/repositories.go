package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/ro-savage/nz-tech-events/internal/models"
)

// Partition selects the time half of the catalog.
type Partition int

const (
	PartitionUpcoming Partition = iota
	PartitionPast
)

// EventListQuery describes a filtered, partitioned catalog listing.
type EventListQuery struct {
	Partition    Partition
	Today        time.Time // calendar date boundary for the partition
	Region       *models.Region
	City         *string
	EventType    *models.EventType
	ApprovedOnly bool
	CreatedSince *time.Time // restrict to events created at or after this instant
}

func locationOrder(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, created_at ASC")
}

// EventRepository provides access to event data
type EventRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB, readOnlyDB *gorm.DB) *EventRepository {
	return &EventRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create inserts an event together with its location set in one transaction.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	// Use write DB for writes
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return errors.Wrap(err, "failed to create event")
	}
	return nil
}

// SaveWithLocations updates an event's fields and replaces its persisted
// location set with the given one, all inside a single transaction. Callers
// validate the proposed set before this is reached; a partial write is never
// observable.
func (r *EventRepository) SaveWithLocations(ctx context.Context, event *models.Event, locations []models.EventLocation) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Locations", "User").Save(event).Error; err != nil {
			return errors.Wrap(err, "failed to save event")
		}
		if err := tx.Where("event_id = ?", event.ID).Delete(&models.EventLocation{}).Error; err != nil {
			return errors.Wrap(err, "failed to clear event locations")
		}
		for i := range locations {
			locations[i].EventID = event.ID
		}
		if err := tx.Create(&locations).Error; err != nil {
			return errors.Wrap(err, "failed to write event locations")
		}
		return nil
	})
	if err != nil {
		return err
	}
	event.Locations = locations
	return nil
}

// GetByID gets an event with its locations and owner
func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	// Use read-only DB for reads
	err := r.readOnlyDB.WithContext(ctx).
		Preload("Locations", locationOrder).
		Preload("User").
		First(&event, "events.id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get event by ID")
	}
	return &event, nil
}

// Delete removes an event and cascades to its locations in one transaction.
func (r *EventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&models.EventLocation{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete event locations")
		}
		result := tx.Delete(&models.Event{}, "id = ?", id)
		if result.Error != nil {
			return errors.Wrap(result.Error, "failed to delete event")
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SetApproved flips an event's approval flag.
func (r *EventRepository) SetApproved(ctx context.Context, id uuid.UUID, approved bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", id).
		Update("approved", approved)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update approval flag")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List runs a partitioned, filtered catalog query. An event matches a region
// or city filter when any of its locations does, so matching is an EXISTS
// against event_locations rather than a scalar comparison, and an event with
// two locations in one region still appears once.
func (r *EventRepository) List(ctx context.Context, q EventListQuery) ([]models.Event, error) {
	// Use read-only DB for reads
	tx := r.readOnlyDB.WithContext(ctx).
		Model(&models.Event{}).
		Preload("Locations", locationOrder).
		Preload("User")

	today := q.Today.Format("2006-01-02")
	switch q.Partition {
	case PartitionPast:
		tx = tx.Where("events.start_date < ?", today).
			Order("events.start_date DESC, events.start_time DESC NULLS LAST")
	default:
		tx = tx.Where("events.start_date >= ?", today).
			Order("events.start_date ASC, events.start_time ASC NULLS FIRST")
	}

	if q.ApprovedOnly {
		tx = tx.Where("events.approved = ?", true)
	}
	if q.Region != nil {
		tx = tx.Where("EXISTS (SELECT 1 FROM event_locations WHERE event_locations.event_id = events.id AND event_locations.region = ?)", *q.Region)
	}
	if q.City != nil {
		tx = tx.Where("EXISTS (SELECT 1 FROM event_locations WHERE event_locations.event_id = events.id AND event_locations.city = ?)", *q.City)
	}
	if q.EventType != nil {
		tx = tx.Where("events.event_type = ?", *q.EventType)
	}
	if q.CreatedSince != nil {
		tx = tx.Where("events.created_at >= ?", *q.CreatedSince)
	}

	var events []models.Event
	if err := tx.Find(&events).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}
	return events, nil
}

// ListPending gets unapproved events, newest first, for the admin queue.
func (r *EventRepository) ListPending(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := r.readOnlyDB.WithContext(ctx).
		Preload("Locations", locationOrder).
		Preload("User").
		Where("approved = ?", false).
		Order("created_at DESC").
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pending events")
	}
	return events, nil
}

// ListByOwner gets all of a user's events in either approval state.
func (r *EventRepository) ListByOwner(ctx context.Context, userID uuid.UUID) ([]models.Event, error) {
	var events []models.Event
	err := r.readOnlyDB.WithContext(ctx).
		Preload("Locations", locationOrder).
		Where("user_id = ?", userID).
		Order("start_date DESC").
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events by owner")
	}
	return events, nil
}

// CountCreatedSince counts a user's events created at or after the instant.
func (r *EventRepository) CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.readOnlyDB.WithContext(ctx).
		Model(&models.Event{}).
		Where("user_id = ? AND created_at > ?", userID, since).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count recent events")
	}
	return count, nil
}

// SubscriptionRepository provides access to email subscription data
type SubscriptionRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB, readOnlyDB *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create inserts a new subscription
func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.EmailSubscription) error {
	err := r.db.WithContext(ctx).Create(sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return errors.Wrap(err, "failed to create subscription")
	}
	return nil
}

// ExistsByEmailAndRegion reports whether the (email, region) pair is taken.
func (r *SubscriptionRepository) ExistsByEmailAndRegion(ctx context.Context, email string, region models.Region) (bool, error) {
	var count int64
	err := r.readOnlyDB.WithContext(ctx).
		Model(&models.EmailSubscription{}).
		Where("email_address = ? AND region = ?", email, region).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check for existing subscription")
	}
	return count > 0, nil
}

// FindByToken gets a subscription by its unsubscribe token
func (r *SubscriptionRepository) FindByToken(ctx context.Context, token string) (*models.EmailSubscription, error) {
	var sub models.EmailSubscription
	err := r.readOnlyDB.WithContext(ctx).
		Where("unsubscribe_token = ?", token).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get subscription by token")
	}
	return &sub, nil
}

// Delete removes a subscription
func (r *SubscriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.EmailSubscription{}, "id = ?", id)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete subscription")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByRegion gets all subscriptions for a region
func (r *SubscriptionRepository) ListByRegion(ctx context.Context, region models.Region) ([]models.EmailSubscription, error) {
	var subs []models.EmailSubscription
	err := r.readOnlyDB.WithContext(ctx).
		Where("region = ?", region).
		Order("email_address ASC").
		Find(&subs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list subscriptions by region")
	}
	return subs, nil
}

// ListAll gets every subscription ordered by email address
func (r *SubscriptionRepository) ListAll(ctx context.Context) ([]models.EmailSubscription, error) {
	var subs []models.EmailSubscription
	err := r.readOnlyDB.WithContext(ctx).
		Order("email_address ASC").
		Find(&subs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list subscriptions")
	}
	return subs, nil
}

// MarkSent records a successful digest dispatch for a subscription.
func (r *SubscriptionRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.EmailSubscription{}).
		Where("id = ?", id).
		Update("last_sent_at", at)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to mark subscription as sent")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UserRepository provides access to user data
type UserRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB, readOnlyDB *gorm.DB) *UserRepository {
	return &UserRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetByID gets a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.readOnlyDB.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get user by ID")
	}
	return &user, nil
}
