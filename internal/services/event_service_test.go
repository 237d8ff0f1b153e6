package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ro-savage/nz-tech-events/internal/metrics"
	"github.com/ro-savage/nz-tech-events/internal/models"
	"github.com/ro-savage/nz-tech-events/internal/repositories"
)

// Mock repositories for testing
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Create(ctx context.Context, event *models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) SaveWithLocations(ctx context.Context, event *models.Event, locations []models.EventLocation) error {
	args := m.Called(ctx, event, locations)
	return args.Error(0)
}

func (m *MockEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEventRepository) SetApproved(ctx context.Context, id uuid.UUID, approved bool) error {
	args := m.Called(ctx, id, approved)
	return args.Error(0)
}

func (m *MockEventRepository) List(ctx context.Context, q repositories.EventListQuery) ([]models.Event, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockEventRepository) ListPending(ctx context.Context) ([]models.Event, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockEventRepository) ListByOwner(ctx context.Context, userID uuid.UUID) ([]models.Event, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockEventRepository) CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	args := m.Called(ctx, userID, since)
	return args.Get(0).(int64), args.Error(1)
}

// Mock mailer for testing
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendDigest(ctx context.Context, sub models.EmailSubscription, newEvents, upcomingEvents []models.Event) error {
	args := m.Called(ctx, sub, newEvents, upcomingEvents)
	return args.Error(0)
}

func (m *MockMailer) SendEventApproved(ctx context.Context, event models.Event, owner models.User) error {
	args := m.Called(ctx, event, owner)
	return args.Error(0)
}

func (m *MockMailer) Close() error {
	args := m.Called()
	return args.Error(0)
}

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func newTestEventService(repo *MockEventRepository, mailer *MockMailer) *EventService {
	return &EventService{
		events:  repo,
		mailer:  mailer,
		metrics: metrics.NewMetrics(),
		loc:     time.UTC,
		clock:   func() time.Time { return testNow },
	}
}

func validEventInput() EventInput {
	return EventInput{
		Title:       "Go Meetup",
		Description: "Monthly gathering of the local Go community",
		StartDate:   "2026-10-15",
		StartTime:   "18:00",
		EventType:   "meetup",
		Locations:   []LocationInput{{Region: "wellington", City: "Wellington CBD"}},
	}
}

func TestCreateEventRequiresActor(t *testing.T) {
	service := newTestEventService(new(MockEventRepository), new(MockMailer))

	_, err := service.CreateEvent(context.Background(), nil, validEventInput())
	require.ErrorIs(t, err, ErrForbidden)
}

func TestCreateEventInitialApproval(t *testing.T) {
	tests := []struct {
		name         string
		actor        *models.User
		rateLimited  bool
		wantApproved bool
	}{
		{"ordinary user starts pending", &models.User{ID: uuid.New()}, true, false},
		{"approved organiser auto-approved", &models.User{ID: uuid.New(), ApprovedOrganiser: true}, false, true},
		{"administrator auto-approved", &models.User{ID: uuid.New(), Admin: true}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockEventRepository)
			if tt.rateLimited {
				repo.On("CountCreatedSince", mock.Anything, tt.actor.ID, mock.AnythingOfType("time.Time")).Return(int64(0), nil)
			}
			repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Event")).Return(nil)

			service := newTestEventService(repo, new(MockMailer))
			event, err := service.CreateEvent(context.Background(), tt.actor, validEventInput())

			require.NoError(t, err)
			require.Equal(t, tt.wantApproved, event.Approved)
			require.Equal(t, tt.actor.ID, event.UserID)
			if !tt.rateLimited {
				repo.AssertNotCalled(t, "CountCreatedSince", mock.Anything, mock.Anything, mock.Anything)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestCreateEventRateLimit(t *testing.T) {
	actor := &models.User{ID: uuid.New()}

	t.Run("tenth event in the window is allowed", func(t *testing.T) {
		repo := new(MockEventRepository)
		repo.On("CountCreatedSince", mock.Anything, actor.ID, mock.AnythingOfType("time.Time")).Return(int64(9), nil)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Event")).Return(nil)

		service := newTestEventService(repo, new(MockMailer))
		_, err := service.CreateEvent(context.Background(), actor, validEventInput())
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("eleventh event is refused", func(t *testing.T) {
		repo := new(MockEventRepository)
		repo.On("CountCreatedSince", mock.Anything, actor.ID, mock.AnythingOfType("time.Time")).Return(int64(10), nil)

		service := newTestEventService(repo, new(MockMailer))
		_, err := service.CreateEvent(context.Background(), actor, validEventInput())

		verr, ok := AsValidationError(err)
		require.True(t, ok)
		require.Len(t, verr.Violations, 1)
		require.Equal(t, "base", verr.Violations[0].Field)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestCreateEventAggregatesAllViolations(t *testing.T) {
	actor := &models.User{ID: uuid.New()}
	repo := new(MockEventRepository)
	// At the limit, so the rate limit joins the field violations in one error.
	repo.On("CountCreatedSince", mock.Anything, actor.ID, mock.AnythingOfType("time.Time")).Return(int64(10), nil)

	service := newTestEventService(repo, new(MockMailer))
	_, err := service.CreateEvent(context.Background(), actor, EventInput{
		StartDate: "2026-10-15",
		EndDate:   "2026-10-10",
		EventType: "rave",
	})

	verr, ok := AsValidationError(err)
	require.True(t, ok)

	fields := make(map[string]bool)
	for _, v := range verr.Violations {
		fields[v.Field] = true
	}
	for _, want := range []string{"title", "description", "end_date", "event_type", "locations", "base"} {
		require.True(t, fields[want], "expected a violation on %s", want)
	}
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpdateEventPreservesApprovalState(t *testing.T) {
	owner := &models.User{ID: uuid.New()}

	for _, approved := range []bool{true, false} {
		existing := &models.Event{ID: uuid.New(), UserID: owner.ID, Approved: approved}

		repo := new(MockEventRepository)
		repo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)
		repo.On("SaveWithLocations", mock.Anything, existing, mock.AnythingOfType("[]models.EventLocation")).Return(nil)

		service := newTestEventService(repo, new(MockMailer))
		updated, err := service.UpdateEvent(context.Background(), owner, existing.ID, validEventInput())

		require.NoError(t, err)
		require.Equal(t, approved, updated.Approved)
		repo.AssertExpectations(t)
	}
}

func TestUpdateEventRequiresRemainingLocation(t *testing.T) {
	owner := &models.User{ID: uuid.New()}
	existing := &models.Event{ID: uuid.New(), UserID: owner.ID}

	repo := new(MockEventRepository)
	repo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)

	input := validEventInput()
	input.Locations = []LocationInput{{Region: "wellington", Remove: true}}

	service := newTestEventService(repo, new(MockMailer))
	_, err := service.UpdateEvent(context.Background(), owner, existing.ID, input)

	verr, ok := AsValidationError(err)
	require.True(t, ok)
	require.Len(t, verr.Violations, 1)
	require.Equal(t, "locations", verr.Violations[0].Field)
	repo.AssertNotCalled(t, "SaveWithLocations", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateEventForbiddenForStrangers(t *testing.T) {
	existing := &models.Event{ID: uuid.New(), UserID: uuid.New()}

	repo := new(MockEventRepository)
	repo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)

	service := newTestEventService(repo, new(MockMailer))
	_, err := service.UpdateEvent(context.Background(), &models.User{ID: uuid.New()}, existing.ID, validEventInput())

	require.ErrorIs(t, err, ErrForbidden)
	repo.AssertNotCalled(t, "SaveWithLocations", mock.Anything, mock.Anything, mock.Anything)
}

func TestApproveEvent(t *testing.T) {
	admin := &models.User{ID: uuid.New(), Admin: true}
	pending := &models.Event{ID: uuid.New(), UserID: uuid.New(), Title: "Go Meetup"}

	repo := new(MockEventRepository)
	repo.On("GetByID", mock.Anything, pending.ID).Return(pending, nil)
	repo.On("SetApproved", mock.Anything, pending.ID, true).Return(nil)

	mailer := new(MockMailer)
	mailer.On("SendEventApproved", mock.Anything, mock.AnythingOfType("models.Event"), mock.AnythingOfType("models.User")).Return(nil)

	service := newTestEventService(repo, mailer)
	event, err := service.ApproveEvent(context.Background(), admin, pending.ID)

	require.NoError(t, err)
	require.True(t, event.Approved)
	repo.AssertExpectations(t)
	mailer.AssertExpectations(t)
}

func TestApproveEventIdempotent(t *testing.T) {
	admin := &models.User{ID: uuid.New(), Admin: true}
	approved := &models.Event{ID: uuid.New(), UserID: uuid.New(), Approved: true}

	repo := new(MockEventRepository)
	repo.On("GetByID", mock.Anything, approved.ID).Return(approved, nil)

	mailer := new(MockMailer)

	service := newTestEventService(repo, mailer)
	event, err := service.ApproveEvent(context.Background(), admin, approved.ID)

	require.NoError(t, err)
	require.True(t, event.Approved)
	repo.AssertNotCalled(t, "SetApproved", mock.Anything, mock.Anything, mock.Anything)
	mailer.AssertNotCalled(t, "SendEventApproved", mock.Anything, mock.Anything, mock.Anything)
}

func TestApproveEventRequiresAdmin(t *testing.T) {
	repo := new(MockEventRepository)
	service := newTestEventService(repo, new(MockMailer))

	_, err := service.ApproveEvent(context.Background(), &models.User{ID: uuid.New(), ApprovedOrganiser: true}, uuid.New())
	require.ErrorIs(t, err, ErrForbidden)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestRejectEventDeletes(t *testing.T) {
	admin := &models.User{ID: uuid.New(), Admin: true}
	pending := &models.Event{ID: uuid.New(), UserID: uuid.New()}

	repo := new(MockEventRepository)
	repo.On("GetByID", mock.Anything, pending.ID).Return(pending, nil)
	repo.On("Delete", mock.Anything, pending.ID).Return(nil)

	service := newTestEventService(repo, new(MockMailer))
	require.NoError(t, service.RejectEvent(context.Background(), admin, pending.ID))
	repo.AssertExpectations(t)
}

func TestRejectEventRequiresAdmin(t *testing.T) {
	repo := new(MockEventRepository)
	service := newTestEventService(repo, new(MockMailer))

	err := service.RejectEvent(context.Background(), &models.User{ID: uuid.New()}, uuid.New())
	require.ErrorIs(t, err, ErrForbidden)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestGetEventHidesPendingFromOutsiders(t *testing.T) {
	owner := &models.User{ID: uuid.New()}
	pending := &models.Event{ID: uuid.New(), UserID: owner.ID}

	repo := new(MockEventRepository)
	repo.On("GetByID", mock.Anything, pending.ID).Return(pending, nil)
	service := newTestEventService(repo, new(MockMailer))

	_, err := service.GetEvent(context.Background(), nil, pending.ID)
	require.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = service.GetEvent(context.Background(), &models.User{ID: uuid.New()}, pending.ID)
	require.ErrorIs(t, err, repositories.ErrNotFound)

	event, err := service.GetEvent(context.Background(), owner, pending.ID)
	require.NoError(t, err)
	require.Equal(t, pending.ID, event.ID)
}

func TestListPendingRequiresAdmin(t *testing.T) {
	repo := new(MockEventRepository)
	repo.On("ListPending", mock.Anything).Return([]models.Event{}, nil)
	service := newTestEventService(repo, new(MockMailer))

	_, err := service.ListPending(context.Background(), &models.User{ID: uuid.New()})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = service.ListPending(context.Background(), &models.User{ID: uuid.New(), Admin: true})
	require.NoError(t, err)
}
