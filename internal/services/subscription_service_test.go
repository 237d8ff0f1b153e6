package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ro-savage/nz-tech-events/internal/models"
	"github.com/ro-savage/nz-tech-events/internal/repositories"
)

type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, sub *models.EmailSubscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) ExistsByEmailAndRegion(ctx context.Context, email string, region models.Region) (bool, error) {
	args := m.Called(ctx, email, region)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriptionRepository) FindByToken(ctx context.Context, token string) (*models.EmailSubscription, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailSubscription), args.Error(1)
}

func (m *MockSubscriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) ListAll(ctx context.Context) ([]models.EmailSubscription, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.EmailSubscription), args.Error(1)
}

func TestSubscribeCreatesTokenedSubscription(t *testing.T) {
	repo := new(MockSubscriptionRepository)
	repo.On("ExistsByEmailAndRegion", mock.Anything, "dev@example.co.nz", models.RegionOtago).Return(false, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.EmailSubscription")).Return(nil)

	service := NewSubscriptionService(repo)
	sub, err := service.Subscribe(context.Background(), "dev@example.co.nz", "otago")

	require.NoError(t, err)
	require.Equal(t, models.RegionOtago, sub.Region)
	require.NotEmpty(t, sub.UnsubscribeToken)
	require.Nil(t, sub.LastSentAt)
	repo.AssertExpectations(t)
}

func TestSubscribeRejectsDuplicateRegion(t *testing.T) {
	repo := new(MockSubscriptionRepository)
	repo.On("ExistsByEmailAndRegion", mock.Anything, "dev@example.co.nz", models.RegionOtago).Return(true, nil)

	service := NewSubscriptionService(repo)
	_, err := service.Subscribe(context.Background(), "dev@example.co.nz", "otago")

	verr, ok := AsValidationError(err)
	require.True(t, ok)
	require.Len(t, verr.Violations, 1)
	require.Equal(t, "email_address", verr.Violations[0].Field)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubscribeAggregatesViolations(t *testing.T) {
	repo := new(MockSubscriptionRepository)
	service := NewSubscriptionService(repo)

	_, err := service.Subscribe(context.Background(), "not-an-email", "middle_earth")

	verr, ok := AsValidationError(err)
	require.True(t, ok)
	require.Len(t, verr.Violations, 2)
	repo.AssertNotCalled(t, "ExistsByEmailAndRegion", mock.Anything, mock.Anything, mock.Anything)
}

func TestUnsubscribeStaleToken(t *testing.T) {
	repo := new(MockSubscriptionRepository)
	repo.On("FindByToken", mock.Anything, "stale").Return(nil, repositories.ErrNotFound)

	service := NewSubscriptionService(repo)
	_, err := service.Unsubscribe(context.Background(), "stale")

	require.ErrorIs(t, err, repositories.ErrNotFound)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestUnsubscribeDeletesSubscription(t *testing.T) {
	sub := &models.EmailSubscription{ID: uuid.New(), Region: models.RegionCanterbury, UnsubscribeToken: "tok"}

	repo := new(MockSubscriptionRepository)
	repo.On("FindByToken", mock.Anything, "tok").Return(sub, nil)
	repo.On("Delete", mock.Anything, sub.ID).Return(nil)

	service := NewSubscriptionService(repo)
	got, err := service.Unsubscribe(context.Background(), "tok")

	require.NoError(t, err)
	require.Equal(t, models.RegionCanterbury, got.Region)
	repo.AssertExpectations(t)
}

func TestListSubscribersRollsUpByEmail(t *testing.T) {
	repo := new(MockSubscriptionRepository)
	repo.On("ListAll", mock.Anything).Return([]models.EmailSubscription{
		{EmailAddress: "a@example.co.nz", Region: models.RegionWellington},
		{EmailAddress: "b@example.co.nz", Region: models.RegionOnline},
		{EmailAddress: "a@example.co.nz", Region: models.RegionAuckland},
	}, nil)

	service := NewSubscriptionService(repo)
	summaries, err := service.ListSubscribers(context.Background(), &models.User{ID: uuid.New(), Admin: true})

	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "a@example.co.nz", summaries[0].Email)
	require.Equal(t, []string{"Auckland", "Wellington"}, summaries[0].Regions)
	require.Equal(t, []string{"Online"}, summaries[1].Regions)
}

func TestListSubscribersRequiresAdmin(t *testing.T) {
	service := NewSubscriptionService(new(MockSubscriptionRepository))

	_, err := service.ListSubscribers(context.Background(), &models.User{ID: uuid.New()})
	require.ErrorIs(t, err, ErrForbidden)
}
