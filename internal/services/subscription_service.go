package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ro-savage/nz-tech-events/internal/models"
)

// SubscriptionRepository is the persistence surface the subscription service
// needs.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *models.EmailSubscription) error
	ExistsByEmailAndRegion(ctx context.Context, email string, region models.Region) (bool, error)
	FindByToken(ctx context.Context, token string) (*models.EmailSubscription, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListAll(ctx context.Context) ([]models.EmailSubscription, error)
}

// SubscriptionService manages weekly digest subscriptions
type SubscriptionService struct {
	subs SubscriptionRepository
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(subs SubscriptionRepository) *SubscriptionService {
	return &SubscriptionService{subs: subs}
}

// Subscribe creates a subscription for one (email, region) pair. A person may
// subscribe to several regions but never to the same one twice.
func (s *SubscriptionService) Subscribe(ctx context.Context, email, regionSlug string) (*models.EmailSubscription, error) {
	verr := &ValidationError{}

	if email == "" {
		verr.add("email_address", "is required")
	} else if err := validate.Var(email, "email"); err != nil {
		verr.add("email_address", "must be a valid email address")
	}

	region, err := models.ParseRegion(regionSlug)
	if err != nil {
		verr.add("region", "is not a recognized region")
	} else if email != "" {
		exists, err := s.subs.ExistsByEmailAndRegion(ctx, email, region)
		if err != nil {
			return nil, errors.Wrap(err, "failed to check for existing subscription")
		}
		if exists {
			verr.add("email_address", "is already subscribed to this region")
		}
	}

	if !verr.empty() {
		return nil, verr
	}

	token, err := generateUnsubscribeToken()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate unsubscribe token")
	}

	sub := &models.EmailSubscription{
		ID:               uuid.New(),
		EmailAddress:     email,
		Region:           region,
		UnsubscribeToken: token,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}

	log.Info().
		Str("region", region.String()).
		Msg("Digest subscription created")

	return sub, nil
}

// Unsubscribe removes the subscription matching the token. A stale token
// surfaces as not found, which callers treat as already gone.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, token string) (*models.EmailSubscription, error) {
	sub, err := s.subs.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.subs.Delete(ctx, sub.ID); err != nil {
		return nil, err
	}

	log.Info().
		Str("region", sub.Region.String()).
		Msg("Digest subscription removed")

	return sub, nil
}

// SubscriberSummary is one email address with all of its subscribed regions.
type SubscriberSummary struct {
	Email   string   `json:"email"`
	Regions []string `json:"regions"`
}

// ListSubscribers rolls subscriptions up by email address for the admin view.
func (s *SubscriptionService) ListSubscribers(ctx context.Context, actor *models.User) ([]SubscriberSummary, error) {
	if actor == nil || !actor.Admin {
		return nil, ErrForbidden
	}

	subs, err := s.subs.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	byEmail := make(map[string][]string)
	order := make([]string, 0)
	for _, sub := range subs {
		if _, seen := byEmail[sub.EmailAddress]; !seen {
			order = append(order, sub.EmailAddress)
		}
		byEmail[sub.EmailAddress] = append(byEmail[sub.EmailAddress], sub.Region.DisplayLabel())
	}

	summaries := make([]SubscriberSummary, 0, len(order))
	for _, email := range order {
		regions := byEmail[email]
		sort.Strings(regions)
		summaries = append(summaries, SubscriberSummary{Email: email, Regions: regions})
	}
	return summaries, nil
}

func generateUnsubscribeToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
