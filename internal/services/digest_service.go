package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ro-savage/nz-tech-events/internal/mail"
	"github.com/ro-savage/nz-tech-events/internal/metrics"
	"github.com/ro-savage/nz-tech-events/internal/models"
	"github.com/ro-savage/nz-tech-events/internal/repositories"
)

const digestLockName = "weekly-digest"

// regionConcurrency bounds how many regions are planned at once. Dispatch
// within a region stays sequential to respect the mail queue's throughput.
const regionConcurrency = 4

// DigestEventLister lists catalog events for digest planning.
type DigestEventLister interface {
	List(ctx context.Context, q repositories.EventListQuery) ([]models.Event, error)
}

// DigestSubscriptionRepository is the subscription surface the digest needs.
type DigestSubscriptionRepository interface {
	ListByRegion(ctx context.Context, region models.Region) ([]models.EmailSubscription, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// RunLocker guards against overlapping digest runs, which would double-send.
type RunLocker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error
}

// DigestService plans and dispatches the weekly per-region email digest
type DigestService struct {
	events  DigestEventLister
	subs    DigestSubscriptionRepository
	mailer  mail.Mailer
	locker  RunLocker
	metrics *metrics.Metrics
	loc     *time.Location

	// newWindow is the fixed lookback that classifies an event as "new". It
	// deliberately ignores when the job last actually ran.
	newWindow time.Duration
	lockTTL   time.Duration
}

// NewDigestService creates a new digest service
func NewDigestService(
	events DigestEventLister,
	subs DigestSubscriptionRepository,
	mailer mail.Mailer,
	locker RunLocker,
	m *metrics.Metrics,
	loc *time.Location,
	newWindow time.Duration,
	lockTTL time.Duration,
) *DigestService {
	return &DigestService{
		events:    events,
		subs:      subs,
		mailer:    mailer,
		locker:    locker,
		metrics:   m,
		loc:       loc,
		newWindow: newWindow,
		lockTTL:   lockTTL,
	}
}

// regionDigest is the materialized content for one region, computed once and
// reused for every subscription in that region.
type regionDigest struct {
	region         models.Region
	newEvents      []models.Event
	upcomingEvents []models.Event
}

// Run executes one weekly digest batch. Regions are planned in parallel,
// dispatch within a region is sequential, and a failed hand-off for one
// subscription never aborts the rest of the run.
func (s *DigestService) Run(ctx context.Context, now time.Time) error {
	acquired, err := s.locker.AcquireLock(ctx, digestLockName, s.lockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		log.Warn().Msg("Another digest run holds the lock, skipping this invocation")
		return nil
	}
	defer func() {
		if err := s.locker.ReleaseLock(ctx, digestLockName); err != nil {
			log.Warn().Err(err).Msg("Failed to release digest run lock")
		}
	}()

	s.metrics.IncrementCounter(metrics.CounterDigestRuns)
	log.Info().Time("now", now).Msg("Starting weekly digest run")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(regionConcurrency)
	for _, region := range models.AllRegions {
		region := region
		g.Go(func() error {
			// Region failures are logged and isolated, never propagated.
			if err := s.runRegion(gctx, region, now); err != nil {
				log.Error().Err(err).Str("region", region.String()).Msg("Digest region failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info().Msg("Weekly digest run complete")
	return nil
}

// runRegion plans one region and dispatches to each of its subscribers.
func (s *DigestService) runRegion(ctx context.Context, region models.Region, now time.Time) error {
	subs, err := s.subs.ListByRegion(ctx, region)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	digest, err := s.planRegion(ctx, region, now)
	if err != nil {
		return err
	}

	log.Info().
		Str("region", region.String()).
		Int("subscribers", len(subs)).
		Int("new_events", len(digest.newEvents)).
		Int("upcoming_events", len(digest.upcomingEvents)).
		Msg("Dispatching region digest")

	for _, sub := range subs {
		if err := s.mailer.SendDigest(ctx, sub, digest.newEvents, digest.upcomingEvents); err != nil {
			s.metrics.IncrementCounter(metrics.CounterDispatchErrors)
			log.Error().
				Err(err).
				Str("region", region.String()).
				Str("subscription_id", sub.ID.String()).
				Msg("Digest hand-off failed, skipping subscription")
			continue
		}
		if err := s.subs.MarkSent(ctx, sub.ID, now); err != nil {
			log.Error().
				Err(err).
				Str("subscription_id", sub.ID.String()).
				Msg("Failed to record digest dispatch")
		}
		s.metrics.IncrementCounter(metrics.CounterDigestsSent)
	}
	return nil
}

// planRegion materializes the "new" and "all upcoming" sets for one region
// before any dispatch begins, so every subscriber in the region sees the same
// content even if events are created mid-run.
func (s *DigestService) planRegion(ctx context.Context, region models.Region, now time.Time) (*regionDigest, error) {
	today := dateIn(now, s.loc)
	base := repositories.EventListQuery{
		Partition:    repositories.PartitionUpcoming,
		Today:        today,
		Region:       &region,
		ApprovedOnly: true,
	}

	upcoming, err := s.events.List(ctx, base)
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-s.newWindow)
	newQuery := base
	newQuery.CreatedSince = &cutoff
	newEvents, err := s.events.List(ctx, newQuery)
	if err != nil {
		return nil, err
	}

	return &regionDigest{
		region:         region,
		newEvents:      dedupeByID(newEvents),
		upcomingEvents: dedupeByID(upcoming),
	}, nil
}

// dedupeByID drops repeated events while keeping order. An event with two
// locations in the same region must appear once, not twice.
func dedupeByID(events []models.Event) []models.Event {
	seen := make(map[uuid.UUID]struct{}, len(events))
	out := events[:0]
	for _, e := range events {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

func dateIn(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
