// Package mail hands outbound email off to the delivery collaborator. The
// catalog only decides what to send and to whom; rendering, retries and
// delivery tracking happen downstream of the queue.
package mail

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ro-savage/nz-tech-events/config"
	"github.com/ro-savage/nz-tech-events/internal/models"
)

// Mailer is the outbound mail hand-off interface
type Mailer interface {
	SendDigest(ctx context.Context, sub models.EmailSubscription, newEvents, upcomingEvents []models.Event) error
	SendEventApproved(ctx context.Context, event models.Event, owner models.User) error
	Close() error
}

// DigestMessage is the queued payload for one weekly digest email.
type DigestMessage struct {
	Kind             string             `json:"kind"`
	EmailAddress     string             `json:"email_address"`
	RegionLabel      string             `json:"region_label"`
	WeekOf           string             `json:"week_of"`
	UnsubscribeToken string             `json:"unsubscribe_token"`
	NewEvents        []DigestEventEntry `json:"new_events"`
	UpcomingEvents   []DigestEventEntry `json:"upcoming_events"`
}

// DigestEventEntry is one event line in a digest email.
type DigestEventEntry struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	StartDate string `json:"start_date"`
	Location  string `json:"location"`
}

// ApprovalMessage is the queued payload for an approval notice.
type ApprovalMessage struct {
	Kind         string `json:"kind"`
	EmailAddress string `json:"email_address"`
	OwnerName    string `json:"owner_name"`
	EventID      string `json:"event_id"`
	EventTitle   string `json:"event_title"`
}

// serviceBusMailer publishes mail messages to an Azure Service Bus queue
type serviceBusMailer struct {
	client *azservicebus.Client
	sender *azservicebus.Sender
}

// mockMailer logs instead of publishing, for local development
type mockMailer struct{}

// NewMailer creates a mailer backed by Azure Service Bus, or a mock when no
// connection string is configured.
func NewMailer(cfg config.MailConfig) (Mailer, error) {
	if cfg.QueueConnStr == "" {
		log.Warn().Msg("Mail queue connection string not provided, using mock mailer")
		return &mockMailer{}, nil
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &serviceBusMailer{client: client, sender: sender}, nil
}

func (m *serviceBusMailer) SendDigest(ctx context.Context, sub models.EmailSubscription, newEvents, upcomingEvents []models.Event) error {
	msg := DigestMessage{
		Kind:             "weekly_digest",
		EmailAddress:     sub.EmailAddress,
		RegionLabel:      sub.Region.DisplayLabel(),
		WeekOf:           time.Now().UTC().Format("January 02, 2006"),
		UnsubscribeToken: sub.UnsubscribeToken,
		NewEvents:        digestEntries(newEvents),
		UpcomingEvents:   digestEntries(upcomingEvents),
	}
	return m.publish(ctx, msg)
}

func (m *serviceBusMailer) SendEventApproved(ctx context.Context, event models.Event, owner models.User) error {
	msg := ApprovalMessage{
		Kind:         "event_approved",
		EmailAddress: owner.EmailAddress,
		OwnerName:    owner.DisplayName(),
		EventID:      event.ID.String(),
		EventTitle:   event.Title,
	}
	return m.publish(ctx, msg)
}

func (m *serviceBusMailer) publish(ctx context.Context, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal mail message")
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"source": "event-catalog",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	if err := m.sender.SendMessage(ctx, msg, nil); err != nil {
		return errors.Wrap(err, "failed to publish mail message")
	}
	return nil
}

func (m *serviceBusMailer) Close() error {
	if m.sender != nil {
		if err := m.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if m.client != nil {
		return m.client.Close(context.Background())
	}
	return nil
}

func digestEntries(events []models.Event) []DigestEventEntry {
	entries := make([]DigestEventEntry, 0, len(events))
	for i := range events {
		e := &events[i]
		location := ""
		if primary := e.PrimaryLocation(); primary != nil {
			location = primary.FullDisplay()
		}
		entries = append(entries, DigestEventEntry{
			ID:        e.ID.String(),
			Title:     e.Title,
			Summary:   e.DisplaySummary(500),
			StartDate: e.StartDate.Format("2006-01-02"),
			Location:  location,
		})
	}
	return entries
}

// SendDigest implementation for the mock mailer
func (m *mockMailer) SendDigest(ctx context.Context, sub models.EmailSubscription, newEvents, upcomingEvents []models.Event) error {
	log.Info().
		Str("email", sub.EmailAddress).
		Str("region", sub.Region.String()).
		Int("new_events", len(newEvents)).
		Int("upcoming_events", len(upcomingEvents)).
		Msg("[MOCK mailer] digest handed off")
	return nil
}

// SendEventApproved implementation for the mock mailer
func (m *mockMailer) SendEventApproved(ctx context.Context, event models.Event, owner models.User) error {
	log.Info().
		Str("email", owner.EmailAddress).
		Str("event_id", event.ID.String()).
		Msg("[MOCK mailer] approval notice handed off")
	return nil
}

func (m *mockMailer) Close() error {
	return nil
}
