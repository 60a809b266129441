// Package messaging records outbound communications and hands email to the
// delivery provider. SMS and WhatsApp messages are logged and stay queued
// until a provider reports back through the status callback.
package messaging

import (
	"context"
	"fmt"
	"strings"

	"epatra/pkg/types"

	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
)

type Store interface {
	CreateCommunication(ctx context.Context, c *types.CommunicationLog, actor types.AuditContext) error
	UpdateDeliveryStatus(ctx context.Context, id string, status types.DeliveryStatus, providerMessageID, errorMessage *string, actor types.AuditContext) (*types.CommunicationLog, error)
}

// EmailAPI is the part of the Resend client used here.
type EmailAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type Service struct {
	logger *logrus.Logger
	store  Store

	emails   EmailAPI
	from     string
	testMode bool
}

func New(logger *logrus.Logger, config *types.Config, store Store) *Service {
	s := &Service{
		logger:   logger,
		store:    store,
		from:     fmt.Sprintf("%s <%s>", config.EmailFromName, config.EmailFrom),
		testMode: config.EmailTestMode,
	}
	if config.ResendAPIKey != "" {
		s.emails = resend.NewClient(config.ResendAPIKey).Emails
	}
	return s
}

// WithEmailAPI replaces the Resend client.
func (s *Service) WithEmailAPI(api EmailAPI) *Service {
	s.emails = api
	return s
}

// Send records the message as queued and, for email, attempts delivery
// straight away. A delivery failure is recorded on the log entry rather than
// returned; only validation and storage errors are.
func (s *Service) Send(ctx context.Context, msg *types.CommunicationLog, actor types.AuditContext) (*types.CommunicationLog, error) {
	msg.SentBy = actor.UserID
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.CreateCommunication(ctx, msg, actor); err != nil {
		return nil, fmt.Errorf("failed to record communication: %w", err)
	}

	entry := s.logger.WithFields(logrus.Fields{
		"communication_id": msg.ID,
		"channel":          msg.Channel,
		"user_id":          actor.UserID,
	})

	if msg.Channel != types.ChannelEmail {
		entry.Info("communication queued")
		return msg, nil
	}

	providerID, err := s.sendEmail(ctx, msg)
	if err != nil {
		entry.WithError(err).Error("failed to send email")
		errMessage := err.Error()
		return s.store.UpdateDeliveryStatus(ctx, msg.ID, types.DeliveryFailed, nil, &errMessage, actor)
	}

	entry.WithField("provider_message_id", providerID).Info("email sent")
	return s.store.UpdateDeliveryStatus(ctx, msg.ID, types.DeliverySent, &providerID, nil, actor)
}

func (s *Service) sendEmail(ctx context.Context, msg *types.CommunicationLog) (string, error) {
	subject := "e-Patra"
	if msg.Subject != nil && strings.TrimSpace(*msg.Subject) != "" {
		subject = *msg.Subject
	}

	if s.testMode {
		s.logger.WithFields(logrus.Fields{
			"to":      msg.Recipient,
			"subject": subject,
		}).Info("email test mode, not sending")
		return "test-" + msg.ID, nil
	}

	if s.emails == nil {
		return "", fmt.Errorf("RESEND_API_KEY not configured")
	}

	sent, err := s.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.Recipient},
		Subject: subject,
		Text:    msg.Message,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send email via Resend: %w", err)
	}

	return sent.Id, nil
}

// UpdateStatus applies a delivery report from a provider callback.
func (s *Service) UpdateStatus(ctx context.Context, id string, status types.DeliveryStatus, providerMessageID, errorMessage *string) (*types.CommunicationLog, error) {
	if !status.Valid() {
		return nil, types.NewValidationError("status", "status must be queued, sent, delivered or failed")
	}

	return s.store.UpdateDeliveryStatus(ctx, id, status, providerMessageID, errorMessage, types.AuditContext{})
}
