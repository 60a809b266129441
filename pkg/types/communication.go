package types

import (
	"net/mail"
	"strings"
	"time"
)

type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
)

func (c Channel) Valid() bool {
	return c == ChannelWhatsApp || c == ChannelEmail || c == ChannelSMS
}

type DeliveryStatus string

const (
	DeliveryQueued    DeliveryStatus = "queued"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

var deliveryStatuses = []DeliveryStatus{DeliveryQueued, DeliverySent, DeliveryDelivered, DeliveryFailed}

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryQueued, DeliverySent, DeliveryDelivered, DeliveryFailed:
		return true
	}
	return false
}

func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryDelivered || s == DeliveryFailed
}

func (s DeliveryStatus) rank() int {
	switch s {
	case DeliverySent:
		return 1
	case DeliveryDelivered, DeliveryFailed:
		return 2
	}
	return 0
}

// CanAdvanceTo reports whether a delivery report of next may replace s.
// Reports never move a message backwards and a final outcome only accepts a
// repeat of itself.
func (s DeliveryStatus) CanAdvanceTo(next DeliveryStatus) bool {
	if s.Terminal() {
		return next == s
	}
	return next.rank() >= s.rank()
}

// Predecessors lists the statuses a message may be in for next to apply.
func (s DeliveryStatus) Predecessors() []DeliveryStatus {
	out := make([]DeliveryStatus, 0, len(deliveryStatuses))
	for _, from := range deliveryStatuses {
		if from.CanAdvanceTo(s) {
			out = append(out, from)
		}
	}
	return out
}

type CommunicationLog struct {
	ID                string         `db:"id" json:"id"`
	Channel           Channel        `db:"channel" json:"channel"`
	Recipient         string         `db:"recipient" json:"recipient"`
	Subject           *string        `db:"subject" json:"subject"`
	Message           string         `db:"message" json:"message"`
	Status            DeliveryStatus `db:"status" json:"status"`
	ProviderMessageID *string        `db:"provider_message_id" json:"providerMessageId"`
	ErrorMessage      *string        `db:"error_message" json:"errorMessage"`
	DocumentID        *string        `db:"document_id" json:"documentId"`
	SentBy            string         `db:"sent_by" json:"sentBy"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updatedAt"`
}

func (c *CommunicationLog) Validate() error {
	verr := new(ValidationError)
	c.Recipient = strings.TrimSpace(c.Recipient)
	if !c.Channel.Valid() {
		verr.Add("channel", "channel must be whatsapp, email or sms")
	}
	if c.Recipient == "" {
		verr.Add("recipient", "recipient is required")
	} else if c.Channel == ChannelEmail {
		if _, err := mail.ParseAddress(c.Recipient); err != nil {
			verr.Add("recipient", "enter a valid email address")
		}
	}
	if strings.TrimSpace(c.Message) == "" {
		verr.Add("message", "message is required")
	}
	if c.SentBy == "" {
		verr.Add("sentBy", "sender is required")
	}
	return verr.OrNil()
}

type CommunicationFilter struct {
	Channel    Channel        `form:"channel"`
	Status     DeliveryStatus `form:"status"`
	DocumentID string         `form:"documentId"`
}
