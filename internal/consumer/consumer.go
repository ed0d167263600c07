package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"enrollment-service/internal/logger"
	"enrollment-service/internal/model"
	"enrollment-service/internal/usecase"
)

// OutcomeApplier is the part of the enrollment service the consumer drives.
type OutcomeApplier interface {
	ApplyPaymentOutcome(ctx context.Context, id int64, status model.Status) (*model.Enrollment, error)
}

// PaymentConsumer turns payment events into enrollment status changes.
type PaymentConsumer struct {
	enrollments OutcomeApplier
	log         *slog.Logger
}

func NewPaymentConsumer(enrollments OutcomeApplier) *PaymentConsumer {
	return &PaymentConsumer{
		enrollments: enrollments,
		log:         logger.Component("consumer"),
	}
}

// HandleMessage processes one delivery. A nil return means the message is
// done with (including ignored types and unknown enrollments); an error means
// it should be rejected without requeue.
func (c *PaymentConsumer) HandleMessage(ctx context.Context, messageID string, payload []byte) error {
	var event model.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	log := c.log.With("message_id", messageID, "event_type", event.Type)

	var target model.Status
	switch event.Type {
	case model.EventPaymentConfirmed:
		target = model.StatusConfirmed
	case model.EventPaymentFailed:
		target = model.StatusFailed
	default:
		log.Debug("ignoring event")
		return nil
	}

	var outcome model.PaymentOutcome
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &outcome); err != nil {
			return fmt.Errorf("failed to unmarshal %s payload: %w", event.Type, err)
		}
	}
	if outcome.EnrollmentID <= 0 {
		log.Warn("payment event without enrollment_id")
		return nil
	}

	_, err := c.enrollments.ApplyPaymentOutcome(ctx, outcome.EnrollmentID, target)
	if errors.Is(err, usecase.ErrNotFound) {
		log.Info("payment event for unknown enrollment", "enrollment_id", outcome.EnrollmentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply %s to enrollment %d: %w", event.Type, outcome.EnrollmentID, err)
	}
	return nil
}

// Handle adapts HandleMessage to the in-process bus handler signature.
func (c *PaymentConsumer) Handle(ctx context.Context, id string, routingKey string, payload []byte) error {
	return c.HandleMessage(ctx, id, payload)
}
