package worker

import (
	"context"
	"log/slog"
	"time"

	"enrollment-service/internal/logger"
	"enrollment-service/internal/model"
	"enrollment-service/internal/usecase"
)

type Publisher interface {
	Publish(ctx context.Context, id string, routingKey string, payload []byte) error
}

// OutboxProcessor relays committed outbox rows to the broker.
type OutboxProcessor struct {
	store     usecase.OutboxStore
	publisher Publisher
	interval  time.Duration
	batchSize int
	log       *slog.Logger
}

func NewOutboxProcessor(store usecase.OutboxStore, pub Publisher, interval time.Duration, batchSize int) *OutboxProcessor {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &OutboxProcessor{
		store:     store,
		publisher: pub,
		interval:  interval,
		batchSize: batchSize,
		log:       logger.Component("outbox"),
	}
}

// Start polls until ctx is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch relays at most one batch and returns how many rows went out.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) int {
	published, err := p.store.ProcessOutbox(ctx, p.batchSize, p.publishEvent)
	if err != nil {
		p.log.Error("failed to process outbox batch", "error", err)
	}
	if published > 0 {
		p.log.Debug("relayed outbox batch", "published", published)
	}
	return published
}

func (p *OutboxProcessor) publishEvent(ctx context.Context, event model.OutboxEvent) error {
	if err := p.publisher.Publish(ctx, event.ID, event.RoutingKey, event.Payload); err != nil {
		// Row stays in the outbox and is retried next tick.
		p.log.Warn("failed to publish event",
			"event_id", event.ID,
			"event_type", event.EventType,
			"enrollment_id", event.AggregateID,
			"attempts", event.Attempts+1,
			"error", err,
		)
		return err
	}
	p.log.Info("published event",
		"event_id", event.ID,
		"event_type", event.EventType,
		"routing_key", event.RoutingKey,
		"enrollment_id", event.AggregateID,
	)
	return nil
}
