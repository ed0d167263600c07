package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"enrollment-service/internal/logger"
	"enrollment-service/internal/worker"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrDeliveriesClosed = errors.New("delivery channel closed")

// MessageHandler is implemented by PaymentConsumer.
type MessageHandler interface {
	HandleMessage(ctx context.Context, messageID string, payload []byte) error
}

type RunnerConfig struct {
	URL        string
	Exchange   string
	BindingKey string

	DialAttempts int
	DialDelay    time.Duration
}

// Runner owns the single long-lived broker subscription. It is started once
// and stopped on shutdown; it does not reconnect.
type Runner struct {
	cfg     RunnerConfig
	handler MessageHandler
	log     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func NewRunner(cfg RunnerConfig, handler MessageHandler) *Runner {
	if cfg.DialAttempts <= 0 {
		cfg.DialAttempts = 10
	}
	if cfg.DialDelay <= 0 {
		cfg.DialDelay = 2 * time.Second
	}
	return &Runner{
		cfg:     cfg,
		handler: handler,
		log:     logger.Component("consumer"),
	}
}

// Start launches the consume loop in its own goroutine. Calling Start on a
// running Runner is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		err := r.run(ctx)
		if err != nil && ctx.Err() == nil {
			r.log.Error("consumer stopped", "error", err)
		} else {
			r.log.Info("consumer stopped")
			err = nil
		}
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
	}()
}

// Stop cancels the loop and waits for it to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the loop exits. It is nil before Start.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Err reports why the loop exited; nil after a requested stop.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Runner) run(ctx context.Context) error {
	conn, err := worker.DialWithRetry(ctx, r.cfg.URL, r.cfg.DialAttempts, r.cfg.DialDelay)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}
	defer ch.Close()

	if err := worker.DeclareExchange(ch, r.cfg.Exchange); err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		"",    // name, broker-assigned
		false, // durable
		false, // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare a queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, r.cfg.BindingKey, r.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s to %s: %w", q.Name, r.cfg.BindingKey, err)
	}

	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack, manual acks below
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	r.log.Info("waiting for payment events", "queue", q.Name, "binding_key", r.cfg.BindingKey)
	return r.consume(ctx, msgs)
}

func (r *Runner) consume(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return ErrDeliveriesClosed
			}
			r.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery acks after successful processing and rejects without requeue
// on any error. There is no dead-letter queue.
func (r *Runner) handleDelivery(ctx context.Context, d amqp.Delivery) {
	log := r.log.With("message_id", d.MessageId, "routing_key", d.RoutingKey)

	if err := r.handler.HandleMessage(ctx, d.MessageId, d.Body); err != nil {
		log.Error("failed to process payment event", "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("failed to nack message", "error", nackErr)
		}
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error("failed to ack message", "error", err)
	}
}
