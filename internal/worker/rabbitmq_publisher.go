package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"enrollment-service/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultPublishDialTimeout bounds each one-shot connection. The relay holds
// outbox row locks while publishing, so a blackholed broker must fail fast.
const DefaultPublishDialTimeout = 5 * time.Second

// RabbitMQPublisher publishes to a durable topic exchange. Each call opens
// and closes its own connection.
type RabbitMQPublisher struct {
	url         string
	exchange    string
	dialTimeout time.Duration
	log         *slog.Logger
}

func NewRabbitMQPublisher(url string, exchange string) *RabbitMQPublisher {
	return &RabbitMQPublisher{
		url:         url,
		exchange:    exchange,
		dialTimeout: DefaultPublishDialTimeout,
		log:         logger.Component("publisher"),
	}
}

// WithDialTimeout overrides the per-publish connection timeout.
func (p *RabbitMQPublisher) WithDialTimeout(d time.Duration) *RabbitMQPublisher {
	if d > 0 {
		p.dialTimeout = d
	}
	return p
}

// connectTimeout is the dial timeout, shortened to ctx's deadline if sooner.
func (p *RabbitMQPublisher) connectTimeout(ctx context.Context) time.Duration {
	timeout := p.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

// DeclareExchange declares the durable topic exchange. It is idempotent.
func DeclareExchange(ch *amqp.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return nil
}

// DialWithRetry retries the initial connection; RabbitMQ is often still
// booting when the service starts under compose.
func DialWithRetry(ctx context.Context, url string, attempts int, delay time.Duration) (*amqp.Connection, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	log := logger.Component("publisher")
	for i := 0; i < attempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		log.Warn("failed to connect to RabbitMQ, retrying", "attempt", i+1, "of", attempts, "delay", delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, id string, routingKey string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := p.connectTimeout(ctx)
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}
	defer ch.Close()

	if err := DeclareExchange(ch, p.exchange); err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			MessageId:    id,
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.log.Debug("published message", "message_id", id, "exchange", p.exchange, "routing_key", routingKey)
	return nil
}
