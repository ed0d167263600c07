package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "DATABASE_URL", "RABBITMQ_URL", "EVENT_EXCHANGE", "PUBLISH_ROUTING_KEY",
		"PAYMENT_BINDING_KEY", "CORS_ORIGINS", "OUTBOX_POLL_INTERVAL", "OUTBOX_BATCH_SIZE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "ums_events", cfg.EventExchange)
	assert.Equal(t, "enrollment.events", cfg.PublishRoutingKey)
	assert.Equal(t, "payment.events.#", cfg.PaymentBindingKey)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, 10, cfg.OutboxBatchSize)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("OUTBOX_BATCH_SIZE", "50")
	t.Setenv("STUDENT_SERVICE_URL", "http://students:8000")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, 250*time.Millisecond, cfg.OutboxPollInterval)
	assert.Equal(t, 50, cfg.OutboxBatchSize)
	assert.Equal(t, "http://students:8000", cfg.StudentServiceURL)
}

func TestLoad_MalformedNumbersFallBack(t *testing.T) {
	t.Setenv("OUTBOX_POLL_INTERVAL", "soon")
	t.Setenv("OUTBOX_BATCH_SIZE", "-3")

	cfg := Load()

	assert.Equal(t, time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, 10, cfg.OutboxBatchSize)
}
