package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"enrollment-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*EnrollmentService, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	return NewEnrollmentService(repo, "enrollment.events"), repo
}

func TestRegister_PendingWithUniqueIDs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, "s1", "c1", 100)
	require.NoError(t, err)
	second, err := svc.Register(ctx, "s1", "c2", 0)
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, first.Status)
	assert.Equal(t, model.StatusPending, second.Status)
	assert.Positive(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, first.CreatedAt.IsZero())
}

func TestRegister_QueuesOutboxEvent(t *testing.T) {
	svc, repo := newTestService(t)

	e, err := svc.Register(context.Background(), "s1", "c1", 100)
	require.NoError(t, err)

	outbox := repo.Outbox()
	require.Len(t, outbox, 1)
	assert.Equal(t, e.ID, outbox[0].AggregateID)
	assert.Equal(t, "enrollment.events", outbox[0].RoutingKey)
	assert.Equal(t, model.EventRegistrationPendingPayment, outbox[0].EventType)
	assert.NotEmpty(t, outbox[0].ID)

	var evt model.Event
	require.NoError(t, json.Unmarshal(outbox[0].Payload, &evt))
	var payload model.RegistrationPendingPayment
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, model.RegistrationPendingPayment{EnrollmentID: e.ID, StudentID: "s1", CourseID: "c1", Amount: 100}, payload)
}

func TestRegister_RejectsBlankIDs(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.Register(context.Background(), "  ", "c1", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Register(context.Background(), "s1", "", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	list, err := svc.List(context.Background(), model.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, repo.Outbox())
}

func TestDrop_FromAnyStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	e, err := svc.Register(ctx, "s1", "c1", 0)
	require.NoError(t, err)
	_, err = svc.ApplyPaymentOutcome(ctx, e.ID, model.StatusConfirmed)
	require.NoError(t, err)

	dropped, err := svc.Drop(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDropped, dropped.Status)

	got, err := svc.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDropped, got.Status)
}

func TestDropAndGet_Missing(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Drop(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyPaymentOutcome(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ok, err := svc.Register(ctx, "s1", "c1", 10)
	require.NoError(t, err)
	bad, err := svc.Register(ctx, "s2", "c1", 10)
	require.NoError(t, err)

	confirmed, err := svc.ApplyPaymentOutcome(ctx, ok.ID, model.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)

	failed, err := svc.ApplyPaymentOutcome(ctx, bad.ID, model.StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, failed.Status)

	_, err = svc.ApplyPaymentOutcome(ctx, 404, model.StatusConfirmed)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ApplyPaymentOutcome(ctx, ok.ID, model.StatusDropped)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestApplyPaymentOutcome_AfterDropLastWriteWins(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	e, err := svc.Register(ctx, "s1", "c1", 10)
	require.NoError(t, err)
	_, err = svc.Drop(ctx, e.ID)
	require.NoError(t, err)

	got, err := svc.ApplyPaymentOutcome(ctx, e.ID, model.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
}

func TestList_FiltersAndOrdersNewestFirst(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	a, _ := svc.Register(ctx, "s1", "c1", 0)
	_, _ = svc.Register(ctx, "s2", "c1", 0)
	c, _ := svc.Register(ctx, "s1", "c2", 0)
	_, err := svc.ApplyPaymentOutcome(ctx, c.ID, model.StatusConfirmed)
	require.NoError(t, err)

	list, err := svc.List(ctx, model.ListFilter{StudentID: "s1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, c.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)

	list, err = svc.List(ctx, model.ListFilter{StudentID: "s1", Status: model.StatusConfirmed})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)

	list, err = svc.List(ctx, model.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestPing(t *testing.T) {
	svc, repo := newTestService(t)
	assert.NoError(t, svc.Ping(context.Background()))

	repo.SetPingError(errors.New("connection refused"))
	assert.Error(t, svc.Ping(context.Background()))
}

func TestApplyPaymentOutcome_WarnsOnlyWhenOverwritingTerminal(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	svc, _ := newTestService(t)
	ctx := context.Background()
	e, err := svc.Register(ctx, "s1", "c1", 10)
	require.NoError(t, err)

	_, err = svc.ApplyPaymentOutcome(ctx, e.ID, model.StatusConfirmed)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "applied payment outcome")
	assert.NotContains(t, buf.String(), "level=WARN")

	buf.Reset()
	_, err = svc.Drop(ctx, e.ID)
	require.NoError(t, err)
	_, err = svc.ApplyPaymentOutcome(ctx, e.ID, model.StatusFailed)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "overwrote terminal status")
	assert.Contains(t, buf.String(), "previous_status=DROPPED")
}
