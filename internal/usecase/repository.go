package usecase

import (
	"context"
	"errors"

	"enrollment-service/internal/model"
)

var (
	ErrNotFound     = errors.New("enrollment not found")
	ErrInvalidInput = errors.New("invalid input")
)

// EventBuilder turns a freshly inserted enrollment into the outbox row that
// must be committed with it.
type EventBuilder func(e *model.Enrollment) (model.OutboxEvent, error)

// PublishFunc delivers one outbox row. A nil return means the row can be
// removed from the outbox.
type PublishFunc func(ctx context.Context, event model.OutboxEvent) error

type Repository interface {
	// CreateWithEvent inserts e and the event built from it atomically.
	// e is updated in place with the stored id and timestamps.
	CreateWithEvent(ctx context.Context, e *model.Enrollment, build EventBuilder) error
	Get(ctx context.Context, id int64) (*model.Enrollment, error)
	List(ctx context.Context, filter model.ListFilter) ([]model.Enrollment, error)
	// UpdateStatus returns the updated row and the status it had before.
	UpdateStatus(ctx context.Context, id int64, status model.Status) (*model.Enrollment, model.Status, error)
	Ping(ctx context.Context) error
}

// OutboxStore is the relay's view of the outbox table.
type OutboxStore interface {
	// ProcessOutbox hands up to limit pending rows, oldest first, to publish.
	// Rows published successfully are removed; failed rows stay with their
	// attempt counter bumped.
	ProcessOutbox(ctx context.Context, limit int, publish PublishFunc) (int, error)
}
