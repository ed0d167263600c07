package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"enrollment-service/internal/model"
)

// MemoryRepository keeps enrollments and the outbox in process memory. It is
// used by tests and local runs that have no Postgres.
type MemoryRepository struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]model.Enrollment
	outbox  []model.OutboxEvent
	pingErr error
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rows: make(map[int64]model.Enrollment),
		now:  time.Now,
	}
}

// SetPingError makes Ping fail with err until cleared with nil.
func (r *MemoryRepository) SetPingError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pingErr = err
}

// Outbox returns a copy of the pending outbox rows.
func (r *MemoryRepository) Outbox() []model.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.OutboxEvent(nil), r.outbox...)
}

func (r *MemoryRepository) CreateWithEvent(ctx context.Context, e *model.Enrollment, build EventBuilder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	created := *e
	created.ID = r.nextID + 1
	created.CreatedAt = now
	created.UpdatedAt = now

	event, err := build(&created)
	if err != nil {
		return err
	}

	r.nextID = created.ID
	r.rows[created.ID] = created
	r.outbox = append(r.outbox, event)
	*e = created
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id int64) (*model.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("enrollment %d: %w", id, ErrNotFound)
	}
	return &e, nil
}

func (r *MemoryRepository) List(ctx context.Context, filter model.ListFilter) ([]model.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Enrollment, 0, len(r.rows))
	for _, e := range r.rows {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id int64, status model.Status) (*model.Enrollment, model.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rows[id]
	if !ok {
		return nil, "", fmt.Errorf("enrollment %d: %w", id, ErrNotFound)
	}
	prev := e.Status
	e.Status = status
	e.UpdatedAt = r.now()
	r.rows[id] = e
	return &e, prev, nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pingErr
}

// ProcessOutbox publishes without holding the lock; a publish may loop back
// into this repository through an in-process bus.
func (r *MemoryRepository) ProcessOutbox(ctx context.Context, limit int, publish PublishFunc) (int, error) {
	r.mu.Lock()
	n := len(r.outbox)
	if limit > 0 && n > limit {
		n = limit
	}
	batch := append([]model.OutboxEvent(nil), r.outbox[:n]...)
	r.mu.Unlock()

	done := make(map[string]bool, len(batch))
	failed := make(map[string]string)
	for _, event := range batch {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := publish(ctx, event); err != nil {
			failed[event.ID] = err.Error()
			continue
		}
		done[event.ID] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.outbox[:0]
	for _, event := range r.outbox {
		if done[event.ID] {
			continue
		}
		if msg, ok := failed[event.ID]; ok {
			event.Attempts++
			event.LastError = msg
		}
		kept = append(kept, event)
	}
	r.outbox = kept
	return len(done), nil
}
