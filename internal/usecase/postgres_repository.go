package usecase

import (
	"context"
	"errors"
	"fmt"

	"enrollment-service/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const enrollmentColumns = "id, student_id, course_id, status, created_at, updated_at"

func scanEnrollment(row pgx.Row) (*model.Enrollment, error) {
	var (
		e      model.Enrollment
		status string
	)
	if err := row.Scan(&e.ID, &e.StudentID, &e.CourseID, &status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Status = model.Status(status)
	return &e, nil
}

// CreateWithEvent writes the enrollment and its outbox event in a single transaction.
func (r *PostgresRepository) CreateWithEvent(ctx context.Context, e *model.Enrollment, build EventBuilder) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op once committed.
	defer tx.Rollback(ctx)

	created, err := scanEnrollment(tx.QueryRow(ctx, `
		INSERT INTO enrollments (student_id, course_id, status)
		VALUES ($1, $2, $3)
		RETURNING `+enrollmentColumns,
		e.StudentID, e.CourseID, string(e.Status)))
	if err != nil {
		return fmt.Errorf("failed to insert enrollment: %w", err)
	}

	event, err := build(created)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox (id, aggregate_id, routing_key, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.AggregateID, event.RoutingKey, event.EventType, event.Payload, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	*e = *created
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*model.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("enrollment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollment %d: %w", id, err)
	}
	return e, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter model.ListFilter) ([]model.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE 1=1`
	var args []any
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		query += fmt.Sprintf(" AND student_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := make([]model.Enrollment, 0)
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return enrollments, nil
}

// UpdateStatus overwrites the status unconditionally (last write wins).
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int64, status model.Status) (*model.Enrollment, model.Status, error) {
	var (
		e        model.Enrollment
		newState string
		oldState string
	)
	err := r.db.QueryRow(ctx, `
		UPDATE enrollments e
		SET status = $2, updated_at = now()
		FROM (SELECT id, status FROM enrollments WHERE id = $1 FOR UPDATE) prev
		WHERE e.id = prev.id
		RETURNING e.id, e.student_id, e.course_id, e.status, e.created_at, e.updated_at, prev.status
	`, id, string(status)).Scan(&e.ID, &e.StudentID, &e.CourseID, &newState, &e.CreatedAt, &e.UpdatedAt, &oldState)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", fmt.Errorf("enrollment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to update enrollment %d: %w", id, err)
	}
	e.Status = model.Status(newState)
	return &e, model.Status(oldState), nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}

// ProcessOutbox locks a batch with SKIP LOCKED so several relays can run
// against the same table. Locks are held until the batch is settled.
func (r *PostgresRepository) ProcessOutbox(ctx context.Context, limit int, publish PublishFunc) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id::text, aggregate_id, routing_key, event_type, payload, attempts, COALESCE(last_error, ''), created_at
		FROM outbox
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch events: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.OutboxEvent, error) {
		var e model.OutboxEvent
		err := row.Scan(&e.ID, &e.AggregateID, &e.RoutingKey, &e.EventType, &e.Payload, &e.Attempts, &e.LastError, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan events: %w", err)
	}

	published := 0
	for _, event := range events {
		if pubErr := publish(ctx, event); pubErr != nil {
			if _, err := tx.Exec(ctx,
				"UPDATE outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1",
				event.ID, pubErr.Error()); err != nil {
				return published, fmt.Errorf("failed to record publish failure for %s: %w", event.ID, err)
			}
			continue
		}
		if _, err := tx.Exec(ctx, "DELETE FROM outbox WHERE id = $1", event.ID); err != nil {
			return published, fmt.Errorf("failed to delete event %s: %w", event.ID, err)
		}
		published++
	}

	if err := tx.Commit(ctx); err != nil {
		// Anything already published will go out again next tick.
		return published, fmt.Errorf("failed to commit outbox batch: %w", err)
	}
	return published, nil
}
