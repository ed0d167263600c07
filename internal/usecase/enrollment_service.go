package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"enrollment-service/internal/logger"
	"enrollment-service/internal/model"

	"github.com/google/uuid"
)

type EnrollmentService struct {
	repo       Repository
	routingKey string
	log        *slog.Logger
}

// NewEnrollmentService returns a service that emits its outbound events under routingKey.
func NewEnrollmentService(repo Repository, routingKey string) *EnrollmentService {
	return &EnrollmentService{
		repo:       repo,
		routingKey: routingKey,
		log:        logger.Component("enrollment"),
	}
}

// Register stores a PENDING enrollment and, in the same transaction, queues
// a RegistrationPendingPayment event for the payment service.
func (s *EnrollmentService) Register(ctx context.Context, studentID, courseID string, amount float64) (*model.Enrollment, error) {
	studentID = strings.TrimSpace(studentID)
	courseID = strings.TrimSpace(courseID)
	if studentID == "" || courseID == "" {
		return nil, fmt.Errorf("student_id and course_id are required: %w", ErrInvalidInput)
	}

	enrollment := &model.Enrollment{
		StudentID: studentID,
		CourseID:  courseID,
		Status:    model.StatusPending,
	}

	err := s.repo.CreateWithEvent(ctx, enrollment, func(e *model.Enrollment) (model.OutboxEvent, error) {
		payload, err := model.NewEvent(model.EventRegistrationPendingPayment, model.RegistrationPendingPayment{
			EnrollmentID: e.ID,
			StudentID:    e.StudentID,
			CourseID:     e.CourseID,
			Amount:       amount,
		})
		if err != nil {
			return model.OutboxEvent{}, err
		}
		return model.OutboxEvent{
			ID:          uuid.New().String(),
			AggregateID: e.ID,
			RoutingKey:  s.routingKey,
			EventType:   model.EventRegistrationPendingPayment,
			Payload:     payload,
			CreatedAt:   time.Now(),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.log).Info("created enrollment",
		"enrollment_id", enrollment.ID,
		"student_id", enrollment.StudentID,
		"course_id", enrollment.CourseID,
		"status", enrollment.Status,
	)
	return enrollment, nil
}

func (s *EnrollmentService) Get(ctx context.Context, id int64) (*model.Enrollment, error) {
	return s.repo.Get(ctx, id)
}

func (s *EnrollmentService) List(ctx context.Context, filter model.ListFilter) ([]model.Enrollment, error) {
	return s.repo.List(ctx, filter)
}

// Drop marks the enrollment DROPPED whatever its current status.
func (s *EnrollmentService) Drop(ctx context.Context, id int64) (*model.Enrollment, error) {
	e, prev, err := s.repo.UpdateStatus(ctx, id, model.StatusDropped)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx, s.log).Info("dropped enrollment", "enrollment_id", id, "previous_status", prev)
	return e, nil
}

// ApplyPaymentOutcome moves an enrollment to CONFIRMED or FAILED. Any other
// target status is rejected.
func (s *EnrollmentService) ApplyPaymentOutcome(ctx context.Context, id int64, status model.Status) (*model.Enrollment, error) {
	switch status {
	case model.StatusConfirmed, model.StatusFailed:
	case model.StatusPending, model.StatusDropped:
		return nil, fmt.Errorf("payment outcome cannot set status %s: %w", status, ErrInvalidInput)
	default:
		return nil, fmt.Errorf("unknown status %q: %w", status, ErrInvalidInput)
	}

	e, prev, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, s.log).With("enrollment_id", id, "status", status, "previous_status", prev)
	switch {
	case !prev.Valid():
		log.Warn("payment outcome overwrote unrecognised status")
	case prev.Terminal():
		// No guard exists for late payments; the newest event wins.
		log.Warn("payment outcome overwrote terminal status")
	default:
		log.Info("applied payment outcome")
	}
	return e, nil
}

func (s *EnrollmentService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
