package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an Enrollment. Only the constants below
// are valid values.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"
	StatusDropped   Status = "DROPPED"
)

// ParseStatus matches s case-insensitively against the known statuses.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown enrollment status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFailed, StatusDropped:
		return true
	}
	return false
}

// Terminal reports whether no transition out of s is defined.
func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusFailed, StatusDropped:
		return true
	case StatusPending:
		return false
	}
	return false
}

type Enrollment struct {
	ID        int64     `json:"id"`
	StudentID string    `json:"student_id"`
	CourseID  string    `json:"course_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilter narrows List. Zero values mean "no filter".
type ListFilter struct {
	StudentID string
	Status    Status
}

type OutboxEvent struct {
	ID          string    `json:"id"`
	AggregateID int64     `json:"aggregate_id"`
	RoutingKey  string    `json:"routing_key"`
	EventType   string    `json:"event_type"`
	Payload     []byte    `json:"payload"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Event types exchanged on the bus.
const (
	EventRegistrationPendingPayment = "RegistrationPendingPayment"
	EventPaymentConfirmed           = "PaymentConfirmed"
	EventPaymentFailed              = "PaymentFailed"
)

// Event is the envelope every message on the bus is wrapped in.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent marshals payload into an envelope of the given type.
func NewEvent(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return json.Marshal(Event{Type: eventType, Payload: raw})
}

type RegistrationPendingPayment struct {
	EnrollmentID int64   `json:"enrollment_id"`
	StudentID    string  `json:"student_id"`
	CourseID     string  `json:"course_id"`
	Amount       float64 `json:"amount"`
}

// PaymentOutcome is the payload of both PaymentConfirmed and PaymentFailed.
type PaymentOutcome struct {
	EnrollmentID int64 `json:"enrollment_id"`
}
