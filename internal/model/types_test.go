package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"confirmed": StatusConfirmed,
		"CONFIRMED": StatusConfirmed,
		"Pending":   StatusPending,
		" failed ":  StatusFailed,
		"dropped":   StatusDropped,
	}
	for in, want := range cases {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStatus("refunded")
	assert.Error(t, err)
	_, err = ParseStatus("")
	assert.Error(t, err)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusConfirmed.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusDropped.Terminal())
	assert.False(t, Status("nope").Valid())
}

func TestNewEvent_Envelope(t *testing.T) {
	body, err := NewEvent(EventRegistrationPendingPayment, RegistrationPendingPayment{
		EnrollmentID: 1, StudentID: "s1", CourseID: "c1", Amount: 100,
	})
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"type":"RegistrationPendingPayment","payload":{"enrollment_id":1,"student_id":"s1","course_id":"c1","amount":100}}`,
		string(body))

	var evt Event
	require.NoError(t, json.Unmarshal(body, &evt))
	assert.Equal(t, EventRegistrationPendingPayment, evt.Type)
}
