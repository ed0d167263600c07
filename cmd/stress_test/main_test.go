package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStressCommand(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/enrollments" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		// Every third request is refused to check the created count.
		if hits.Add(1)%3 == 0 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--url", srv.URL, "-n", "9"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, int64(9), hits.Load())
	assert.Contains(t, out.String(), "Finished 9 requests (6 created)")
}

func TestStressCommand_RejectsNonPositiveCount(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"-n", "0"})

	assert.Error(t, cmd.Execute())
}
