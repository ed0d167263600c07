package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		baseURL       string
		totalRequests int
	)

	cmd := &cobra.Command{
		Use:          "stress_test",
		Short:        "Create enrollments concurrently against a running service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if totalRequests <= 0 {
				return fmt.Errorf("-n must be positive")
			}
			run(cmd.OutOrStdout(), http.DefaultClient, baseURL, totalRequests)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "enrollment service base URL")
	cmd.Flags().IntVarP(&totalRequests, "requests", "n", 50, "number of enrollments to create")

	return cmd
}

// run fires totalRequests concurrent POST /enrollments and returns how many were created.
func run(out io.Writer, client *http.Client, baseURL string, totalRequests int) int64 {
	start := time.Now()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created atomic.Int64
	)
	logf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	logf("Starting stress test with %d requests...\n", totalRequests)

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			body, _ := json.Marshal(map[string]any{
				"student_id": uuid.New().String()[:8],
				"course_id":  fmt.Sprintf("course-%d", id%5),
				"amount":     100.0,
			})

			resp, err := client.Post(baseURL+"/enrollments", "application/json", bytes.NewReader(body))
			if err != nil {
				logf("Request %d failed: %v\n", id, err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				logf("Request %d: unexpected status %d\n", id, resp.StatusCode)
				return
			}
			created.Add(1)
		}(i)
	}

	wg.Wait()
	logf("Finished %d requests (%d created) in %v\n", totalRequests, created.Load(), time.Since(start))
	return created.Load()
}
