package runner

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"davhammer/internal/stats"
)

func newTestRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	r := NewRunner(cfg, nil)
	r.Out = io.Discard
	return r
}

func TestRunAllSuccess(t *testing.T) {
	var sawBadRequest bool
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if r.Method != http.MethodHead || !ok || user != "alice" || pass != "secret" ||
			r.Header.Get("User-Agent") != "test-agent" {
			mu.Lock()
			sawBadRequest = true
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := newTestRunner(t, Config{
		TargetBaseURL: srv.URL,
		Username:      "alice",
		Password:      "secret",
		UserAgent:     "test-agent",
		RequestCount:  10,
		Concurrency:   2,
	})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := r.Stats.Snapshot()
	if snap.Success != 10 || snap.Fail != 0 {
		t.Errorf("success = %d, fail = %d, want 10, 0", snap.Success, snap.Fail)
	}
	if snap.StatusCounts["200"] != 10 {
		t.Errorf("counts[200] = %d, want 10", snap.StatusCounts["200"])
	}
	if sawBadRequest {
		t.Error("server saw a request with wrong method, credentials or user agent")
	}
}

func TestNonSuccessStatusIsNotFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	r := newTestRunner(t, Config{
		TargetBaseURL: srv.URL,
		Username:      "wrong",
		Password:      "wrong",
		RequestCount:  5,
		Concurrency:   2,
	})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := r.Stats.Snapshot()
	if snap.Success != 5 || snap.Fail != 0 {
		t.Errorf("success = %d, fail = %d, want 5, 0", snap.Success, snap.Fail)
	}
	if snap.StatusCounts["401"] != 5 {
		t.Errorf("counts[401] = %d, want 5", snap.StatusCounts["401"])
	}
}

func TestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // nobody listening anymore

	r := newTestRunner(t, Config{
		TargetBaseURL: url,
		Username:      "alice",
		Password:      "secret",
		RequestCount:  4,
		Concurrency:   2,
	})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := r.Stats.Snapshot()
	if snap.Success != 0 || snap.Fail != 4 {
		t.Errorf("success = %d, fail = %d, want 0, 4", snap.Success, snap.Fail)
	}
	if snap.StatusCounts[stats.LabelNetworkError] != 4 {
		t.Errorf("counts[NetworkError] = %d, want 4", snap.StatusCounts[stats.LabelNetworkError])
	}
}

func TestConcurrencyBound(t *testing.T) {
	const bound = 5

	var mu sync.Mutex
	var current, peak int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		current--
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := newTestRunner(t, Config{
		TargetBaseURL: srv.URL,
		Username:      "alice",
		Password:      "secret",
		RequestCount:  40,
		Concurrency:   bound,
	})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if r.Stats.Completed() != 40 {
		t.Errorf("completed = %d, want 40", r.Stats.Completed())
	}
	if peak > bound {
		t.Errorf("peak in-flight = %d, exceeds bound %d", peak, bound)
	}
}

func TestPacingThrottlesSubmissions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := newTestRunner(t, Config{
		TargetBaseURL: srv.URL,
		Username:      "alice",
		Password:      "secret",
		RequestCount:  6,
		Concurrency:   6,
		PaceEvery:     2,
		PacePause:     50 * time.Millisecond,
	})

	start := time.Now()
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	elapsed := time.Since(start)

	// Pauses after submissions 2, 4 and 6 must stall the dispatch loop.
	if elapsed < 140*time.Millisecond {
		t.Errorf("run finished in %s, pacing pauses were not applied", elapsed)
	}
	if got := r.Stats.Completed(); got != 6 {
		t.Errorf("completed = %d, want 6", got)
	}
}

func TestTargetURLShape(t *testing.T) {
	r := newTestRunner(t, Config{
		TargetBaseURL: "http://example.test/",
		Username:      "alice",
		Password:      "secret",
		RequestCount:  1,
		Concurrency:   1,
	})

	re := regexp.MustCompile(`^http://example\.test/evidence/[0-9A-F]{2}$`)
	for i := 0; i < 64; i++ {
		if u := r.targetURL(); !re.MatchString(u) {
			t.Fatalf("targetURL() = %q, want match for %s", u, re)
		}
	}
}

type fakeTimeoutErr struct{}

func (fakeTimeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (fakeTimeoutErr) Timeout() bool   { return true }
func (fakeTimeoutErr) Temporary() bool { return true }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"connect timeout", fakeTimeoutErr{}, stats.LabelTimeout},
		{"wrapped deadline", context.DeadlineExceeded, stats.LabelTimeout},
		{"refused connection", errors.New("connect: connection refused"), stats.LabelNetworkError},
		{"dns failure", errors.New("lookup nosuchhost: no such host"), stats.LabelNetworkError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.err); got != tt.want {
				t.Errorf("classifyError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
