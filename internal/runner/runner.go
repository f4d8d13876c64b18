package runner

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"davhammer/internal/stats"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Runner drives a full run: it generates one HEAD request per index, admits
// each through the concurrency gate, and joins on all of them before
// returning with Stats fully populated.
type Runner struct {
	Cfg    Config
	ID     string
	Stats  *stats.Stats
	Client *http.Client

	// Progress line destination. The live TUI points this at io.Discard.
	Out io.Writer

	gate      *semaphore.Weighted
	inflight  int64
	submitted uint64

	// Event Channel
	Updates StatsUpdateChan
}

func NewRunner(cfg Config, updates StatsUpdateChan) *Runner {
	cfg.TargetBaseURL = strings.TrimRight(cfg.TargetBaseURL, "/")
	if cfg.RequestCount <= 0 {
		cfg.RequestCount = DefaultRequestCount
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.PaceEvery <= 0 {
		cfg.PaceEvery = DefaultPaceEvery
	}
	if cfg.PacePause <= 0 {
		cfg.PacePause = DefaultPacePause
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	t.DialContext = (&net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	// No Client.Timeout: only the connect phase is bounded, a connected
	// request may take as long as the server needs.
	client := &http.Client{Transport: t}

	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(StatsUpdateChan, 10)
	}

	return &Runner{
		Cfg:     cfg,
		ID:      uuid.New().String(),
		Stats:   stats.New(uint64(cfg.RequestCount)),
		Client:  client,
		Out:     os.Stdout,
		gate:    semaphore.NewWeighted(int64(cfg.Concurrency)),
		Updates: updates,
	}
}

// StartTickLoop starts a goroutine that pushes stats updates
func (r *Runner) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sendUpdate()
			}
		}
	}()
}

func (r *Runner) sendUpdate() {
	success, fail := r.Stats.Counts()
	s := StatsSnapshot{
		Submitted: atomic.LoadUint64(&r.submitted),
		Completed: success + fail,
		Success:   success,
		Fail:      fail,
		Inflight:  atomic.LoadInt64(&r.inflight),
		P50Ms:     r.Stats.GetP50(),
		P90Ms:     r.Stats.GetP90(),
		P99Ms:     r.Stats.GetP99(),
		MaxMs:     r.Stats.MaxMs(),
	}

	// Non-blocking send
	select {
	case r.Updates <- s:
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}

// Run submits RequestCount requests through the gate and waits for every one
// of them to complete. The report must not be produced before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	r.StartTickLoop(ctx, 200*time.Millisecond)

	total := r.Cfg.RequestCount
	var wg sync.WaitGroup

	for i := 0; i < total; i++ {
		// Acquiring before spawning keeps the goroutine count bounded and
		// makes the pacing pause below throttle actual admissions, not just
		// task construction.
		if err := r.gate.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return err
		}

		url := r.targetURL()
		atomic.AddUint64(&r.submitted, 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer r.gate.Release(1)
			r.executeRequest(url)
		}()

		n := i + 1
		if n%r.Cfg.PaceEvery == 0 {
			fmt.Fprintf(r.Out, "\rProgress: %d/%d requests processed. Pausing for %s...", n, total, r.Cfg.PacePause)
			select {
			case <-ctx.Done():
				wg.Wait()
				return ctx.Err()
			case <-time.After(r.Cfg.PacePause):
			}
		} else if n%progressEvery == 0 || n == total {
			fmt.Fprintf(r.Out, "\rProgress: %d/%d requests processed.", n, total)
		}
	}

	wg.Wait()
	r.sendUpdate()
	return nil
}

// executeRequest performs one HEAD call end-to-end and records exactly one
// outcome, whatever branch is taken.
func (r *Runner) executeRequest(url string) {
	atomic.AddInt64(&r.inflight, 1)
	defer atomic.AddInt64(&r.inflight, -1)

	start := time.Now()

	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		r.Stats.Record(stats.LabelNetworkError, false, time.Since(start))
		return
	}
	req.SetBasicAuth(r.Cfg.Username, r.Cfg.Password)
	req.Header.Set("User-Agent", r.Cfg.UserAgent)

	resp, err := r.Client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		r.Stats.Record(classifyError(err), false, elapsed)
		return
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	// Any response counts as a success, whatever the code. Only transport
	// failures are failures.
	r.Stats.Record(strconv.Itoa(resp.StatusCode), true, elapsed)
}

// classifyError maps a transport error to its outcome label.
func classifyError(err error) string {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return stats.LabelTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return stats.LabelTimeout
	}
	return stats.LabelNetworkError
}

// targetURL spreads requests across 256 nominal evidence paths.
func (r *Runner) targetURL() string {
	return fmt.Sprintf("%s/evidence/%02X", r.Cfg.TargetBaseURL, rand.Intn(256))
}

func (r *Runner) GetInflight() int64 {
	return atomic.LoadInt64(&r.inflight)
}

func (r *Runner) GetSubmitted() uint64 {
	return atomic.LoadUint64(&r.submitted)
}
