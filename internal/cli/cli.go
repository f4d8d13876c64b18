package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"davhammer/internal/runner"
	"davhammer/internal/stats"
)

// Start runs a headless stress test and prints the report when every request
// has completed.
func Start(cfg runner.Config) error {
	updates := make(runner.StatsUpdateChan, 100)
	r := runner.NewRunner(cfg, updates)

	PrintHeader(os.Stdout, r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Drain updates so the tick loop's buffer never fills with stale data.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-updates:
			}
		}
	}()

	start := time.Now()
	if err := r.Run(ctx); err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}

	WriteSummary(os.Stdout, r.Stats, time.Since(start))
	return nil
}

func PrintHeader(w io.Writer, r *runner.Runner) {
	cfg := r.Cfg
	fmt.Fprintf(w, "\n🚀 STARTING WEBDAV HEAD STRESS TEST\n")
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Target Server  : %s\n", cfg.TargetBaseURL)
	fmt.Fprintf(w, "Total Requests : %d\n", cfg.RequestCount)
	fmt.Fprintf(w, "Concurrency    : %d\n", cfg.Concurrency)
	fmt.Fprintf(w, "User-Agent     : %s\n", cfg.UserAgent)
	fmt.Fprintf(w, "Run ID         : %s\n", r.ID)
	fmt.Fprintf(w, "======================================================================\n\n")
}

// WriteSummary renders the final report from the finished aggregate.
func WriteSummary(w io.Writer, st *stats.Stats, totalTime time.Duration) {
	snap := st.Snapshot()

	rps := 0.0
	if totalTime.Seconds() > 0 {
		rps = float64(snap.TotalRequests) / totalTime.Seconds()
	}

	fmt.Fprintf(w, "\n\n📊 STRESS TEST RESULTS\n")
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Total Duration : %.2f seconds\n", totalTime.Seconds())
	fmt.Fprintf(w, "Requests Sent  : %d\n", snap.TotalRequests)
	fmt.Fprintf(w, "Successful     : %d\n", snap.Success)
	fmt.Fprintf(w, "Failed         : %d\n", snap.Fail)
	fmt.Fprintf(w, "Requests/sec   : %.2f\n", rps)

	if st.Latency.TotalCount() > 0 {
		fmt.Fprintf(w, "\n⏱️  RESPONSE TIMES (ms)\n")
		fmt.Fprintf(w, "   P50 : %.2f\n", st.GetP50())
		fmt.Fprintf(w, "   P90 : %.2f\n", st.GetP90())
		fmt.Fprintf(w, "   P99 : %.2f\n", st.GetP99())
		fmt.Fprintf(w, "   Max : %d\n", st.MaxMs())
	}

	fmt.Fprintf(w, "\n📈 STATUS CODE DISTRIBUTION\n")
	for _, label := range snap.SortedLabels() {
		fmt.Fprintf(w, "   %s: %d requests\n", label, snap.StatusCounts[label])
	}
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Test complete.\n")
}
