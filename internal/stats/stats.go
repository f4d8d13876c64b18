package stats

import (
	"sort"
	"sync"
	"time"
)

// Outcome labels for requests that never produced an HTTP response.
// Responses are recorded under their decimal status code string.
const (
	LabelNetworkError = "NetworkError"
	LabelTimeout      = "Timeout"
)

// Stats holds the shared aggregate for one run. Every completed request
// performs exactly one Record call; the counter increment, the outcome-label
// increment and the latency append happen inside a single critical section so
// observers always see a consistent view.
type Stats struct {
	TotalRequests uint64

	mu           sync.Mutex
	success      uint64
	fail         uint64
	statusCounts map[string]uint64
	latencies    []float64 // seconds, append order = completion order

	// Latency histogram (microseconds) for percentile reporting
	Latency *SafeHistogram
}

func New(total uint64) *Stats {
	return &Stats{
		TotalRequests: total,
		statusCounts:  make(map[string]uint64),
		latencies:     make([]float64, 0, total),
		Latency:       NewSafeHistogram(),
	}
}

// Record folds one completed request into the aggregate.
func (s *Stats) Record(label string, success bool, elapsed time.Duration) {
	s.mu.Lock()
	if success {
		s.success++
	} else {
		s.fail++
	}
	s.statusCounts[label]++
	s.latencies = append(s.latencies, elapsed.Seconds())
	s.mu.Unlock()

	s.Latency.RecordValue(elapsed.Microseconds())
}

// Completed returns how many requests have fully finished, success or failure.
func (s *Stats) Completed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.success + s.fail
}

func (s *Stats) Counts() (success, fail uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.success, s.fail
}

// Snapshot is a consistent copy of the aggregate, safe to read while
// executors are still recording.
type Snapshot struct {
	TotalRequests uint64
	Success       uint64
	Fail          uint64
	StatusCounts  map[string]uint64
	Latencies     []float64
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]uint64, len(s.statusCounts))
	for k, v := range s.statusCounts {
		counts[k] = v
	}
	lat := make([]float64, len(s.latencies))
	copy(lat, s.latencies)

	return Snapshot{
		TotalRequests: s.TotalRequests,
		Success:       s.success,
		Fail:          s.fail,
		StatusCounts:  counts,
		Latencies:     lat,
	}
}

// SortedLabels returns the outcome labels in ascending string order, the
// order the distribution is printed in. Status codes sort as their decimal
// strings, so "200" < "404" < "NetworkError" < "Timeout".
func (snap Snapshot) SortedLabels() []string {
	labels := make([]string, 0, len(snap.StatusCounts))
	for label := range snap.StatusCounts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func (s *Stats) GetP50() float64 {
	return float64(s.Latency.ValueAtQuantile(50)) / 1000.0 // ms
}

func (s *Stats) GetP90() float64 {
	return float64(s.Latency.ValueAtQuantile(90)) / 1000.0
}

func (s *Stats) GetP99() float64 {
	return float64(s.Latency.ValueAtQuantile(99)) / 1000.0
}

func (s *Stats) MaxMs() int64 {
	return s.Latency.Max() / 1000
}
