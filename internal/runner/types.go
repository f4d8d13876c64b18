package runner

import (
	"time"
)

const (
	DefaultRequestCount   = 200000
	DefaultConcurrency    = 100
	DefaultUserAgent      = "davhammer/1.0 (WebDAV stress tester)"
	DefaultConnectTimeout = 5 * time.Second
	DefaultPacePause      = 1 * time.Second
	DefaultPaceEvery      = 10000

	progressEvery = 1000
)

type Config struct {
	TargetBaseURL string
	Username      string
	Password      string
	RequestCount  int
	Concurrency   int
	UserAgent     string

	// Connect-phase timeout only; the request has no overall deadline.
	ConnectTimeout time.Duration

	// Submission pacing: after every PaceEvery-th submission, stall new
	// admissions for PacePause. In-flight requests keep running.
	PaceEvery int
	PacePause time.Duration
}

// StatsSnapshot is sent over the channel
type StatsSnapshot struct {
	Submitted uint64
	Completed uint64
	Success   uint64
	Fail      uint64
	Inflight  int64

	// Pre-calculated percentiles for the UI (cheap copy)
	P50Ms float64
	P90Ms float64
	P99Ms float64
	MaxMs int64
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot
