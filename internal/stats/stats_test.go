package stats

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRecordConservation(t *testing.T) {
	const workers = 8
	const perWorker = 50

	s := New(workers * perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				switch i % 4 {
				case 0:
					s.Record("200", true, 5*time.Millisecond)
				case 1:
					s.Record("404", true, 3*time.Millisecond)
				case 2:
					s.Record(LabelNetworkError, false, time.Millisecond)
				default:
					s.Record(LabelTimeout, false, 5*time.Second)
				}
			}
		}(w)
	}
	wg.Wait()

	snap := s.Snapshot()
	total := uint64(workers * perWorker)

	if snap.Success+snap.Fail != total {
		t.Errorf("success(%d)+fail(%d) = %d, want %d", snap.Success, snap.Fail, snap.Success+snap.Fail, total)
	}

	var sum uint64
	for _, c := range snap.StatusCounts {
		sum += c
	}
	if sum != total {
		t.Errorf("status count sum = %d, want %d", sum, total)
	}

	if uint64(len(snap.Latencies)) != total {
		t.Errorf("len(latencies) = %d, want %d", len(snap.Latencies), total)
	}

	if got := s.Latency.TotalCount(); got != int64(total) {
		t.Errorf("histogram count = %d, want %d", got, total)
	}
}

func TestBookkeepingConsistentMidRun(t *testing.T) {
	const total = 200

	s := New(total)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			s.Record("200", true, time.Millisecond)
			if i%10 == 0 {
				time.Sleep(100 * time.Microsecond)
			}
		}
	}()

	// Every observation, not just the final one, must be internally consistent.
	for {
		snap := s.Snapshot()
		completed := snap.Success + snap.Fail

		if uint64(len(snap.Latencies)) != completed {
			t.Fatalf("observed len(latencies) = %d with %d completed", len(snap.Latencies), completed)
		}
		var sum uint64
		for _, c := range snap.StatusCounts {
			sum += c
		}
		if sum != completed {
			t.Fatalf("observed status sum = %d with %d completed", sum, completed)
		}

		if completed == total {
			break
		}
	}
	<-done
}

func TestSortedLabels(t *testing.T) {
	s := New(13)
	for i := 0; i < 7; i++ {
		s.Record("200", true, time.Millisecond)
	}
	for i := 0; i < 3; i++ {
		s.Record("404", true, time.Millisecond)
	}
	for i := 0; i < 2; i++ {
		s.Record(LabelTimeout, false, time.Millisecond)
	}
	s.Record(LabelNetworkError, false, time.Millisecond)

	got := s.Snapshot().SortedLabels()
	want := []string{"200", "404", LabelNetworkError, LabelTimeout}

	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("sorted labels = %v, want %v", got, want)
	}
}
