package monitor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/vishn-ui/tracker/internal/store"
	"github.com/vishn-ui/tracker/pkg/logx"
)

func startedService(t *testing.T, st *memStore, f *fakeFetcher, n *recordingNotifier) *Service {
	t.Helper()
	svc := newTestService(st, f, n)
	svc.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		svc.Stop(ctx)
	})
	return svc
}

func TestScheduleReplacesExisting(t *testing.T) {
	st := newMemStore()
	svc := startedService(t, st, &fakeFetcher{}, &recordingNotifier{})
	job := seedSubscription(t, st, ptr(90))

	if err := svc.Schedule(job); err != nil {
		t.Fatal(err)
	}
	if err := svc.Schedule(job); err != nil {
		t.Fatal(err)
	}
	if got := svc.JobCount(); got != 1 {
		t.Fatalf("redundant scheduling must replace, not duplicate: %d jobs", got)
	}
}

func TestScheduleBeforeStart(t *testing.T) {
	svc := newTestService(newMemStore(), &fakeFetcher{}, &recordingNotifier{})
	err := svc.Schedule(Job{SubscriptionID: 1, ProductID: 1, URL: "https://example.com"})
	if err == nil {
		t.Fatal("expected an error before Start")
	}
}

func TestCancelRemovesJob(t *testing.T) {
	st := newMemStore()
	svc := startedService(t, st, &fakeFetcher{}, &recordingNotifier{})
	job := seedSubscription(t, st, nil)

	if err := svc.Schedule(job); err != nil {
		t.Fatal(err)
	}
	svc.Cancel(job.SubscriptionID)
	if svc.Scheduled(job.SubscriptionID) {
		t.Fatal("job still registered after cancel")
	}
	if got := svc.JobCount(); got != 0 {
		t.Fatalf("expected 0 jobs, got %d", got)
	}
	svc.mu.Lock()
	entries := len(svc.cron.Entries())
	svc.mu.Unlock()
	if entries != 0 {
		t.Fatalf("timer still installed after cancel: %d entries", entries)
	}
}

// TestCancelHaltsFutureTicks runs a real 1-second schedule and verifies no
// tick starts once Cancel has returned.
func TestCancelHaltsFutureTicks(t *testing.T) {
	if testing.Short() {
		t.Skip("timer test")
	}
	st := newMemStore()
	f := &fakeFetcher{}
	n := &recordingNotifier{}
	svc := New(Config{Interval: time.Second}, st, f, n, logx.Nop())
	svc.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		svc.Stop(ctx)
	})
	job := seedSubscription(t, st, nil)
	for i := 0; i < 10; i++ {
		f.push(100)
	}

	if err := svc.Schedule(job); err != nil {
		t.Fatal(err)
	}
	time.Sleep(1500 * time.Millisecond)
	svc.Cancel(job.SubscriptionID)
	// An execution already in flight at cancel time may still complete;
	// give it a moment before taking the baseline.
	time.Sleep(300 * time.Millisecond)

	hist, _ := st.PriceHistory(context.Background(), job.ProductID)
	before := len(hist)
	if before == 0 {
		t.Fatal("expected at least one tick before cancellation")
	}

	time.Sleep(2500 * time.Millisecond)
	hist, _ = st.PriceHistory(context.Background(), job.ProductID)
	if len(hist) != before {
		t.Fatalf("ticks continued after cancel: %d -> %d entries", before, len(hist))
	}
}

func TestCancelUnknownIsNoop(t *testing.T) {
	svc := startedService(t, newMemStore(), &fakeFetcher{}, &recordingNotifier{})
	svc.Cancel(12345) // must not panic or error
	if got := svc.JobCount(); got != 0 {
		t.Fatalf("expected 0 jobs, got %d", got)
	}
}

func TestRecoverRestoresSchedule(t *testing.T) {
	st := newMemStore()
	svc := startedService(t, st, &fakeFetcher{}, &recordingNotifier{})

	ctx := context.Background()
	const k = 5
	for i := 0; i < k; i++ {
		u, _ := st.GetOrCreateUser(ctx, fmt.Sprintf("user%d@example.com", i), "")
		p, _ := st.GetOrCreateProduct(ctx, store.NewProduct{
			URL:   fmt.Sprintf("https://amazon.com/dp/%d", i),
			Title: "Widget",
		})
		if _, err := st.GetOrCreateSubscription(ctx, u.ID, p.ID, ptr(50)); err != nil {
			t.Fatal(err)
		}
	}

	if err := svc.Recover(ctx); err != nil {
		t.Fatal(err)
	}
	if got := svc.JobCount(); got != k {
		t.Fatalf("expected %d jobs after recovery, got %d", k, got)
	}

	// Recovery is idempotent: running it again replaces, never duplicates.
	if err := svc.Recover(ctx); err != nil {
		t.Fatal(err)
	}
	if got := svc.JobCount(); got != k {
		t.Fatalf("expected %d jobs after repeated recovery, got %d", k, got)
	}
}

func TestTrackIsIdempotent(t *testing.T) {
	st := newMemStore()
	f := &fakeFetcher{}
	svc := startedService(t, st, f, &recordingNotifier{})

	req := TrackRequest{
		Email:       "alice@example.com",
		URL:         "https://amazon.com/dp/42",
		TargetPrice: ptr(25),
	}

	f.push(30)
	first, err := svc.Track(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	f.push(29)
	second, err := svc.Track(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if first.SubscriptionID != second.SubscriptionID {
		t.Fatalf("subscription ids differ: %d vs %d", first.SubscriptionID, second.SubscriptionID)
	}
	if got := len(st.subs); got != 1 {
		t.Fatalf("expected 1 subscription row, got %d", got)
	}
	if got := svc.JobCount(); got != 1 {
		t.Fatalf("expected 1 job, got %d", got)
	}
}

func TestTrackFailsWhenFetchFails(t *testing.T) {
	st := newMemStore()
	f := &fakeFetcher{} // empty queue yields ErrUnavailable
	svc := startedService(t, st, f, &recordingNotifier{})

	_, err := svc.Track(context.Background(), TrackRequest{
		Email: "alice@example.com",
		URL:   "https://amazon.com/dp/1",
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := len(st.subs); got != 0 {
		t.Fatalf("no subscription must be created on fetch failure, got %d", got)
	}
	if got := svc.JobCount(); got != 0 {
		t.Fatalf("no job must be scheduled on fetch failure, got %d", got)
	}
}

func TestUntrackCancelsAndDeletes(t *testing.T) {
	st := newMemStore()
	f := &fakeFetcher{}
	svc := startedService(t, st, f, &recordingNotifier{})

	f.push(30)
	res, err := svc.Track(context.Background(), TrackRequest{
		Email: "alice@example.com",
		URL:   "https://amazon.com/dp/42",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Untrack(context.Background(), "alice@example.com", "https://amazon.com/dp/42"); err != nil {
		t.Fatal(err)
	}
	if svc.Scheduled(res.SubscriptionID) {
		t.Fatal("job must be cancelled after untrack")
	}
	if got := len(st.subs); got != 0 {
		t.Fatalf("subscription row must be deleted, got %d", got)
	}

	// Untracking again is a no-op.
	if err := svc.Untrack(context.Background(), "alice@example.com", "https://amazon.com/dp/42"); err != nil {
		t.Fatalf("repeated untrack must succeed: %v", err)
	}
}
