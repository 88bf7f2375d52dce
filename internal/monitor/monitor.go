// Package monitor runs the recurring price checks.
//
// One recurring job exists per live subscription, keyed by subscription id.
// The registry is rebuilt from the store on startup (Recover); in-memory
// schedules do not survive a restart and the store is the source of truth
// for what should be scheduled.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vishn-ui/tracker/internal/fetch"
	"github.com/vishn-ui/tracker/internal/notify"
	"github.com/vishn-ui/tracker/internal/store"
	"github.com/vishn-ui/tracker/pkg/logx"
)

var ErrNotStarted = errors.New("monitor: not started")

// Config tunes the recurring checks.
type Config struct {
	// Interval between checks for each subscription. Each job's schedule
	// is phased from the moment it was added, so jobs added at different
	// times do not all fire at once.
	Interval time.Duration
	// CheckTimeout bounds one full check cycle (fetch + persist + notify).
	CheckTimeout time.Duration
}

// Job identifies one subscription's recurring check.
type Job struct {
	SubscriptionID int64
	ProductID      int64
	URL            string
}

func (j Job) key() string { return fmt.Sprintf("price_check_%d", j.SubscriptionID) }

// Service owns the scheduler and the job registry. Constructed once at
// startup, populated by Recover, torn down by Stop; callers hold a
// reference rather than reaching for process-global state.
type Service struct {
	log      logx.Logger
	store    store.Store
	fetcher  fetch.Fetcher
	notifier notify.Notifier

	interval     time.Duration
	checkTimeout time.Duration

	mu   sync.Mutex
	cron *cron.Cron
	jobs map[int64]cron.EntryID
}

func New(cfg Config, st store.Store, f fetch.Fetcher, n notify.Notifier, log logx.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 2 * time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if n == nil {
		n = notify.Nop()
	}
	return &Service{
		log:          log,
		store:        st,
		fetcher:      f,
		notifier:     n,
		interval:     cfg.Interval,
		checkTimeout: cfg.CheckTimeout,
		jobs:         map[int64]cron.EntryID{},
	}
}

// Start launches the scheduler loop. Idempotent.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}
	s.cron = cron.New()
	s.cron.Start()
}

// Stop cancels all timers and waits (bounded by ctx) for in-flight checks
// to finish. No job fires after Stop returns.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.jobs = map[int64]cron.EntryID{}
	s.mu.Unlock()
	if c == nil {
		return
	}
	done := c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("monitor stop timed out with checks in flight")
	}
}

// Schedule installs the recurring check for a subscription. An existing job
// under the same subscription id is atomically replaced, which makes the
// call idempotent and safe to repeat during restart recovery.
func (s *Service) Schedule(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return ErrNotStarted
	}
	if old, ok := s.jobs[job.SubscriptionID]; ok {
		s.cron.Remove(old)
	}
	id := s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.runJob(job)
	}))
	s.jobs[job.SubscriptionID] = id
	s.log.Debug("job scheduled",
		logx.String("job", job.key()),
		logx.Duration("interval", s.interval),
	)
	return nil
}

// Cancel removes and stops the subscription's job. Cancelling a job that
// was never scheduled is a no-op: subscriptions may be removed without
// having ever successfully scheduled.
func (s *Service) Cancel(subscriptionID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.jobs[subscriptionID]
	if !ok {
		return
	}
	delete(s.jobs, subscriptionID)
	if s.cron != nil {
		s.cron.Remove(id)
	}
	s.log.Debug("job cancelled", logx.Int64("subscription_id", subscriptionID))
}

// Recover reinstalls one job per active subscription read from the store.
// A failure to schedule one subscription does not prevent the rest; all
// failures are joined into the returned error.
func (s *Service) Recover(ctx context.Context) error {
	subs, err := s.store.ActiveSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list active subscriptions: %w", err)
	}

	var errs []error
	for _, sub := range subs {
		job := Job{
			SubscriptionID: sub.SubscriptionID,
			ProductID:      sub.ProductID,
			URL:            sub.URL,
		}
		if err := s.Schedule(job); err != nil {
			s.log.Error("recovery: scheduling failed",
				logx.String("job", job.key()),
				logx.Err(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", job.key(), err))
		}
	}
	s.log.Info("schedule recovered",
		logx.Int("subscriptions", len(subs)),
		logx.Int("failed", len(errs)),
	)
	return errors.Join(errs...)
}

// JobCount reports how many jobs are currently registered.
func (s *Service) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Scheduled reports whether a job is registered for the subscription.
func (s *Service) Scheduled(subscriptionID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[subscriptionID]
	return ok
}

// runJob is the task boundary: panics and errors inside one check must
// never reach the scheduler loop or disturb other jobs.
func (s *Service) runJob(job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("check panicked",
				logx.String("job", job.key()),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.checkTimeout)
	defer cancel()

	if err := s.check(ctx, job); err != nil {
		s.log.Warn("check failed", logx.String("job", job.key()), logx.Err(err))
	}
}
