package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vishn-ui/tracker/internal/fetch"
	"github.com/vishn-ui/tracker/internal/notify"
	"github.com/vishn-ui/tracker/pkg/logx"
)

// check runs one polling cycle for one subscription: fetch, persist,
// evaluate the alert condition, notify.
//
// A failed fetch terminates the cycle without side effects: no history
// entry, no last-checked update, no alert. Transient scraping failures
// must not pollute the history with placeholder prices.
func (s *Service) check(ctx context.Context, job Job) error {
	snap, err := s.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		if errors.Is(err, fetch.ErrUnavailable) {
			s.log.Debug("snapshot unavailable; skipping tick",
				logx.String("job", job.key()),
				logx.Err(err),
			)
			return nil
		}
		return fmt.Errorf("fetch %s: %w", job.URL, err)
	}

	now := time.Now()
	if err := s.store.AppendPrice(ctx, job.ProductID, snap.Price, now); err != nil {
		return fmt.Errorf("append price: %w", err)
	}
	if err := s.store.TouchProduct(ctx, job.ProductID, now); err != nil {
		return fmt.Errorf("touch product: %w", err)
	}

	// Re-read the target each tick. The subscription may have been removed
	// while this check was in flight; that is not an error, the cycle just
	// ends here.
	target, ok, err := s.store.SubscriptionTarget(ctx, job.SubscriptionID)
	if err != nil {
		return fmt.Errorf("read target: %w", err)
	}
	if !ok || target == nil {
		return nil
	}

	history, err := s.store.PriceHistory(ctx, job.ProductID)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	// The first recorded price can never alert: there is no previous entry
	// to cross from.
	if len(history) < 2 {
		return nil
	}

	previous := history[len(history)-2].Price
	current := history[len(history)-1].Price

	// Edge-triggered: fire only on the crossing from above target to
	// at-or-below target, not on every tick spent below it.
	if !(current <= *target && previous > *target) {
		return nil
	}

	s.log.Info("price dropped below target",
		logx.String("job", job.key()),
		logx.Float64("price", current),
		logx.Float64("target", *target),
	)
	msg := notify.FormatPriceAlert(snap.Title, current, job.URL, fetch.Platform(job.URL), *target)
	if err := s.notifier.Notify(ctx, msg); err != nil {
		// Delivery failure never rolls back the committed history writes.
		s.log.Warn("alert dispatch failed", logx.String("job", job.key()), logx.Err(err))
	}
	return nil
}
