package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vishn-ui/tracker/internal/fetch"
	"github.com/vishn-ui/tracker/internal/notify"
	"github.com/vishn-ui/tracker/internal/store"
	"github.com/vishn-ui/tracker/pkg/logx"
)

// ErrProductUnavailable is returned by Track when the creation-time fetch
// fails. The subscription is not created: a URL we cannot read once is not
// worth polling every hour.
var ErrProductUnavailable = errors.New("monitor: could not retrieve product details")

type TrackRequest struct {
	Email       string
	Name        string
	URL         string
	TargetPrice *float64
}

type TrackResult struct {
	SubscriptionID int64
	Product        store.Product
	Price          float64
}

// Track starts monitoring a product for a user: fetch the product now,
// create the user/product/subscription records as needed, record the first
// price, send a confirmation, and install the recurring job.
//
// Tracking an already-tracked (user, url) pair returns the existing
// subscription; its target price is not changed.
func (s *Service) Track(ctx context.Context, req TrackRequest) (TrackResult, error) {
	if strings.TrimSpace(req.Email) == "" {
		return TrackResult{}, errors.New("email is required")
	}
	if strings.TrimSpace(req.URL) == "" {
		return TrackResult{}, errors.New("url is required")
	}

	snap, err := s.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		if errors.Is(err, fetch.ErrUnavailable) {
			return TrackResult{}, fmt.Errorf("%w: %s", ErrProductUnavailable, req.URL)
		}
		return TrackResult{}, err
	}

	user, err := s.store.GetOrCreateUser(ctx, req.Email, req.Name)
	if err != nil {
		return TrackResult{}, fmt.Errorf("create user: %w", err)
	}
	product, err := s.store.GetOrCreateProduct(ctx, store.NewProduct{
		URL:      req.URL,
		Title:    snap.Title,
		ImageURL: snap.ImageURL,
		Platform: fetch.Platform(req.URL),
	})
	if err != nil {
		return TrackResult{}, fmt.Errorf("create product: %w", err)
	}
	sub, err := s.store.GetOrCreateSubscription(ctx, user.ID, product.ID, req.TargetPrice)
	if err != nil {
		return TrackResult{}, fmt.Errorf("create subscription: %w", err)
	}
	if err := s.store.AppendPrice(ctx, product.ID, snap.Price, time.Now()); err != nil {
		return TrackResult{}, fmt.Errorf("record initial price: %w", err)
	}

	if err := s.notifier.Notify(ctx, notify.FormatTracking(snap.Title, snap.Price, req.URL, product.Platform)); err != nil {
		s.log.Warn("tracking confirmation dispatch failed", logx.Err(err))
	}

	if err := s.Schedule(Job{SubscriptionID: sub.ID, ProductID: product.ID, URL: req.URL}); err != nil {
		return TrackResult{}, fmt.Errorf("schedule checks: %w", err)
	}

	s.log.Info("product tracked",
		logx.Int64("subscription_id", sub.ID),
		logx.String("url", req.URL),
		logx.Float64("price", snap.Price),
	)
	return TrackResult{SubscriptionID: sub.ID, Product: product, Price: snap.Price}, nil
}

// Untrack stops monitoring a (user, url) pair: the job is cancelled before
// the subscription row is deleted, so no new tick starts for it afterwards.
// An unknown pair is a no-op.
func (s *Service) Untrack(ctx context.Context, email, url string) error {
	sub, ok, err := s.store.FindSubscription(ctx, email, url)
	if err != nil {
		return fmt.Errorf("find subscription: %w", err)
	}
	if !ok {
		return nil
	}

	s.Cancel(sub.ID)

	if err := s.store.DeleteSubscription(ctx, sub.ID); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	s.log.Info("product untracked",
		logx.Int64("subscription_id", sub.ID),
		logx.String("url", url),
	)
	return nil
}
