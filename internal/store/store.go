// Package store persists users, products, subscriptions and price history.
//
// The backend is a single SQLite database file. Every method is atomic with
// respect to concurrent callers: the connection pool is capped at one writer
// and each logical operation runs as one statement or one transaction.
package store

import (
	"context"
	"time"
)

// Store is the persistence API used by the monitor and the HTTP layer.
//
// The GetOrCreate* methods are idempotent per their unique key (email, url,
// (user, product)); racing first-time creations resolve to the same row.
type Store interface {
	GetOrCreateUser(ctx context.Context, email, name string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, bool, error)

	GetOrCreateProduct(ctx context.Context, p NewProduct) (Product, error)
	FindProductByURL(ctx context.Context, url string) (Product, bool, error)
	// TouchProduct updates the product's last-checked timestamp.
	TouchProduct(ctx context.Context, productID int64, at time.Time) error

	// GetOrCreateSubscription returns the existing subscription for
	// (userID, productID) if there is one; the target price is only
	// applied on first creation and is immutable afterwards.
	GetOrCreateSubscription(ctx context.Context, userID, productID int64, target *float64) (Subscription, error)
	FindSubscription(ctx context.Context, email, url string) (Subscription, bool, error)
	// SubscriptionTarget reports the current target price of a live
	// subscription. ok is false when the subscription has been removed.
	SubscriptionTarget(ctx context.Context, id int64) (target *float64, ok bool, err error)
	DeleteSubscription(ctx context.Context, id int64) error
	// ActiveSubscriptions lists every subscription whose product is
	// active, for schedule recovery at startup.
	ActiveSubscriptions(ctx context.Context) ([]ActiveSubscription, error)

	AppendPrice(ctx context.Context, productID int64, price float64, at time.Time) error
	// PriceHistory returns the product's history ordered by timestamp
	// ascending.
	PriceHistory(ctx context.Context, productID int64) ([]PricePoint, error)
	PriceHistoryByURL(ctx context.Context, url string) ([]PricePoint, error)

	// TrackedProducts lists a user's products with their latest price.
	TrackedProducts(ctx context.Context, userID int64) ([]TrackedProduct, error)

	Close() error
}

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}
