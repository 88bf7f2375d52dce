package store

import "time"

type User struct {
	ID    int64
	Email string
	Name  string
}

type Product struct {
	ID          int64
	URL         string
	Title       string
	ImageURL    string
	Platform    string
	CreatedAt   time.Time
	LastChecked time.Time
	Active      bool
}

// NewProduct carries the fields needed to create a product record.
// The URL is the identity; creation is idempotent per URL.
type NewProduct struct {
	URL      string
	Title    string
	ImageURL string
	Platform string
}

// Subscription links one user to one product, optionally with a target
// price. At most one subscription exists per (user, product) pair.
type Subscription struct {
	ID          int64
	UserID      int64
	ProductID   int64
	TargetPrice *float64
}

// ActiveSubscription is the flattened view used for schedule recovery.
type ActiveSubscription struct {
	SubscriptionID int64
	UserID         int64
	ProductID      int64
	URL            string
	TargetPrice    *float64
}

type PricePoint struct {
	Price float64
	At    time.Time
}

// TrackedProduct is one row of a user's dashboard listing: the product
// joined with the subscription's target and the latest recorded price.
// LatestPrice is nil when no history exists yet.
type TrackedProduct struct {
	Title       string
	URL         string
	ImageURL    string
	Platform    string
	TargetPrice *float64
	LatestPrice *float64
	LastChecked time.Time
}
