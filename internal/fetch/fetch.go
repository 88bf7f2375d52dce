// Package fetch obtains point-in-time product snapshots from retailer pages.
//
// Two implementations are provided: a headless-browser fetcher for pages that
// render their price client-side, and a static fetcher for pages that don't.
// Both are safe for concurrent use and share a token-bucket rate limit so a
// burst of due checks doesn't hammer the retailers.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vishn-ui/tracker/pkg/logx"
)

// ErrUnavailable reports that no usable snapshot could be obtained: the page
// was unreachable, or no title/price was found on it. Callers treat this as
// a transient, recoverable condition.
var ErrUnavailable = errors.New("fetch: snapshot unavailable")

// Snapshot is a point-in-time reading for a product URL.
type Snapshot struct {
	Title    string
	Price    float64
	ImageURL string
}

// Fetcher obtains a best-effort snapshot for a product URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Snapshot, error)
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config selects and tunes the fetcher implementation.
type Config struct {
	Mode          string // "headless" (default) or "static"
	NavTimeout    time.Duration
	UserAgent     string
	RatePerMinute int
	RespectRobots bool
}

// New builds the configured fetcher, wrapped with the shared rate limit and
// an optional robots.txt gate.
func New(cfg Config, log logx.Logger) (Fetcher, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 60 * time.Second
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	var inner Fetcher
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", "headless":
		inner = newHeadless(cfg, log)
	case "static":
		inner = newStatic(cfg, log)
	default:
		return nil, fmt.Errorf("fetch: unknown mode %q", cfg.Mode)
	}

	if cfg.RespectRobots {
		inner = &robotsGate{next: inner, checker: newRobotsChecker(), userAgent: cfg.UserAgent, log: log}
	}
	if cfg.RatePerMinute > 0 {
		inner = &limited{
			next:    inner,
			limiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), 1),
		}
	}
	return inner, nil
}

// limited delays each fetch until the shared token bucket permits it.
type limited struct {
	next    Fetcher
	limiter *rate.Limiter
}

func (l *limited) Fetch(ctx context.Context, url string) (Snapshot, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return l.next.Fetch(ctx, url)
}
