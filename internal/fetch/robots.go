package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/vishn-ui/tracker/pkg/logx"
)

// robotsGate refuses to fetch URLs disallowed by the site's robots.txt.
// A disallowed URL is reported as ErrUnavailable; an unreachable or broken
// robots.txt allows the fetch.
type robotsGate struct {
	next      Fetcher
	checker   *robotsChecker
	userAgent string
	log       logx.Logger
}

func (g *robotsGate) Fetch(ctx context.Context, rawURL string) (Snapshot, error) {
	allowed, err := g.checker.isAllowed(ctx, g.userAgent, rawURL)
	if err != nil {
		g.log.Debug("robots check failed; allowing fetch", logx.String("url", rawURL), logx.Err(err))
	} else if !allowed {
		return Snapshot{}, fmt.Errorf("%w: disallowed by robots.txt", ErrUnavailable)
	}
	return g.next.Fetch(ctx, rawURL)
}

// robotsChecker caches robots.txt rules per origin.
type robotsChecker struct {
	mu     sync.RWMutex
	rules  map[string]*robotstxt.RobotsData
	expiry map[string]time.Time

	client   *http.Client
	cacheTTL time.Duration
}

func newRobotsChecker() *robotsChecker {
	return &robotsChecker{
		rules:    make(map[string]*robotstxt.RobotsData),
		expiry:   make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		cacheTTL: time.Hour,
	}
}

func (r *robotsChecker) isAllowed(ctx context.Context, userAgent, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, err
	}
	origin := u.Scheme + "://" + u.Host

	data, err := r.get(ctx, origin)
	if err != nil {
		return true, err
	}
	return data.FindGroup(userAgent).Test(u.Path), nil
}

func (r *robotsChecker) get(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, ok := r.rules[origin]
	exp := r.expiry[origin]
	r.mu.RUnlock()
	if ok && time.Now().Before(exp) {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	data, err = robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.rules[origin] = data
	r.expiry[origin] = time.Now().Add(r.cacheTTL)
	r.mu.Unlock()
	return data, nil
}
