package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vishn-ui/tracker/internal/fetch"
	"github.com/vishn-ui/tracker/internal/monitor"
	"github.com/vishn-ui/tracker/internal/notify"
	"github.com/vishn-ui/tracker/internal/store"
	"github.com/vishn-ui/tracker/pkg/logx"
)

// stubFetcher serves a fixed snapshot per URL; unknown URLs fail.
type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]fetch.Snapshot
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (fetch.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.pages[url]
	if !ok {
		return fetch.Snapshot{}, fmt.Errorf("%w: no such page", fetch.ErrUnavailable)
	}
	return snap, nil
}

func newTestServer(t *testing.T) (*Server, *stubFetcher) {
	t.Helper()
	st, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "tracker.db")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	f := &stubFetcher{pages: map[string]fetch.Snapshot{}}
	mon := monitor.New(monitor.Config{Interval: time.Hour}, st, f, notify.Nop(), logx.Nop())
	mon.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mon.Stop(ctx)
	})

	return New(Config{}, st, mon, logx.Nop()), f
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTrackEndpoint(t *testing.T) {
	s, f := newTestServer(t)
	f.pages["https://amazon.com/dp/1"] = fetch.Snapshot{Title: "Widget", Price: 99.99}

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/track", map[string]any{
		"email":        "alice@example.com",
		"url":          "https://amazon.com/dp/1",
		"target_price": 80,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp trackResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.SubscriptionID == 0 || resp.Title != "Widget" || resp.Price != 99.99 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Platform != "Amazon" {
		t.Fatalf("platform = %q", resp.Platform)
	}

	// Same pair again: same subscription id.
	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/track", map[string]any{
		"email": "alice@example.com",
		"url":   "https://amazon.com/dp/1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	var again trackResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &again)
	if again.SubscriptionID != resp.SubscriptionID {
		t.Fatalf("subscription id changed: %d vs %d", again.SubscriptionID, resp.SubscriptionID)
	}
}

func TestTrackFetchFailure(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/track", map[string]any{
		"email": "alice@example.com",
		"url":   "https://amazon.com/dp/broken",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	// The failed attempt must not have created anything to list.
	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/products?email=alice@example.com", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var products []productEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &products); err != nil {
		t.Fatal(err)
	}
	if len(products) != 0 {
		t.Fatalf("expected no products, got %v", products)
	}
}

func TestTrackValidation(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/track", map[string]any{"email": "a@b.c"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProductsListing(t *testing.T) {
	s, f := newTestServer(t)
	f.pages["https://ebay.com/itm/7"] = fetch.Snapshot{Title: "Gadget", Price: 45.50}

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/track", map[string]any{
		"email":        "bob@example.com",
		"url":          "https://ebay.com/itm/7",
		"target_price": 40,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("track status = %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/products?email=bob@example.com", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var products []productEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &products); err != nil {
		t.Fatal(err)
	}
	if len(products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(products))
	}
	p := products[0]
	if p.Title != "Gadget" || p.Platform != "eBay" {
		t.Fatalf("unexpected product: %+v", p)
	}
	if p.CurrentPrice == nil || *p.CurrentPrice != 45.50 {
		t.Fatalf("current price = %v", p.CurrentPrice)
	}
	if p.TargetPrice == nil || *p.TargetPrice != 40 {
		t.Fatalf("target price = %v", p.TargetPrice)
	}
}

func TestPriceHistoryEndpoint(t *testing.T) {
	s, f := newTestServer(t)
	f.pages["https://amazon.com/dp/9"] = fetch.Snapshot{Title: "Widget", Price: 10}

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/price-history", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing url must be a 400, got %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/track", map[string]any{
		"email": "alice@example.com",
		"url":   "https://amazon.com/dp/9",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("track status = %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/price-history?url=https://amazon.com/dp/9", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var hist []historyEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].Price != 10 {
		t.Fatalf("unexpected history: %v", hist)
	}
}

func TestUntrackEndpoint(t *testing.T) {
	s, f := newTestServer(t)
	f.pages["https://amazon.com/dp/1"] = fetch.Snapshot{Title: "Widget", Price: 10}

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/track", map[string]any{
		"email": "alice@example.com",
		"url":   "https://amazon.com/dp/1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("track status = %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/untrack", map[string]any{
		"email": "alice@example.com",
		"url":   "https://amazon.com/dp/1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("untrack status = %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/products?email=alice@example.com", nil)
	var products []productEntry
	_ = json.Unmarshal(rec.Body.Bytes(), &products)
	if len(products) != 0 {
		t.Fatalf("expected no products after untrack, got %v", products)
	}

	// Unknown pair is a no-op success.
	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/untrack", map[string]any{
		"email": "nobody@example.com",
		"url":   "https://amazon.com/dp/1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("untrack of unknown pair = %d", rec.Code)
	}
}
