package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vishn-ui/tracker/internal/monitor"
	"github.com/vishn-ui/tracker/pkg/logx"
)

type trackRequest struct {
	Email       string   `json:"email"`
	Name        string   `json:"name,omitempty"`
	URL         string   `json:"url"`
	TargetPrice *float64 `json:"target_price,omitempty"`
}

type trackResponse struct {
	SubscriptionID int64   `json:"subscription_id"`
	Title          string  `json:"title"`
	Platform       string  `json:"platform"`
	Price          float64 `json:"price"`
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Email == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, "email and url are required")
		return
	}

	res, err := s.monitor.Track(r.Context(), monitor.TrackRequest{
		Email:       req.Email,
		Name:        req.Name,
		URL:         req.URL,
		TargetPrice: req.TargetPrice,
	})
	if err != nil {
		if errors.Is(err, monitor.ErrProductUnavailable) {
			writeError(w, http.StatusBadGateway, "could not retrieve product details, please check the URL")
			return
		}
		s.log.Error("track failed", logx.String("url", req.URL), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "tracking failed")
		return
	}

	writeJSON(w, http.StatusCreated, trackResponse{
		SubscriptionID: res.SubscriptionID,
		Title:          res.Product.Title,
		Platform:       res.Product.Platform,
		Price:          res.Price,
	})
}

type untrackRequest struct {
	Email string `json:"email"`
	URL   string `json:"url"`
}

func (s *Server) handleUntrack(w http.ResponseWriter, r *http.Request) {
	var req untrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Email == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, "email and url are required")
		return
	}

	if err := s.monitor.Untrack(r.Context(), req.Email, req.URL); err != nil {
		s.log.Error("untrack failed", logx.String("url", req.URL), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "untracking failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type productEntry struct {
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	ImageURL     string     `json:"image_url,omitempty"`
	Platform     string     `json:"platform,omitempty"`
	TargetPrice  *float64   `json:"target_price,omitempty"`
	CurrentPrice *float64   `json:"current_price,omitempty"`
	LastChecked  *time.Time `json:"last_checked,omitempty"`
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email parameter is required")
		return
	}

	user, ok, err := s.store.FindUserByEmail(r.Context(), email)
	if err != nil {
		s.log.Error("user lookup failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, []productEntry{})
		return
	}

	tracked, err := s.store.TrackedProducts(r.Context(), user.ID)
	if err != nil {
		s.log.Error("listing failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}

	out := make([]productEntry, 0, len(tracked))
	for _, t := range tracked {
		e := productEntry{
			Title:        t.Title,
			URL:          t.URL,
			ImageURL:     t.ImageURL,
			Platform:     t.Platform,
			TargetPrice:  t.TargetPrice,
			CurrentPrice: t.LatestPrice,
		}
		if !t.LastChecked.IsZero() {
			lc := t.LastChecked
			e.LastChecked = &lc
		}
		out = append(out, e)
	}
	writeJSON(w, http.StatusOK, out)
}

type historyEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url parameter is required")
		return
	}

	points, err := s.store.PriceHistoryByURL(r.Context(), url)
	if err != nil {
		s.log.Error("history read failed", logx.String("url", url), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "history read failed")
		return
	}

	out := make([]historyEntry, 0, len(points))
	for _, p := range points {
		out = append(out, historyEntry{Timestamp: p.At, Price: p.Price})
	}
	writeJSON(w, http.StatusOK, out)
}
