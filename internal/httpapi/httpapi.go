// Package httpapi implements the query engine's three public entrypoints:
// GET /search, GET /suggest, and GET /icon. Favicon fetch/proxy and the
// HTML dashboard are out of scope — /icon responds 404 since nothing
// populates an icon cache.
package httpapi

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vigilare/vigilare/internal/config"
	"github.com/vigilare/vigilare/internal/queryengine"
	"github.com/vigilare/vigilare/internal/queryengine/ratewindow"
)

// Server wires the query engine to an HTTP mux.
type Server struct {
	engine *queryengine.Engine
	limit  *ratewindow.Window
	now    func() time.Time
}

func New(engine *queryengine.Engine) *Server {
	return &Server{
		engine: engine,
		limit:  ratewindow.New(config.RateLimitRequests, config.RateLimitWindow, config.RateLimitMaxTrackedIPs),
		now:    time.Now,
	}
}

// Router builds the chi mux serving /search, /suggest, and /icon.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.rateLimit)

	r.Get("/search", s.handleSearch)
	r.Get("/suggest", s.handleSuggest)
	r.Get("/icon/{domain}", s.handleIcon)
	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.limit.Allow(ip) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("Rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// searchResponse mirrors the JSON shape the spec requires for GET /search.
type searchResponse struct {
	Query      string            `json:"query"`
	Results    []searchResultDTO `json:"results"`
	Count      int               `json:"count"`
	Time       string            `json:"time"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
	Suggestion string            `json:"suggestion,omitempty"`
}

type searchResultDTO struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	acceptLanguage := r.Header.Get("Accept-Language")

	start := s.now()
	resp, err := s.engine.Search(r.Context(), q, acceptLanguage, page)
	if err != nil {
		if err == context.Canceled || err == context.DeadlineExceeded {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	elapsed := s.now().Sub(start)

	totalPages := int(math.Ceil(float64(resp.TotalFound) / float64(config.ResultsPerPage)))
	results := make([]searchResultDTO, 0, len(resp.Results))
	for _, res := range resp.Results {
		results = append(results, searchResultDTO{URL: res.URL, Title: res.Title, Snippet: res.Snippet})
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Query:      q,
		Results:    results,
		Count:      resp.TotalFound,
		Time:       elapsed.String(),
		Page:       resp.Page,
		TotalPages: totalPages,
		Suggestion: resp.Suggestion,
	})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	titles, err := s.engine.Suggest(q)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if titles == nil {
		titles = []string{}
	}
	writeJSON(w, http.StatusOK, titles)
}

func (s *Server) handleIcon(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
