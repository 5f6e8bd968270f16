// Package api exposes the reservation backend over HTTP: availability
// queries and booking create/update/list/cancel.
package api

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"costamar/internal/store"
)

// Server is the reservation HTTP API.
type Server struct {
	db       *store.DB
	apiKey   string
	validate *validator.Validate
	logger   *zerolog.Logger

	limiters  map[string]*rate.Limiter
	limiterMu sync.Mutex
	ratePer   rate.Limit
	burst     int
}

// NewServer constructs the API server. apiKey may be empty to disable auth.
func NewServer(db *store.DB, apiKey string, ratePerSec float64, burst int, logger *zerolog.Logger) *Server {
	return &Server{
		db:       db,
		apiKey:   apiKey,
		validate: validator.New(),
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
		ratePer:  rate.Limit(ratePerSec),
		burst:    burst,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/availability", s.handleAvailability)
	mux.HandleFunc("POST /api/bookings", s.handleCreateBooking)
	mux.HandleFunc("PUT /api/bookings/{id}", s.handleUpdateBooking)
	mux.HandleFunc("GET /api/bookings", s.handleListBookings)
	mux.HandleFunc("DELETE /api/bookings/{id}", s.handleCancelBooking)
	return s.withAuth(s.withRateLimit(mux))
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("x-api-key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiterFor(clientIP(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limiterFor(ip string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	lim, ok := s.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(s.ratePer, s.burst)
		s.limiters[ip] = lim
	}
	return lim
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeStrict decodes a JSON body rejecting unknown fields, then runs
// struct validation.
func (s *Server) decodeStrict(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	if err := s.validate.Struct(dst); err != nil {
		return err
	}
	return nil
}
