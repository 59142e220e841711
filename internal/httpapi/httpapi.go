//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

// Package httpapi exposes internal/query's C9 contract functions as a
// thin JSON surface over net/http. It holds no domain logic of its own;
// every handler parses its query parameters and delegates straight to a
// *query.Service, which validates symbols and returns a
// *validation.Error that writeError maps to 400.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/mya15oct/stock-backend/internal/logging"
	"github.com/mya15oct/stock-backend/internal/query"
	"github.com/mya15oct/stock-backend/internal/validation"
)

// Server wires a *query.Service into a set of HTTP handlers.
type Server struct {
	Query *query.Service
}

// NewServer returns a Server backed by svc.
func NewServer(svc *query.Service) *Server {
	return &Server{Query: svc}
}

// Routes registers every handler onto mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/api/quote", s.handleQuote)
	mux.HandleFunc("/api/previous-closes", s.handlePreviousClosesBatch)
	mux.HandleFunc("/api/eod", s.handleLatestEODBatch)
	mux.HandleFunc("/api/volumes", s.handleAccumulatedVolumes)
	mux.HandleFunc("/api/candles", s.handleCandles)
	mux.HandleFunc("/api/price-history", s.handlePriceHistory)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	quote, err := s.Query.GetQuote(r.Context(), symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	if quote == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "symbol not found"})
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handlePreviousClosesBatch(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	result, err := s.Query.GetPreviousClosesBatch(r.Context(), symbols)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLatestEODBatch(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	result, err := s.Query.GetLatestEODBatch(r.Context(), symbols)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAccumulatedVolumes(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	result, err := s.Query.GetAccumulatedVolumes(r.Context(), symbols)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	timeframe := q.Get("timeframe")
	if timeframe == "" {
		timeframe = "1m"
	}

	limit := 100
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > 1000 {
		limit = 1000
	}

	bars, err := s.Query.GetCandles(r.Context(), symbol, timeframe, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bars)
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	period := q.Get("period")
	if period == "" {
		period = "1y"
	}

	history, err := s.Query.GetPriceHistory(r.Context(), symbol, period)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func splitSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error(context.Background(), "httpapi_encode_failed", map[string]any{"error": err.Error()})
	}
}

// writeError maps a *validation.Error to 400, anything else to 500.
func writeError(w http.ResponseWriter, err error) {
	if verr, ok := err.(*validation.Error); ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
		return
	}
	logging.Error(context.Background(), "httpapi_request_failed", map[string]any{"error": err.Error()})
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
