// Package server exposes a read-only status API for the monitor process.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tradeforge/gexpin/internal/market"
	"github.com/tradeforge/gexpin/internal/position"
	"github.com/tradeforge/gexpin/internal/tradelog"
)

type Server struct {
	store  *position.Store
	trades *tradelog.Logger
	clock  *market.Clock
	logger *zap.Logger
}

func New(store *position.Store, trades *tradelog.Logger, clock *market.Clock, logger *zap.Logger) *Server {
	return &Server{
		store:  store,
		trades: trades,
		clock:  clock,
		logger: logger,
	}
}

// Router builds the chi handler. Everything here is read-only; order
// placement and exits never flow through HTTP.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(zapLoggerMiddleware(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/positions", s.handlePositions)
	r.Get("/trades/today", s.handleTradesToday)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	positions, err := s.store.Load()
	if err != nil {
		s.logger.Error("loading positions for status", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store unavailable"})
		return
	}
	if positions == nil {
		positions = []position.Position{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(positions),
		"positions": positions,
	})
}

func (s *Server) handleTradesToday(w http.ResponseWriter, _ *http.Request) {
	trades, err := s.trades.Today(time.Now(), s.clock.Location())
	if err != nil {
		s.logger.Error("loading trade log for status", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "trade log unavailable"})
		return
	}
	if trades == nil {
		trades = []tradelog.Record{}
	}

	var pnl float64
	for _, t := range trades {
		pnl += t.ProfitLoss * float64(t.Quantity)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(trades),
		"profit_loss": pnl,
		"trades":      trades,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func zapLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r)
		})
	}
}
