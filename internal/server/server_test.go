package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tradeforge/gexpin/internal/market"
	"github.com/tradeforge/gexpin/internal/position"
	"github.com/tradeforge/gexpin/internal/strategy"
	"github.com/tradeforge/gexpin/internal/tradelog"
)

func testServer(t *testing.T) (*Server, *position.Store, *tradelog.Logger) {
	t.Helper()
	dir := t.TempDir()
	store := position.NewStore(filepath.Join(dir, "positions.json"))
	trades := tradelog.New(filepath.Join(dir, "trades.jsonl"))
	return New(store, trades, market.NewClock(), zap.NewNop()), store, trades
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _, _ := testServer(t)
	rec := get(t, s.Router(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPositionsEndpoint(t *testing.T) {
	s, store, _ := testServer(t)
	err := store.Append(position.Position{
		OrderID:     "ord-1",
		Market:      "SPX",
		Strategy:    strategy.PutSpread,
		Strikes:     []float64{5950, 5975},
		EntryCredit: 2.00,
		EntryTime:   time.Now(),
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	rec := get(t, s.Router(), "/positions")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Count     int                 `json:"count"`
		Positions []position.Position `json:"positions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Count != 1 || len(body.Positions) != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Positions[0].OrderID != "ord-1" {
		t.Errorf("order id = %q", body.Positions[0].OrderID)
	}
}

func TestPositionsEmptyStore(t *testing.T) {
	s, _, _ := testServer(t)
	rec := get(t, s.Router(), "/positions")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Count     int               `json:"count"`
		Positions []json.RawMessage `json:"positions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Count != 0 || body.Positions == nil {
		t.Errorf("empty store should serialize as an empty array: %+v", body)
	}
}

func TestTradesTodayEndpoint(t *testing.T) {
	s, _, trades := testServer(t)
	now := time.Now()
	for _, pl := range []float64{1.20, -0.30} {
		err := trades.Append(tradelog.Record{
			OrderID:    "x",
			Market:     "SPX",
			Quantity:   1,
			ExitTime:   now,
			ProfitLoss: pl,
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	rec := get(t, s.Router(), "/trades/today")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Count      int     `json:"count"`
		ProfitLoss float64 `json:"profit_loss"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}
	if body.ProfitLoss < 0.89 || body.ProfitLoss > 0.91 {
		t.Errorf("profit_loss = %.2f, want 0.90", body.ProfitLoss)
	}
}
